package models

import "errors"

// Error taxonomy for aggregation and normalization. Callers match with
// errors.Is; adapters wrap these with provider detail via fmt.Errorf %w.
var (
	// ErrInvalidPayload marks a provider payload the normalizer could not
	// map (missing start or end). Not retried; surfaced to the caller.
	ErrInvalidPayload = errors.New("invalid provider payload")

	// ErrNoCredentials means a mutation or read was attempted for a user
	// with no stored credentials for the target provider.
	ErrNoCredentials = errors.New("no credentials for provider")

	// ErrNoValidToken means credentials exist but no usable access token
	// could be produced, even after a refresh attempt.
	ErrNoValidToken = errors.New("no valid access token")

	// ErrProviderUnavailable marks a network or HTTP failure from an
	// adapter. Collected during aggregate reads; the aggregate continues.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrUnsupportedProvider is a programming error: a provider value
	// outside the closed enum reached an adapter lookup.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)
