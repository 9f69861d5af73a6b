package token

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"calmux/internal/models"
)

func newTestService(t *testing.T, configs map[models.Provider]*oauth2.Config) (*Service, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, configs, logger), store
}

func TestGetValidAccessToken_Unexpired(t *testing.T) {
	svc, store := newTestService(t, map[models.Provider]*oauth2.Config{
		models.ProviderGoogle: {ClientID: "id"},
	})

	creds := testCreds(models.ProviderGoogle, "alice")
	creds.Token.Expiry = time.Now().Add(time.Hour)
	if err := store.Put(creds); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := svc.GetValidAccessToken(context.Background(), models.ProviderGoogle, "alice")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error: %v", err)
	}
	if got != "at-google" {
		t.Errorf("token = %q", got)
	}
}

func TestGetValidAccessToken_NonRefreshableIgnoresExpiry(t *testing.T) {
	// CalDAV has no oauth2 config; its packed secret never expires even
	// when a stale expiry is stored.
	svc, store := newTestService(t, nil)

	creds := testCreds(models.ProviderCalDAV, "alice")
	creds.Token.AccessToken = "alice:app-password"
	creds.Token.Expiry = time.Now().Add(-time.Hour)
	if err := store.Put(creds); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := svc.GetValidAccessToken(context.Background(), models.ProviderCalDAV, "alice")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error: %v", err)
	}
	if got != "alice:app-password" {
		t.Errorf("token = %q", got)
	}
}

func TestGetValidAccessToken_ZeroExpiryServedAsIs(t *testing.T) {
	svc, store := newTestService(t, map[models.Provider]*oauth2.Config{
		models.ProviderGoogle: {ClientID: "id"},
	})

	creds := testCreds(models.ProviderGoogle, "alice")
	creds.Token.Expiry = time.Time{}
	if err := store.Put(creds); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := svc.GetValidAccessToken(context.Background(), models.ProviderGoogle, "alice")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error: %v", err)
	}
	if got != "at-google" {
		t.Errorf("token = %q", got)
	}
}

func TestGetValidAccessToken_NoCredentials(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.GetValidAccessToken(context.Background(), models.ProviderGoogle, "nobody")
	if !errors.Is(err, models.ErrNoCredentials) {
		t.Errorf("error = %v, want ErrNoCredentials", err)
	}
}

func TestGetValidAccessToken_EmptyToken(t *testing.T) {
	svc, store := newTestService(t, nil)

	creds := testCreds(models.ProviderGoogle, "alice")
	creds.Token = &oauth2.Token{}
	if err := store.Put(creds); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	_, err := svc.GetValidAccessToken(context.Background(), models.ProviderGoogle, "alice")
	if !errors.Is(err, models.ErrNoValidToken) {
		t.Errorf("error = %v, want ErrNoValidToken", err)
	}
}

// tokenEndpoint fakes an oauth2 token endpoint handing out one fixed
// access token, counting refresh requests. delay holds each refresh open
// long enough for concurrent callers to pile onto the same flight.
func tokenEndpoint(t *testing.T, refreshes *atomic.Int32, delay time.Duration) *oauth2.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","token_type":"Bearer","refresh_token":"rt-google","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)

	return &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL},
	}
}

func TestGetValidAccessToken_RefreshesAndPersists(t *testing.T) {
	var refreshes atomic.Int32
	config := tokenEndpoint(t, &refreshes, 0)

	svc, store := newTestService(t, map[models.Provider]*oauth2.Config{
		models.ProviderGoogle: config,
	})

	creds := testCreds(models.ProviderGoogle, "alice")
	creds.Token.AccessToken = "stale-token"
	creds.Token.Expiry = time.Now().Add(-time.Hour)
	if err := store.Put(creds); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := svc.GetValidAccessToken(context.Background(), models.ProviderGoogle, "alice")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error: %v", err)
	}
	if got != "fresh-token" {
		t.Errorf("token = %q, want fresh-token", got)
	}
	if n := refreshes.Load(); n != 1 {
		t.Errorf("upstream refreshes = %d, want 1", n)
	}

	stored, err := store.Get(models.ProviderGoogle, "alice")
	if err != nil {
		t.Fatalf("Get() after refresh error: %v", err)
	}
	if stored.Token.AccessToken != "fresh-token" {
		t.Errorf("persisted token = %q, want the refreshed one", stored.Token.AccessToken)
	}
}

func TestGetValidAccessToken_ConcurrentRefreshCollapses(t *testing.T) {
	var refreshes atomic.Int32
	config := tokenEndpoint(t, &refreshes, 100*time.Millisecond)

	svc, store := newTestService(t, map[models.Provider]*oauth2.Config{
		models.ProviderGoogle: config,
	})

	creds := testCreds(models.ProviderGoogle, "alice")
	creds.Token.AccessToken = "stale-token"
	creds.Token.Expiry = time.Now().Add(-time.Hour)
	if err := store.Put(creds); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	const callers = 10
	var (
		start sync.WaitGroup
		done  sync.WaitGroup
		mu    sync.Mutex
		got   []string
		errs  []error
	)
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			tok, err := svc.GetValidAccessToken(context.Background(), models.ProviderGoogle, "alice")
			mu.Lock()
			got = append(got, tok)
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	start.Done()
	done.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("GetValidAccessToken() error: %v", err)
		}
	}
	for _, tok := range got {
		if tok != "fresh-token" {
			t.Errorf("caller served %q, want fresh-token", tok)
		}
	}
	if n := refreshes.Load(); n != 1 {
		t.Errorf("upstream refreshes = %d, want concurrent callers collapsed to 1", n)
	}

	stored, err := store.Get(models.ProviderGoogle, "alice")
	if err != nil {
		t.Fatalf("Get() after refresh error: %v", err)
	}
	if stored.Token.AccessToken != "fresh-token" {
		t.Errorf("persisted token = %q, want the refreshed one", stored.Token.AccessToken)
	}
}

func TestIsAuthenticated(t *testing.T) {
	svc, store := newTestService(t, nil)

	if svc.IsAuthenticated(models.ProviderGoogle, "alice") {
		t.Error("authenticated before any credentials stored")
	}
	if err := store.Put(testCreds(models.ProviderGoogle, "alice")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if !svc.IsAuthenticated(models.ProviderGoogle, "alice") {
		t.Error("not authenticated after storing credentials")
	}
}

func TestAuthenticatedProviders(t *testing.T) {
	svc, store := newTestService(t, nil)

	if err := store.Put(testCreds(models.ProviderOutlook, "alice")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	providers, err := svc.AuthenticatedProviders("alice")
	if err != nil {
		t.Fatalf("AuthenticatedProviders() error: %v", err)
	}
	if len(providers) != 1 || providers[0] != models.ProviderOutlook {
		t.Errorf("providers = %v", providers)
	}
}
