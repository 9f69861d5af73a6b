package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"calmux/internal/aggregator"
	"calmux/internal/availability"
	"calmux/internal/caldav"
	"calmux/internal/conflict"
	"calmux/internal/google"
	"calmux/internal/models"
	"calmux/internal/outlook"
	"calmux/internal/provider"
	"calmux/internal/token"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "calmux",
		Usage: "Aggregate calendars across providers, detect conflicts, and find availability.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Value: "default", Usage: "User the credentials belong to."},
		},
		Commands: []*cli.Command{
			authCommand(),
			calendarsCommand(),
			eventsCommand(),
			conflictsCommand(),
			slotsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// deps is the wired object graph. Everything is constructed here and
// injected; no package holds a process-wide instance.
type deps struct {
	logger     *slog.Logger
	tokens     *token.Service
	aggregator *aggregator.Aggregator
}

func buildDeps() (*deps, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := setupLogger(logLevel)

	credsDir := os.Getenv("CREDENTIALS_DIR")
	if credsDir == "" {
		credsDir = "."
	}
	store, err := token.NewFileStore(credsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials store: %w", err)
	}

	graphScopes := []string{"Calendars.ReadWrite", "offline_access"}
	configs := map[models.Provider]*oauth2.Config{
		models.ProviderGoogle: google.OAuthConfig(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET")),
		models.ProviderOutlook: {
			ClientID:     os.Getenv("OUTLOOK_CLIENT_ID"),
			ClientSecret: os.Getenv("OUTLOOK_CLIENT_SECRET"),
			Scopes:       graphScopes,
			Endpoint:     microsoft.AzureADEndpoint("common"),
		},
		models.ProviderExchange: {
			ClientID:     os.Getenv("EXCHANGE_CLIENT_ID"),
			ClientSecret: os.Getenv("EXCHANGE_CLIENT_SECRET"),
			Scopes:       graphScopes,
			Endpoint:     microsoft.AzureADEndpoint("common"),
		},
	}
	tokens := token.NewService(store, configs, logger)

	caldavEndpoint := os.Getenv("CALDAV_ENDPOINT")
	if caldavEndpoint == "" {
		caldavEndpoint = "https://caldav.icloud.com/"
	}

	registry, err := provider.NewRegistry(
		google.NewAdapter(logger),
		outlook.NewAdapter(logger),
		outlook.NewExchangeAdapter(logger),
		caldav.NewAdapter(logger, caldavEndpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}

	return &deps{
		logger:     logger,
		tokens:     tokens,
		aggregator: aggregator.New(registry, tokens, logger),
	}, nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account and store credentials.",
		Action: func(c *cli.Context) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			d.logger.Info("Starting Google authentication flow.")

			config := google.OAuthConfig(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if config.ClientID == "" || config.ClientSecret == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')

			tok, err := google.Exchange(c.Context, config, strings.TrimSpace(authCode))
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter the account email: ")
			email, _ := reader.ReadString('\n')

			creds := &models.CalendarCredentials{
				ID:          uuid.New().String(),
				UserID:      c.String("user"),
				Provider:    models.ProviderGoogle,
				Email:       strings.TrimSpace(email),
				Token:       tok,
				SyncEnabled: true,
			}
			if err := d.tokens.SaveCredentials(creds); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			d.logger.Info("Successfully authenticated and saved credentials.", "provider", creds.Provider, "user", creds.UserID)
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List calendars across all authenticated providers.",
		Action: func(c *cli.Context) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}

			calendars, result := d.aggregator.GetCalendars(c.Context, c.String("user"))
			for _, cal := range calendars {
				primary := ""
				if cal.IsPrimary {
					primary = " (primary)"
				}
				fmt.Printf("%-10s %s%s [%s]\n", cal.Provider, cal.Name, primary, cal.ID)
			}
			reportErrors(d.logger, result)
			return nil
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List events across all authenticated providers.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: 7, Usage: "Fetch events for the next N days."},
		},
		Action: func(c *cli.Context) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}

			start := time.Now()
			end := start.AddDate(0, 0, c.Int("days"))
			events, result := d.aggregator.GetEvents(c.Context, c.String("user"), start, end)

			// Cross-provider order is unspecified; sort for display.
			sort.Slice(events, func(i, j int) bool {
				return events[i].StartTime.Before(events[j].StartTime)
			})
			for _, ev := range events {
				fmt.Printf("%s  %s - %s  %s\n", ev.Provider,
					ev.StartTime.Format("Mon 02 Jan 15:04"),
					ev.EndTime.Format("15:04"), ev.Title)
			}
			d.logger.Info("Aggregate read finished.", "events", result.EventCount, "providers", result.ProvidersTried)
			reportErrors(d.logger, result)
			return nil
		},
	}
}

func conflictsCommand() *cli.Command {
	return &cli.Command{
		Name:  "conflicts",
		Usage: "Detect scheduling conflicts and propose resolutions.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: 7, Usage: "Scan events for the next N days."},
		},
		Action: func(c *cli.Context) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}

			start := time.Now()
			end := start.AddDate(0, 0, c.Int("days"))
			events, result := d.aggregator.GetEvents(c.Context, c.String("user"), start, end)
			reportErrors(d.logger, result)

			detector := conflict.NewDetector()
			resolver := conflict.NewResolver()

			conflicts := detector.Detect(events)
			if len(conflicts) == 0 {
				fmt.Println("No conflicts found.")
				return nil
			}

			for i := range conflicts {
				fmt.Printf("[%s] %s\n", conflicts[i].Severity, conflicts[i].Description)
				if resolution := resolver.Resolve(&conflicts[i], nil); resolution != nil {
					fmt.Printf("  -> %s (confidence %.1f): %s\n", resolution.Type, resolution.Confidence, resolution.Description)
				}
			}
			return nil
		},
	}
}

func slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Generate availability slots for a day.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Day to partition (YYYY-MM-DD, default today)."},
			&cli.IntFlag{Name: "duration", Value: 30, Usage: "Slot duration in minutes."},
			&cli.BoolFlag{Name: "working-hours", Usage: "Mark slots outside working hours unavailable."},
		},
		Action: func(c *cli.Context) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}

			day := time.Now()
			if v := c.String("date"); v != "" {
				day, err = time.ParseInLocation("2006-01-02", v, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", v, err)
				}
			}
			rangeStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
			rangeEnd := rangeStart.AddDate(0, 0, 1)

			events, result := d.aggregator.GetEvents(c.Context, c.String("user"), rangeStart, rangeEnd)
			reportErrors(d.logger, result)

			busy := availability.BusyFromEvents(events)
			slots := availability.GenerateSlots(rangeStart, rangeEnd, busy, time.Duration(c.Int("duration"))*time.Minute)
			if c.Bool("working-hours") {
				slots = availability.ApplyWorkingHours(slots, models.DefaultPreferences())
			}

			for _, slot := range slots {
				mark := "free"
				if !slot.IsAvailable {
					mark = "busy"
				}
				fmt.Printf("%s - %s  %s\n", slot.StartTime.Format("15:04"), slot.EndTime.Format("15:04"), mark)
			}
			return nil
		},
	}
}

func reportErrors(logger *slog.Logger, result models.SyncResult) {
	for _, msg := range result.Errors {
		logger.Warn("Provider error during aggregate read", "error", msg)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
