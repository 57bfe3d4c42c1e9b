// Radar is the feed aggregation and delivery daemon.
//
// It collects configured RSS and Atom sources, curates the last day of
// items per topical domain, and pushes rendered digests to each user's
// channels on a schedule or on demand.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/inforadar/radar/internal/api"
	"github.com/inforadar/radar/internal/collect"
	"github.com/inforadar/radar/internal/dispatch"
	"github.com/inforadar/radar/internal/migrations"
	"github.com/inforadar/radar/internal/pipeline"
	"github.com/inforadar/radar/internal/radar"
	"github.com/inforadar/radar/internal/sqlite"
	"github.com/inforadar/radar/logger"
)

type config struct {
	Port     int    `env:"PORT, default=8080"`
	Database string `env:"DATABASE, required"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	// Shared secret for the manual collect trigger.
	CronSecret string `env:"CRON_SECRET, required"`
	CorsHeader string `env:"CORS_HEADER, default=*"`

	// How often the scheduled pass over all users runs.
	ScheduleInterval time.Duration `env:"SCHEDULE_INTERVAL, default=24h"`

	// Email delivery; channels of that kind stay undeliverable without a key.
	EmailAPIKey string `env:"EMAIL_API_KEY"`
	EmailFrom   string `env:"EMAIL_FROM, default=digest@radar.local"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	// Start the application
	if err := run(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	slog.Info("running", "port", cfg.Port, "database", cfg.Database)

	// Connect to the db
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000", cfg.Database))
	if err != nil {
		return fmt.Errorf("error opening database: %s", err)
	}

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	repo := sqlite.New(dbx)

	collector, err := collect.New(repo)
	if err != nil {
		return fmt.Errorf("error creating collector: %s", err)
	}

	subject := func() string {
		return fmt.Sprintf("Radar Digest %s", time.Now().UTC().Format("2006-01-02"))
	}
	dispatcher := dispatch.New(repo, map[radar.ChannelKind]dispatch.Transport{
		radar.ChannelTelegram: dispatch.NewTelegramSender(),
		radar.ChannelWebhook:  dispatch.NewWebhookSender(),
		radar.ChannelEmail:    dispatch.NewEmailSender(cfg.EmailAPIKey, cfg.EmailFrom, subject),
	})

	pipe := pipeline.New(pipeline.Stores{
		Items:         repo,
		Sources:       repo,
		Channels:      repo,
		Policies:      repo,
		Subscriptions: repo,
	}, collector, dispatcher)

	s := api.NewServer(api.ServerConfig{
		Port:       cfg.Port,
		CronSecret: cfg.CronSecret,
		CorsHeader: cfg.CorsHeader,
	}, pipe, repo, repo)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Start the server
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}

		return nil
	})

	g.Go(func() error {
		// Scheduled passes over all users
		ticker := time.NewTicker(cfg.ScheduleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := pipe.RunScheduled(gCtx); err != nil {
					slog.Error("error running scheduled pass", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
