package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"github.com/telhawk-systems/telhawk-relay/common/logging"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/config"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/directory"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/dispatcher"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/mirror"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/normalizer"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/server"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/service"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/socketmode"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Slack and relay requests to the webhook",
	Long: `Connects to Slack over Socket Mode and relays every request to the
configured webhook until SIGINT or SIGTERM is received.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("relay"))
	logging.SetDefault(logger)

	slog.Info("Starting relay",
		slog.String("log_level", cfg.Logging.Level),
		slog.String("webhook_format", cfg.Webhook.Format),
		slog.Duration("webhook_timeout", cfg.Webhook.Timeout),
	)
	if cfgFile != "" {
		slog.Info("Loaded configuration", slog.String("config_path", cfgFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One client for the webhook; Slack API calls get their own.
	httpClient := &http.Client{}
	defer httpClient.CloseIdleConnections()

	api := slack.New(cfg.Slack.BotToken,
		slack.OptionAppLevelToken(cfg.Slack.AppToken),
		slack.OptionAPIURL(cfg.Slack.APIURL),
	)

	dir := buildDirectory(cfg, api, logger)

	var publisher mirror.Publisher = mirror.Noop{}
	if cfg.NATS.Enabled {
		nc, err := mirror.NewNATSPublisher(mirror.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, logger)
		if err != nil {
			slog.Warn("NATS mirror unavailable, continuing without it", logging.Error(err))
		} else {
			publisher = nc
			slog.Info("NATS mirror enabled",
				slog.String("url", cfg.NATS.URL),
				slog.String("subject_prefix", cfg.NATS.SubjectPrefix))
		}
	}
	defer publisher.Close()

	relay := service.NewRelayService(
		normalizer.New(dir, logger),
		dispatcher.New(dispatcher.Config{
			URL:     cfg.Webhook.URL,
			Timeout: cfg.Webhook.Timeout,
			Format:  dispatcher.Format(cfg.Webhook.Format),
		}, httpClient, logger),
		publisher,
		logger,
	)

	client := socketmode.New(socketmode.Config{
		ReconnectWait: cfg.Slack.ReconnectWait,
		AckTimeout:    cfg.Slack.AckTimeout,
		ShutdownGrace: cfg.Slack.ShutdownGrace,
	}, api, relay, logger)

	var srv *http.Server
	if cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.NewRouter(client),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Ops endpoints listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Ops server error", logging.Error(err))
			}
		}()
	}

	runErr := client.Run(ctx)

	slog.Info("Shutting down relay")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Ops server forced to shutdown", logging.Error(err))
		}
	}

	if runErr != nil {
		return fmt.Errorf("socket mode: %w", runErr)
	}
	slog.Info("Relay stopped")
	return nil
}

// buildDirectory returns the Slack-backed directory, fronted by the Redis
// cache when one is configured and reachable.
func buildDirectory(cfg *config.Config, api directory.SlackAPI, logger *logging.Logger) directory.Directory {
	var dir directory.Directory = directory.NewSlackDirectory(api,
		cfg.Directory.RateLimit,
		cfg.Directory.RateBurst,
		cfg.Directory.LookupTimeout,
	)
	if !cfg.Redis.Enabled {
		return dir
	}

	rc, err := directory.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		slog.Warn("Redis unavailable, directory lookups will not be cached", logging.Error(err))
		return dir
	}
	slog.Info("Directory cache enabled", slog.Duration("ttl", cfg.Redis.CacheTTL))
	return directory.NewCachedDirectory(dir, rc, cfg.Redis.CacheTTL, logger)
}
