package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vacradar/vacradar/internal/ai/gemini"
	"github.com/vacradar/vacradar/internal/logger"
	"github.com/vacradar/vacradar/internal/notify"
	"github.com/vacradar/vacradar/internal/reconciler"
	"github.com/vacradar/vacradar/internal/scheduler"
	"github.com/vacradar/vacradar/internal/secrets"
	"github.com/vacradar/vacradar/internal/server"
	"github.com/vacradar/vacradar/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion API and the background classification loop",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the vacradar", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	deps, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("wiring dependencies", zap.Error(err))
	}
	defer deps.store.Close()

	recon := reconciler.New(deps.store, deps.classifier, deps.notifier, config.Classifier.BatchSize, logger)
	sched := scheduler.New(recon.Cycle, config.Classifier.Interval, logger)

	srv := server.New(deps.store, deps.notifier, config.Server.MinTextLength, config.Duplicates.Threshold, logger)
	httpServer := &http.Server{
		Addr:              config.Server.BindAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("listening", zap.String("addr", config.Server.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

type deps struct {
	store      *storage.Store
	classifier *gemini.Classifier
	notifier   server.Notifier
}

// buildDeps validates the config and constructs the shared dependencies for
// the serve and cycle commands.
func buildDeps(ctx context.Context, config *Config, logger *zap.Logger) (*deps, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Classifier == nil || config.Classifier.Gemini == nil {
		return nil, errors.New("classifier.gemini section is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.Classifier.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set classifier.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	store, err := storage.Open(config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening storage %q: %w", config.Storage.Path, err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", config.Classifier.Gemini.Model),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, config.Classifier.Gemini.Model, genLogger)
	if err != nil {
		store.Close()
		return nil, err
	}

	classifier := gemini.NewClassifier(generator, genLogger, config.Classifier.Gemini.MaxLogLength)

	notifier, err := buildNotifier(config.Notifications, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &deps{store: store, classifier: classifier, notifier: notifier}, nil
}

func buildNotifier(config *NotificationsConfig, logger *zap.Logger) (server.Notifier, error) {
	if config == nil || !config.Enabled {
		return notify.Nop{}, nil
	}

	if config.Telegram == nil || config.Telegram.Channel == "" {
		return nil, errors.New("notifications.telegram.channel is required when notifications are enabled")
	}

	token, err := secrets.Load(secrets.Source{
		Name: "telegram bot token",
		File: config.Telegram.TokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set notifications.telegram.token-file or TELEGRAM_TOKEN_FILE)", err)
	}

	return notify.NewTelegram(token, config.Telegram.Channel, logger), nil
}
