package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shekor/harvest-api/appinsightsutils"
	"github.com/shekor/harvest-api/config"
	"github.com/shekor/harvest-api/data"
	"github.com/shekor/harvest-api/logger"
	"github.com/shekor/harvest-api/prediction"
	"github.com/shekor/harvest-api/weather"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "shekor",
		Short:        "Harvest storage and weather API for farmers",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newPredictCmd(), newForecastCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	return config.Load()
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
}

func newWeatherService(cfg *config.Config, log *zap.Logger) *weather.Service {
	return weather.NewService(
		weather.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIKey),
		data.NewWeatherCacheFile(cfg.WeatherCacheFilePath()),
		weather.WithCacheDuration(cfg.WeatherCacheDuration),
		weather.WithLogger(log),
	)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()

			log.Info("server starting",
				zap.Int("pid", os.Getpid()),
				zap.String("data-dir", cfg.DataDir),
				zap.Bool("weather-configured", cfg.WeatherAPIKey != ""),
				zap.Bool("telemetry-enabled", cfg.ApplicationInsightsInstrumentationKey != ""),
			)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serveAPI(ctx, cfg, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server failed", zap.Error(err))
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
}

func serveAPI(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	l, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	log.Info("listening", zap.String("address", l.Addr().String()))

	appInsightsClient := appinsightsutils.NewTelemetryClient(cfg.ApplicationInsightsInstrumentationKey, "shekor-api")
	defer func() {
		select {
		case <-appInsightsClient.Channel().Close(shutdownTimeout):
		case <-time.After(shutdownTimeout):
		}
	}()

	mux := appinsightsutils.NewServeMuxWithTrace(appInsightsClient, log)
	if err := registerHandlers(mux, cfg, appInsightsClient, log); err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return server.Serve(l)
}

func registerHandlers(mux *appinsightsutils.ServeMuxWithTrace, cfg *config.Config, appInsightsClient appinsights.TelemetryClient, log *zap.Logger) error {
	api, err := NewApiRouter(cfg, appInsightsClient, log, newWeatherService(cfg, log))
	if err != nil {
		return err
	}

	mux.HandleFunc("GET /", api.Hello)
	mux.HandleFunc("GET /catalog", api.CatalogGet)
	mux.HandleFunc("POST /signup", api.Signup)
	mux.HandleFunc("POST /login", api.Login)
	mux.HandleFunc("GET /profile", api.ProfileGet)
	mux.HandleFunc("POST /predict", api.Predict)
	mux.HandleFunc("POST /batches", api.BatchCreate)
	mux.HandleFunc("GET /batches", api.BatchList)
	mux.HandleFunc("GET /batches/{id}", api.BatchGet)
	mux.HandleFunc("DELETE /batches/{id}", api.BatchDelete)
	mux.HandleFunc("GET /weather", api.WeatherGet)
	mux.HandleFunc("GET /smart-alert", api.SmartAlertGet)
	mux.HandleFunc("GET /notifications", api.NotificationList)
	mux.HandleFunc("POST /notifications/read-all", api.NotificationReadAll)
	mux.HandleFunc("POST /notifications/{id}/read", api.NotificationRead)
	mux.HandleFunc("POST /voice/transcribe", api.VoiceTranscribe)
	mux.HandleFunc("POST /voice/ask", api.VoiceAsk)
	mux.HandleFunc("POST /voice/speak", api.VoiceSpeak)
	mux.HandleFunc("GET /dashboard-data", api.DashboardDataGet)
	mux.HandleFuncWithContext("GET /dashboard-image", api.DashboardImageGet)
	return nil
}

func newPredictCmd() *cobra.Command {
	var conditions prediction.Conditions
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Print the spoilage prediction for storage conditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, prediction.Predict(conditions))
		},
	}
	cmd.Flags().Float64Var(&conditions.MoistureLevel, "moisture", 0, "moisture level in percent")
	cmd.Flags().Float64Var(&conditions.StorageTemperature, "temperature", 0, "storage temperature in °C")
	_ = cmd.MarkFlagRequired("moisture")
	_ = cmd.MarkFlagRequired("temperature")
	return cmd
}

func newForecastCmd() *cobra.Command {
	var location, lang string
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Fetch the forecast and alerts for a location through the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()

			if location == "" {
				location = cfg.DefaultDistrict
			}
			result, err := newWeatherService(cfg, log).Fetch(cmd.Context(), location, lang)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "district or city (defaults to DEFAULT_DISTRICT)")
	cmd.Flags().StringVar(&lang, "lang", "en", "language of condition texts (en or bn)")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
