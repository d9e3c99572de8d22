package appinsightsutils

import (
	"fmt"
	"net/http"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"go.uber.org/zap"
)

// ServeMuxWithTrace records every request as Application Insights request
// telemetry and logs it.
type ServeMuxWithTrace struct {
	*http.ServeMux
	appInsightsClient appinsights.TelemetryClient
	logger            *zap.Logger
}

func NewServeMuxWithTrace(appInsightsClient appinsights.TelemetryClient, logger *zap.Logger) *ServeMuxWithTrace {
	return &ServeMuxWithTrace{
		ServeMux:          http.NewServeMux(),
		appInsightsClient: appInsightsClient,
		logger:            logger,
	}
}

// NewTelemetryClient builds a client for instrumentationKey. With an empty key
// the client is disabled and Track is a no-op.
func NewTelemetryClient(instrumentationKey, role string) appinsights.TelemetryClient {
	telemetryConfig := appinsights.NewTelemetryConfiguration(instrumentationKey)
	// Configure how many items can be sent in one call to the data collector:
	telemetryConfig.MaxBatchSize = 8192
	// Configure the maximum delay before sending queued telemetry:
	telemetryConfig.MaxBatchInterval = 2 * time.Second

	client := appinsights.NewTelemetryClientFromConfig(telemetryConfig)
	client.Context().Tags.Cloud().SetRole(role)
	client.SetIsEnabled(instrumentationKey != "")
	return client
}

func (mux *ServeMuxWithTrace) Handle(pattern string, handler http.Handler) {
	mux.ServeMux.HandleFunc(pattern, mux.trace(pattern, func(w http.ResponseWriter, r *http.Request, _ *appinsights.RequestTelemetry) {
		handler.ServeHTTP(w, r)
	}))
}

func (mux *ServeMuxWithTrace) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	mux.ServeMux.HandleFunc(pattern, mux.trace(pattern, func(w http.ResponseWriter, r *http.Request, _ *appinsights.RequestTelemetry) {
		handler(w, r)
	}))
}

func (mux *ServeMuxWithTrace) HandleFuncWithContext(pattern string, handler func(http.ResponseWriter, *http.Request, *appinsights.RequestTelemetry)) {
	mux.ServeMux.HandleFunc(pattern, mux.trace(pattern, handler))
}

func (mux *ServeMuxWithTrace) trace(name string, fn func(http.ResponseWriter, *http.Request, *appinsights.RequestTelemetry)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		telemetry := appinsights.NewRequestTelemetry(r.Method, fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path), 0*time.Second, "200")
		startTime := time.Now().UTC()

		wrappedResponseWriter := NewResponseWriterWithStatusCode(w)
		fn(wrappedResponseWriter, r, telemetry)

		duration := time.Since(startTime)
		telemetry.Duration = duration
		telemetry.ResponseCode = fmt.Sprintf("%d", wrappedResponseWriter.StatusCode())
		telemetry.Name = name

		mux.appInsightsClient.Track(telemetry)
		mux.logger.Info("request",
			zap.String("route", name),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrappedResponseWriter.StatusCode()),
			zap.Int("bytes", wrappedResponseWriter.BytesWritten()),
			zap.Duration("duration", duration),
		)
	}
}
