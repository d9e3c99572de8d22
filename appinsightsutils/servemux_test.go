package appinsightsutils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestServeMuxWithTrace_LogsStatusAndBytes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mux := NewServeMuxWithTrace(NewTelemetryClient("", "test"), zap.New(core))

	mux.HandleFunc("GET /teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "GET /teapot", fields["route"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["bytes"])
}

func TestServeMuxWithTrace_HandleFuncWithContext(t *testing.T) {
	mux := NewServeMuxWithTrace(NewTelemetryClient("", "test"), zap.NewNop())

	var seen *appinsights.RequestTelemetry
	mux.HandleFuncWithContext("GET /ctx", func(w http.ResponseWriter, r *http.Request, telemetry *appinsights.RequestTelemetry) {
		telemetry.Properties["action-id"] = "refresh"
		seen = telemetry
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ctx", nil))

	require.NotNil(t, seen)
	assert.Equal(t, "GET /ctx", seen.Name)
	assert.Equal(t, "200", seen.ResponseCode)
	assert.Equal(t, "refresh", seen.Properties["action-id"])
}

func TestNewTelemetryClient_DisabledWithoutKey(t *testing.T) {
	assert.False(t, NewTelemetryClient("", "test").IsEnabled())
}

func TestResponseWriterWithStatusCode_DefaultsToOK(t *testing.T) {
	w := NewResponseWriterWithStatusCode(httptest.NewRecorder())
	_, _ = w.Write([]byte("ok"))
	assert.Equal(t, http.StatusOK, w.StatusCode())
	assert.Equal(t, 2, w.BytesWritten())
}
