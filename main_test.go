package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shekor/harvest-api/prediction"
)

func TestPredictCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"predict", "--moisture", "80", "--temperature", "20"})
	require.NoError(t, root.Execute())

	var result prediction.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, prediction.RiskHigh, result.RiskLevel)
	assert.Equal(t, 15, result.EtclDays)
}

func TestPredictCommand_RequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"predict", "--moisture", "80"})
	assert.Error(t, root.Execute())
}

func TestForecastCommand(t *testing.T) {
	upstream := newFakeWeatherAPI(t)
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("WEATHER_API_KEY", "test-key")
	t.Setenv("WEATHER_API_URL", upstream.server.URL)
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"forecast", "--location", "Bogura", "--lang", "bn"})
	require.NoError(t, root.Execute())

	var result struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Len(t, result.Data, 5)
	query, lang := upstream.last()
	assert.Equal(t, "Bogura", query)
	assert.Equal(t, "bn", lang)
}
