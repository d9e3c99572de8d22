package main

import (
	"bytes"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shekor/harvest-api/data"
	"github.com/shekor/harvest-api/prediction"
	"github.com/shekor/harvest-api/weather"
)

func TestDrawDashboardImage(t *testing.T) {
	full := &data.DashboardData{
		Farmer:     "Rahim",
		District:   "Rangpur",
		DateString: "Sunday, 01 June 2025",
		Forecast: []weather.DailyForecast{
			{DayEn: "Today", Icon: weather.IconSun, TempMax: 36, TempMin: 27, RainChance: 10, RainIntensity: weather.RainLight, Humidity: 60, GuidanceEn: "Heat stress, irrigate."},
			{DayEn: "Tomorrow", Icon: weather.IconStorm, TempMax: 31, TempMin: 25, RainChance: 80, RainIntensity: weather.RainHeavy, Humidity: 90, GuidanceEn: "Cover crops today."},
			{DayEn: "Day 3", Icon: weather.IconCloud, TempMax: 30, TempMin: 24, RainChance: 45, RainIntensity: weather.RainModerate, Humidity: 75},
		},
		ForecastStale: true,
		Batches: []data.DashboardBatch{
			{Crop: "Paddy/Rice", Risk: prediction.RiskHigh, EtclDays: 15},
			{Crop: "Wheat", Risk: prediction.RiskLow, EtclDays: 90},
		},
		Alert:       &data.DashboardAlert{Message: "Heavy Rain Alert"},
		Actions:     []data.Action{{ID: data.ACTION_REFRESH, DisplayName: "Refresh"}},
		GeneratedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		data *data.DashboardData
	}{
		{"full", full},
		{"no weather and no batches", &data.DashboardData{DateString: "Sunday, 01 June 2025"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, err := drawDashboardImage(tt.data)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, dc.EncodeJPG(&buf, &jpeg.Options{Quality: 90}))
			img, err := jpeg.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, imageWidth, img.Bounds().Dx())
			assert.Equal(t, imageHeight, img.Bounds().Dy())
		})
	}
}

func TestDrawIcon(t *testing.T) {
	for _, icon := range []weather.Icon{weather.IconSun, weather.IconCloud, weather.IconRain, weather.IconStorm} {
		img := drawIcon(icon, 70)
		assert.Equal(t, 70, img.Bounds().Dx(), icon)
		assert.Equal(t, 70, img.Bounds().Dy(), icon)
	}
}

func TestDrawMessage_ShrinksLongText(t *testing.T) {
	dc, err := drawDashboardImage(&data.DashboardData{})
	require.NoError(t, err)

	long := "Heavy rain expected tomorrow. Your Paddy/Rice batch is at High risk. Cover it and move it to higher ground."
	require.NoError(t, drawMessage(dc, long))
	w, _ := dc.MeasureString(long)
	assert.Less(t, w, float64(imageWidth))
}
