package data

import (
	"time"

	"github.com/shekor/harvest-api/prediction"
	"github.com/shekor/harvest-api/weather"
)

const (
	ACTION_REFRESH = "refresh"

	dashboardForecastDays = 3
)

type Action struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type DashboardBatch struct {
	ID       string          `json:"id"`
	Crop     string          `json:"crop"`
	Risk     prediction.Risk `json:"risk"`
	EtclDays int             `json:"etclDays"`
}

type DashboardAlert struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// DashboardData is everything drawn on a farmer's dashboard card.
type DashboardData struct {
	Farmer        string                  `json:"farmer"`
	District      string                  `json:"district"`
	DateString    string                  `json:"dateString"`
	Forecast      []weather.DailyForecast `json:"forecast"`
	ForecastStale bool                    `json:"forecastStale"`
	Batches       []DashboardBatch        `json:"batches"`
	Alert         *DashboardAlert         `json:"alert,omitempty"`
	Actions       []Action                `json:"actions"`
	GeneratedAt   time.Time               `json:"generatedAt"`
}

// NewDashboardData assembles the card for profile. forecast may be nil when
// no weather could be loaded.
func NewDashboardData(catalog *Catalog, profile *Profile, batches []StoredBatch, forecast *weather.Result, alert *DashboardAlert, now time.Time) *DashboardData {
	d := &DashboardData{
		Farmer:     profile.Name,
		District:   profile.District,
		DateString: now.Format("Monday, 02 January 2006"),
		Batches:    make([]DashboardBatch, 0, len(batches)),
		Alert:      alert,
		Actions: []Action{
			{ID: ACTION_REFRESH, DisplayName: "Refresh"},
		},
		GeneratedAt: now,
	}
	if forecast != nil {
		days := forecast.Data
		if len(days) > dashboardForecastDays {
			days = days[:dashboardForecastDays]
		}
		d.Forecast = days
		d.ForecastStale = forecast.IsStale
	}
	for _, b := range batches {
		d.Batches = append(d.Batches, DashboardBatch{
			ID:       b.ID,
			Crop:     catalog.CropName(b.Data.CropType, "en"),
			Risk:     b.Prediction.RiskLevel,
			EtclDays: b.Prediction.EtclDays,
		})
	}
	return d
}

// RiskCounts tallies batches by risk level.
func (d *DashboardData) RiskCounts() map[prediction.Risk]int {
	counts := map[prediction.Risk]int{
		prediction.RiskLow:    0,
		prediction.RiskMedium: 0,
		prediction.RiskHigh:   0,
	}
	for _, b := range d.Batches {
		counts[b.Risk]++
	}
	return counts
}

func (d *DashboardData) AlertMessage() string {
	if d.Alert == nil {
		return ""
	}
	return d.Alert.Message
}
