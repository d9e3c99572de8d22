package weather

import (
	"fmt"
	"time"
)

type Icon string

const (
	IconRain  Icon = "rain"
	IconSun   Icon = "sun"
	IconCloud Icon = "cloud"
	IconStorm Icon = "storm"
)

type RainIntensity string

const (
	RainLight    RainIntensity = "light"
	RainModerate RainIntensity = "moderate"
	RainHeavy    RainIntensity = "heavy"
)

const (
	heavyRainChance    = 70
	moderateRainChance = 40
	heatStressTempC    = 35
)

// DailyForecast is one day of the forecast as shown to a farmer.
type DailyForecast struct {
	Date          time.Time     `json:"date"`
	DayEn         string        `json:"dayEn"`
	DayBn         string        `json:"dayBn"`
	ConditionEn   string        `json:"conditionEn"`
	ConditionBn   string        `json:"conditionBn"`
	Icon          Icon          `json:"icon"`
	TempMin       float64       `json:"tempMin"`
	TempMax       float64       `json:"tempMax"`
	Humidity      float64       `json:"humidity"`
	RainChance    int           `json:"rainChance"`
	RainIntensity RainIntensity `json:"rainIntensity"`
	GuidanceEn    string        `json:"guidanceEn,omitempty"`
	GuidanceBn    string        `json:"guidanceBn,omitempty"`
}

// Condition returns the condition text for lang.
func (d DailyForecast) Condition(lang string) string {
	if lang == "bn" {
		return d.ConditionBn
	}
	return d.ConditionEn
}

func rainIntensity(rainChance int) RainIntensity {
	if rainChance >= heavyRainChance {
		return RainHeavy
	}
	if rainChance >= moderateRainChance {
		return RainModerate
	}
	return RainLight
}

func iconFor(rainChance int, tempMax float64) Icon {
	if rainChance >= heavyRainChance {
		return IconStorm
	}
	if tempMax >= heatStressTempC {
		return IconSun
	}
	return IconCloud
}

// guidance picks the first matching rule: heavy rain, heat, then dry weather.
func guidance(rainChance int, tempMax float64) (en, bn string) {
	switch {
	case rainChance >= heavyRainChance:
		return "Cover crops today.", "আজই ফসল ঢেকে রাখুন।"
	case tempMax >= heatStressTempC:
		return "Heat stress, irrigate.", "তাপের চাপ আছে, সেচ দিন।"
	case rainChance < moderateRainChance:
		return "Irrigate tomorrow afternoon.", "কাল বিকেলে সেচ দিন।"
	}
	return "", ""
}

var dayLabels = []struct{ en, bn string }{
	{"Today", "আজ"},
	{"Tomorrow", "কাল"},
	{"Day 3", "পরশু"},
	{"Day 4", "৪ দিন পর"},
	{"Day 5", "৫ দিন পর"},
}

func transform(resp *APIResponse, lang string) ([]DailyForecast, error) {
	days := make([]DailyForecast, 0, len(resp.Forecast.ForecastDay))
	for i, fd := range resp.Forecast.ForecastDay {
		date, err := time.Parse("2006-01-02", fd.Date)
		if err != nil {
			return nil, fmt.Errorf("forecast day %d: %w", i, err)
		}
		rainChance := fd.Day.DailyChanceOfRain
		d := DailyForecast{
			Date:          date,
			Icon:          iconFor(rainChance, fd.Day.MaxTempC),
			TempMin:       fd.Day.MinTempC,
			TempMax:       fd.Day.MaxTempC,
			Humidity:      fd.Day.AvgHumidity,
			RainChance:    rainChance,
			RainIntensity: rainIntensity(rainChance),
		}
		if lang == "bn" {
			d.ConditionBn = fd.Day.Condition.Text
		} else {
			d.ConditionEn = fd.Day.Condition.Text
		}
		if i < len(dayLabels) {
			d.DayEn, d.DayBn = dayLabels[i].en, dayLabels[i].bn
		} else {
			d.DayEn = date.Weekday().String()
			d.DayBn = d.DayEn
		}
		d.GuidanceEn, d.GuidanceBn = guidance(rainChance, fd.Day.MaxTempC)
		days = append(days, d)
	}
	return days, nil
}
