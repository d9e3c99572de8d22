package weather

import "fmt"

type AlertType string

const (
	AlertRain    AlertType = "rain"
	AlertHeat    AlertType = "heat"
	AlertGeneral AlertType = "general"
)

type Alert struct {
	ID       int       `json:"id"`
	Type     AlertType `json:"type"`
	TitleEn  string    `json:"titleEn"`
	TitleBn  string    `json:"titleBn"`
	DetailEn string    `json:"detailEn"`
	DetailBn string    `json:"detailBn"`
	ActionEn string    `json:"actionEn"`
	ActionBn string    `json:"actionBn"`
}

// DeriveAlerts builds at most one alert of each type from the forecast:
// heavy rain today, the first hot day after today, and the first heavy-rain
// day from day 3 on.
func DeriveAlerts(days []DailyForecast) []Alert {
	alerts := []Alert{}
	next := func(a Alert) {
		a.ID = len(alerts) + 1
		alerts = append(alerts, a)
	}

	if len(days) > 0 && days[0].RainChance >= heavyRainChance {
		next(Alert{
			Type:     AlertRain,
			TitleEn:  "URGENT: Heavy Rain Today",
			TitleBn:  "জরুরি: আজ ভারী বৃষ্টি",
			DetailEn: fmt.Sprintf("Heavy rain expected today (%d%%). Cover harvested crops immediately.", days[0].RainChance),
			DetailBn: fmt.Sprintf("আজ ভারী বৃষ্টির সম্ভাবনা (%d%%)। এখনই কাটা ফসল ঢেকে রাখুন।", days[0].RainChance),
			ActionEn: "Take action now",
			ActionBn: "এখনই ব্যবস্থা নিন",
		})
	}

	for i := 1; i < len(days); i++ {
		if days[i].TempMax < heatStressTempC {
			continue
		}
		titleEn, titleBn := "Very Hot Tomorrow", "কাল খুব গরম পড়বে"
		if i > 1 {
			titleEn = fmt.Sprintf("Very Hot in %d Days", dayNumber(i))
			titleBn = fmt.Sprintf("%d দিন পর খুব গরম পড়বে", dayNumber(i))
		}
		next(Alert{
			Type:     AlertHeat,
			TitleEn:  titleEn,
			TitleBn:  titleBn,
			DetailEn: fmt.Sprintf("Temperature will rise to %.0f°C. Avoid irrigation during noon. Irrigate in the afternoon.", days[i].TempMax),
			DetailBn: fmt.Sprintf("তাপমাত্রা %.0f°C উঠবে। দুপুরে সেচ দেবেন না। বিকেলের দিকে সেচ দিন।", days[i].TempMax),
			ActionEn: "Irrigate in the afternoon",
			ActionBn: "বিকেলে সেচ দিন",
		})
		break
	}

	for i := 2; i < len(days); i++ {
		if days[i].RainChance < heavyRainChance {
			continue
		}
		next(Alert{
			Type:     AlertGeneral,
			TitleEn:  fmt.Sprintf("Rain Coming in %d Days", dayNumber(i)),
			TitleBn:  fmt.Sprintf("আগামী %d দিনে বৃষ্টি আসছে", dayNumber(i)),
			DetailEn: fmt.Sprintf("Heavy rain expected (%d%%). Harvest before the rain starts.", days[i].RainChance),
			DetailBn: fmt.Sprintf("ভারী বৃষ্টির সম্ভাবনা (%d%%)। বৃষ্টি শুরুর আগেই ফসল কেটে ফেলুন।", days[i].RainChance),
			ActionEn: "Harvest quickly",
			ActionBn: "তাড়াতাড়ি কাটুন",
		})
		break
	}

	return alerts
}

// dayNumber matches the "Day N" labels, where today is day 1.
func dayNumber(index int) int {
	return index + 1
}
