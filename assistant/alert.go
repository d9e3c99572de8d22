package assistant

import (
	"fmt"

	"github.com/shekor/harvest-api/data"
	"github.com/shekor/harvest-api/prediction"
	"github.com/shekor/harvest-api/weather"
)

type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertWarning AlertType = "warning"
	AlertSuccess AlertType = "success"
	AlertError   AlertType = "error"
)

type Alert struct {
	Type        AlertType `json:"type"`
	Message     string    `json:"message"`
	Description string    `json:"description"`
}

func pick(lang, en, bn string) string {
	if lang == "bn" {
		return bn
	}
	return en
}

// priorityBatch returns the first High risk batch, else the first Medium one.
func priorityBatch(batches []data.StoredBatch) *data.StoredBatch {
	for _, risk := range []prediction.Risk{prediction.RiskHigh, prediction.RiskMedium} {
		for i := range batches {
			if batches[i].Prediction.RiskLevel == risk {
				return &batches[i]
			}
		}
	}
	return nil
}

// SmartAlert picks the single most useful alert for a farmer given their
// batches and tomorrow's forecast. It returns nil when there are no batches.
func SmartAlert(catalog *data.Catalog, batches []data.StoredBatch, tomorrow weather.DailyForecast, lang string) *Alert {
	if len(batches) == 0 {
		return nil
	}

	if b := priorityBatch(batches); b != nil {
		crop := catalog.CropName(b.Data.CropType, lang)
		risk := b.Prediction.RiskLevel.Label(lang)

		switch {
		case tomorrow.RainChance > 70:
			return &Alert{
				Type:    AlertWarning,
				Message: pick(lang, "Heavy Rain Alert", "ভারী বৃষ্টির সতর্কতা"),
				Description: pick(lang,
					fmt.Sprintf("Heavy rain is expected tomorrow. Your %s batch is at %s risk. Ensure storage is waterproof and check for leaks.", crop, risk),
					fmt.Sprintf("আগামীকাল ভারী বৃষ্টির সম্ভাবনা। আপনার %s ব্যাচটি %s ঝুঁকিতে রয়েছে। গুদাম জলরোধী কিনা তা নিশ্চিত করুন এবং কোনো ছিদ্র আছে কিনা পরীক্ষা করুন।", crop, risk)),
			}
		case tomorrow.TempMax >= 35:
			return &Alert{
				Type:    AlertWarning,
				Message: pick(lang, "Heat Wave Alert", "তাপপ্রবাহের সতর্কতা"),
				Description: pick(lang,
					fmt.Sprintf("High temperatures (%g°C) expected tomorrow. Your %s batch is at %s risk. Ensure proper ventilation to prevent spoilage.", tomorrow.TempMax, crop, risk),
					fmt.Sprintf("আগামীকাল উচ্চ তাপমাত্রা (%g°C) প্রত্যাশিত। আপনার %s ব্যাচটি %s ঝুঁকিতে রয়েছে। পচন রোধ করতে সঠিক বায়ুচলাচল নিশ্চিত করুন।", tomorrow.TempMax, crop, risk)),
			}
		case tomorrow.Humidity > 85:
			return &Alert{
				Type:    AlertWarning,
				Message: pick(lang, "High Humidity Alert", "উচ্চ আর্দ্রতার সতর্কতা"),
				Description: pick(lang,
					fmt.Sprintf("High humidity (%g%%) is expected tomorrow, increasing spoilage risk for your %s batch. Turn on fans or increase airflow.", tomorrow.Humidity, crop),
					fmt.Sprintf("আগামীকাল উচ্চ আর্দ্রতা (%g%%) প্রত্যাশিত, যা আপনার %s ব্যাচের পচনের ঝুঁকি বাড়াবে। ফ্যান চালু করুন বা বায়ুপ্রবাহ বাড়ান।", tomorrow.Humidity, crop)),
			}
		}
		return &Alert{
			Type:    AlertInfo,
			Message: pick(lang, "Batch Status", "ব্যাচের অবস্থা"),
			Description: pick(lang,
				fmt.Sprintf("Your %s batch is currently at %s risk. Continue to monitor it closely.", crop, risk),
				fmt.Sprintf("আপনার %s ব্যাচটি বর্তমানে %s ঝুঁকিতে রয়েছে। এটি নিবিড়ভাবে পর্যবেক্ষণ করুন।", crop, risk)),
		}
	}

	if tomorrow.RainChance > 70 {
		return &Alert{
			Type:    AlertInfo,
			Message: pick(lang, "Weather Update", "আবহাওয়ার আপডেট"),
			Description: pick(lang,
				fmt.Sprintf("Heavy rain is expected tomorrow (%d%%). Ensure all storage areas are secure.", tomorrow.RainChance),
				fmt.Sprintf("আগামীকাল ভারী বৃষ্টির সম্ভাবনা রয়েছে (%d%%)। আপনার সব সংরক্ষণ স্থান নিরাপদ রাখুন।", tomorrow.RainChance)),
		}
	}

	return &Alert{
		Type:    AlertSuccess,
		Message: pick(lang, "All Clear", "সবকিছু নিরাপদ"),
		Description: pick(lang,
			fmt.Sprintf("Welcome back! All %d of your batches are currently at low risk. Keep up the good work!", len(batches)),
			fmt.Sprintf("স্বাগতম! আপনার সব %dটি ব্যাচই বর্তমানে কম ঝুঁকিতে রয়েছে। ভালো কাজ চালিয়ে যান!", len(batches))),
	}
}
