// Package prediction estimates spoilage risk for a stored crop batch.
//
// The estimate is a threshold rule on moisture and storage temperature; it
// stands in for a trained model and yields an ETCL (estimated time to crop
// loss) in days together with bilingual guidance.
package prediction

type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// Label returns the risk name in the given language ("en" or "bn").
func (r Risk) Label(lang string) string {
	if lang != "bn" {
		return string(r)
	}
	switch r {
	case RiskHigh:
		return "উচ্চ"
	case RiskMedium:
		return "মাঝারি"
	default:
		return "কম"
	}
}

type Result struct {
	EtclDays   int    `json:"etclDays"`
	RiskLevel  Risk   `json:"riskLevel"`
	GuidanceEn string `json:"guidanceEn"`
	GuidanceBn string `json:"guidanceBn"`
}

// Conditions are the storage readings the prediction depends on.
type Conditions struct {
	MoistureLevel      float64
	StorageTemperature float64
}

const (
	highMoisture      = 75
	highTemperature   = 35
	mediumMoisture    = 65
	mediumTemperature = 30
)

// Predict applies the risk thresholds. The high band is checked first.
func Predict(c Conditions) Result {
	switch {
	case c.MoistureLevel > highMoisture || c.StorageTemperature > highTemperature:
		return Result{
			EtclDays:   15,
			RiskLevel:  RiskHigh,
			GuidanceEn: "Critical risk! Immediate action required to reduce moisture and temperature.",
			GuidanceBn: "গুরুত্বপূর্ণ ঝুঁকি! আর্দ্রতা ও তাপমাত্রা কমাতে অবিলম্বে ব্যবস্থা নিন।",
		}
	case c.MoistureLevel > mediumMoisture || c.StorageTemperature > mediumTemperature:
		return Result{
			EtclDays:   45,
			RiskLevel:  RiskMedium,
			GuidanceEn: "Moderate risk. Monitor closely and improve ventilation.",
			GuidanceBn: "মাঝারি ঝুঁকি। নিবিড়ভাবে পর্যবেক্ষণ করুন এবং বায়ুচলাচল উন্নত করুন।",
		}
	default:
		return Result{
			EtclDays:   90,
			RiskLevel:  RiskLow,
			GuidanceEn: "In good condition, continue proper storage.",
			GuidanceBn: "ভাল অবস্থায় আছে, সঠিক সংরক্ষণ চালিয়ে যান।",
		}
	}
}
