package assistant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/shekor/harvest-api/data"
	"github.com/shekor/harvest-api/prediction"
	"github.com/shekor/harvest-api/weather"
)

var (
	ErrMissingSpeechKey = errors.New("ElevenLabs API key missing")
	ErrMissingAIKey     = errors.New("Gemini API key missing")
	ErrEmptyAudio       = errors.New("no audio received")
)

// SpeechSize is the length of the placeholder MP3 returned by Speak.
const SpeechSize = 1024

var id3Header = []byte{0x49, 0x44, 0x33, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// Questions are the canned transcriptions Transcribe chooses from.
var Questions = []string{
	"আজকের আবহাওয়া কেমন?",
	"আমার ধানের অবস্থা কী?",
	"গুদামে কী করব?",
	"কবে ধান কাটব?",
	"কবে বিক্রি করব?",
	"আমার স্কোর কত?",
}

type Config struct {
	AIKey     string
	SpeechKey string
}

// Assistant answers farmers' voice and text questions. Every call is a
// deterministic stand-in for the speech and language model APIs.
type Assistant struct {
	cfg     Config
	catalog *data.Catalog
}

func New(cfg Config, catalog *data.Catalog) *Assistant {
	return &Assistant{cfg: cfg, catalog: catalog}
}

// Transcribe maps the audio onto one of the canned questions. The same audio
// always yields the same question.
func (a *Assistant) Transcribe(audio []byte) (string, error) {
	if a.cfg.SpeechKey == "" {
		return "", ErrMissingSpeechKey
	}
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	return Questions[xxhash.Sum64(audio)%uint64(len(Questions))], nil
}

// Ask answers a Bangla question using the farmer's district, batches and forecast.
func (a *Assistant) Ask(question, district string, batches []data.StoredBatch, forecast []weather.DailyForecast) (string, error) {
	if a.cfg.AIKey == "" {
		return "", ErrMissingAIKey
	}

	switch {
	case strings.Contains(question, "আবহাওয়া কেমন"):
		if len(forecast) == 0 {
			return "দুঃখিত, আজকের আবহাওয়ার তথ্য পাওয়া যায়নি।", nil
		}
		today := forecast[0]
		condition := today.Condition("bn")
		if condition == "" {
			condition = today.ConditionEn
		}
		return fmt.Sprintf("আজ %s এ সর্বোচ্চ তাপমাত্রা %g ডিগ্রি সেলসিয়াস এবং আর্দ্রতা %g%%। %s থাকবে।", district, today.TempMax, today.Humidity, condition), nil

	case strings.Contains(question, "ধানের অবস্থা"):
		if len(batches) == 0 {
			return "আপনার কোনো সক্রিয় ফসল নিবন্ধন করা নেই। নতুন ব্যাচ যোগ করুন।", nil
		}
		for _, b := range batches {
			if b.Prediction.RiskLevel == prediction.RiskHigh {
				return fmt.Sprintf("আপনার একটি ব্যাচ উচ্চ ঝুঁকিতে আছে। %s ফসলের নষ্ট হতে বাকি আছে মাত্র %d দিন। অবিলম্বে ব্যবস্থা নিন।",
					a.catalog.CropName(b.Data.CropType, "bn"), b.Prediction.EtclDays), nil
			}
		}
		return fmt.Sprintf("আপনার %dটি ব্যাচই নিরাপদ অবস্থায় আছে। বর্তমান সংরক্ষণ পদ্ধতি চালিয়ে যান।", len(batches)), nil

	case strings.Contains(question, "গুদামে কী করব"):
		return "গুদামের তাপমাত্রা ও আর্দ্রতা পরীক্ষা করুন। আর্দ্রতা ১৪% এর নিচে রাখুন এবং ভালো বায়ুচলাচল নিশ্চিত করুন।", nil

	case strings.Contains(question, "স্কোর কত"):
		return "আপনার বর্তমান ডিজিটাল কৃষক স্কোর হলো ৪২০০। অভিনন্দন!", nil
	}
	return "আমি আপনার প্রশ্নটি বুঝতে পেরেছি। এটি একটি গুরুত্বপূর্ণ প্রশ্ন।", nil
}

// Speak returns placeholder MP3 bytes for text.
func (a *Assistant) Speak(text string) ([]byte, error) {
	if a.cfg.SpeechKey == "" {
		return nil, ErrMissingSpeechKey
	}
	audio := make([]byte, SpeechSize)
	copy(audio, id3Header)
	return audio, nil
}

// BuildContext describes the farmer's situation as a prompt preamble for the
// language model.
func BuildContext(district string, batches []data.StoredBatch, forecast []weather.DailyForecast) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User is a farmer in %s. ", district)

	if len(batches) > 0 {
		fmt.Fprintf(&sb, "They have %d active crop batches. ", len(batches))
		for i, b := range batches {
			fmt.Fprintf(&sb, "Batch %d: %s is at %s risk, with %d days to critical loss. ",
				i+1, b.Data.CropType, b.Prediction.RiskLevel, b.Prediction.EtclDays)
		}
	} else {
		sb.WriteString("They have no active crop batches registered. ")
	}

	if len(forecast) > 0 {
		today := forecast[0]
		fmt.Fprintf(&sb, "Today's weather in %s: Max Temp %g°C, Humidity %g%%, Rain Chance %d%%. Condition: %s. ",
			district, today.TempMax, today.Humidity, today.RainChance, today.ConditionEn)
	}

	sb.WriteString("Respond concisely and helpfully, entirely in Bengali (Bangla).")
	return sb.String()
}
