package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/shekor/harvest-api/data"
	"github.com/shekor/harvest-api/prediction"
	"github.com/shekor/harvest-api/weather"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	imageWidth  = 800
	imageHeight = 480
)

var (
	regularFont = sync.OnceValues(func() (*truetype.Font, error) { return truetype.Parse(goregular.TTF) })
	boldFont    = sync.OnceValues(func() (*truetype.Font, error) { return truetype.Parse(gobold.TTF) })
)

var riskColors = map[prediction.Risk]string{
	prediction.RiskLow:    "#2E7D32",
	prediction.RiskMedium: "#EF6C00",
	prediction.RiskHigh:   "#C62828",
}

func drawDashboardImage(dashboardData *data.DashboardData) (*gg.Context, error) {
	img := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))

	dc := gg.NewContextForRGBA(img)
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(0, 0, float64(imageWidth), float64(imageHeight))
	dc.Fill()

	heading := "Shekor"
	if dashboardData.Farmer != "" {
		heading = fmt.Sprintf("Shekor: %s, %s", dashboardData.Farmer, dashboardData.District)
	}
	if err := drawImageHeading(dc, heading, dashboardData.DateString); err != nil {
		return nil, err
	}
	if err := drawWeatherInfo(dc, dashboardData.Forecast, dashboardData.ForecastStale, 55, 20); err != nil {
		return nil, err
	}
	if err := drawBatchSummary(dc, dashboardData, 290, 20); err != nil {
		return nil, err
	}
	if err := drawMessage(dc, dashboardData.AlertMessage()); err != nil {
		return nil, err
	}
	if err := drawActions(dc, dashboardData.Actions); err != nil {
		return nil, err
	}
	return dc, nil
}

func setFont(dc *gg.Context, bold bool, size float64) error {
	load := regularFont
	if bold {
		load = boldFont
	}
	f, err := load()
	if err != nil {
		return fmt.Errorf("failed to load font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: size}))
	return nil
}

func drawImageHeading(dc *gg.Context, text string, dateText string) error {
	dc.SetHexColor("#000000")

	if err := setFont(dc, true, 22); err != nil {
		return err
	}
	drawStringLeft(dc, text, 10, 10)

	if err := setFont(dc, false, 20); err != nil {
		return err
	}
	w, h := dc.MeasureString(dateText)
	dc.DrawString(dateText, float64(dc.Width())-w-10, 10+h)

	dc.SetLineWidth(1)
	dc.DrawLine(10, 45, float64(dc.Width())-10, 45)
	dc.Stroke()
	return nil
}

func drawWeatherInfo(dc *gg.Context, days []weather.DailyForecast, stale bool, top float64, left float64) error {
	dc.SetHexColor("#000000")

	if len(days) == 0 {
		if err := setFont(dc, false, 24); err != nil {
			return err
		}
		drawStringCentered(dc, "Weather unavailable", float64(dc.Width())/2, top+80)
		return nil
	}

	columnWidth := (float64(dc.Width()) - 2*left) / float64(len(days))
	iconSize := 70
	for _, day := range days {
		centreX := left + columnWidth/2
		currentTop := top

		if err := setFont(dc, true, 20); err != nil {
			return err
		}
		drawStringCentered(dc, day.DayEn, centreX, currentTop)

		currentTop += 35
		dc.DrawImage(drawIcon(day.Icon, iconSize), int(centreX)-iconSize/2, int(currentTop))
		dc.SetHexColor("#000000")

		currentTop += float64(iconSize) + 10
		if err := setFont(dc, false, 24); err != nil {
			return err
		}
		drawStringCentered(dc, fmt.Sprintf("%0.0f°C / %0.0f°C", day.TempMax, day.TempMin), centreX, currentTop)

		currentTop += 32
		if err := setFont(dc, false, 16); err != nil {
			return err
		}
		drawStringCentered(dc, fmt.Sprintf("Rain %d%% (%s), humidity %0.0f%%", day.RainChance, day.RainIntensity, day.Humidity), centreX, currentTop)

		if day.GuidanceEn != "" {
			currentTop += 24
			drawStringCentered(dc, day.GuidanceEn, centreX, currentTop)
		}

		left += columnWidth
	}

	if stale {
		if err := setFont(dc, false, 13); err != nil {
			return err
		}
		drawStringLeft(dc, "Offline: showing last saved forecast", 20, top+205)
	}
	return nil
}

func drawBatchSummary(dc *gg.Context, dashboardData *data.DashboardData, top float64, left float64) error {
	dc.SetHexColor("#000000")
	dc.SetLineWidth(1)
	dc.DrawLine(10, top-10, float64(dc.Width())-10, top-10)
	dc.Stroke()

	if err := setFont(dc, true, 20); err != nil {
		return err
	}
	drawStringLeft(dc, fmt.Sprintf("Batches: %d", len(dashboardData.Batches)), left, top)

	counts := dashboardData.RiskCounts()
	boxWidth := float64(150)
	x := left + 180
	for _, risk := range []prediction.Risk{prediction.RiskHigh, prediction.RiskMedium, prediction.RiskLow} {
		dc.SetHexColor(riskColors[risk])
		dc.DrawRoundedRectangle(x, top-4, boxWidth, 34, 6)
		dc.Fill()

		dc.SetHexColor("#FFFFFF")
		if err := setFont(dc, true, 18); err != nil {
			return err
		}
		drawStringCentered(dc, fmt.Sprintf("%s: %d", risk, counts[risk]), x+boxWidth/2, top)
		x += boxWidth + 15
	}

	// The most urgent batch gets its own line.
	var urgent *data.DashboardBatch
	for i, b := range dashboardData.Batches {
		if urgent == nil || b.EtclDays < urgent.EtclDays {
			urgent = &dashboardData.Batches[i]
		}
	}
	if urgent != nil {
		dc.SetHexColor("#000000")
		if err := setFont(dc, false, 17); err != nil {
			return err
		}
		drawStringLeft(dc, fmt.Sprintf("Most urgent: %s, %s risk, %d days to critical loss", urgent.Crop, urgent.Risk, urgent.EtclDays), left, top+45)
	}
	return nil
}

func drawMessage(dc *gg.Context, message string) error {
	if message == "" {
		return nil
	}

	dc.SetHexColor("#000000")

	messageFontSize := 25
	for messageFontSize > 10 {
		if err := setFont(dc, false, float64(messageFontSize)); err != nil {
			return err
		}
		w, _ := dc.MeasureString(message)
		if w < float64(dc.Width())-20 {
			break
		}
		messageFontSize -= 1
	}
	drawStringCentered(dc, message, float64(dc.Width())/2, float64(390))

	return nil
}

func drawActions(dc *gg.Context, actions []data.Action) error {
	dc.SetHexColor("#000000")

	if err := setFont(dc, false, 15); err != nil {
		return err
	}
	buttonPositions := []float64{80, 240, 400, 560, 720}
	for i, x := range buttonPositions {
		dc.SetLineWidth(1)
		dc.DrawLine(x, 460, x, 490)
		dc.Stroke()

		if i < len(actions) {
			drawStringCentered(dc, actions[i].DisplayName, x+5, 440)
		}
	}

	return nil
}

// drawIcon renders a weather icon at 4x and scales it down for smooth edges.
func drawIcon(icon weather.Icon, size int) *image.RGBA {
	const scale = 4
	big := gg.NewContext(size*scale, size*scale)
	s := float64(size * scale)

	switch icon {
	case weather.IconSun:
		big.SetHexColor("#F9A825")
		big.DrawCircle(s/2, s/2, s/5)
		big.Fill()
		big.SetLineWidth(s / 30)
		for i := 0; i < 8; i++ {
			angle := float64(i) * math.Pi / 4
			big.DrawLine(s/2+math.Cos(angle)*s*0.28, s/2+math.Sin(angle)*s*0.28,
				s/2+math.Cos(angle)*s*0.42, s/2+math.Sin(angle)*s*0.42)
			big.Stroke()
		}
	case weather.IconStorm, weather.IconRain:
		drawCloud(big, s, "#546E7A")
		big.SetHexColor("#1565C0")
		big.SetLineWidth(s / 40)
		for _, x := range []float64{0.35, 0.5, 0.65} {
			big.DrawLine(s*x, s*0.72, s*(x-0.05), s*0.9)
			big.Stroke()
		}
		if icon == weather.IconStorm {
			big.SetHexColor("#F9A825")
			big.MoveTo(s*0.55, s*0.6)
			big.LineTo(s*0.45, s*0.78)
			big.LineTo(s*0.53, s*0.78)
			big.LineTo(s*0.45, s*0.95)
			big.LineTo(s*0.62, s*0.72)
			big.LineTo(s*0.54, s*0.72)
			big.ClosePath()
			big.Fill()
		}
	default:
		drawCloud(big, s, "#90A4AE")
	}

	dest := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dest, dest.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.BiLinear.Scale(dest, dest.Rect, big.Image(), big.Image().Bounds(), draw.Over, nil)
	return dest
}

func drawCloud(dc *gg.Context, s float64, hex string) {
	dc.SetHexColor(hex)
	dc.DrawCircle(s*0.35, s*0.5, s*0.17)
	dc.DrawCircle(s*0.55, s*0.42, s*0.22)
	dc.DrawCircle(s*0.72, s*0.52, s*0.15)
	dc.DrawRoundedRectangle(s*0.2, s*0.5, s*0.65, s*0.18, s*0.08)
	dc.Fill()
}

func drawStringCentered(dc *gg.Context, text string, x, y float64) {
	w, h := dc.MeasureString(text)
	dc.DrawString(text, x-w/2, y+h)
}

func drawStringLeft(dc *gg.Context, text string, x, y float64) {
	_, h := dc.MeasureString(text)
	dc.DrawString(text, x, y+h)
}
