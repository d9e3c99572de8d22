package main

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/shekor/harvest-api/assistant"
	"github.com/shekor/harvest-api/config"
	"github.com/shekor/harvest-api/data"
	"github.com/shekor/harvest-api/prediction"
	"github.com/shekor/harvest-api/session"
	"github.com/shekor/harvest-api/weather"
)

const (
	maxAudioBytes = 10 << 20
	maxJSONBytes  = 1 << 20
)

var languageMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.MustParse("bn"),
})

type ApiRouter struct {
	appInsightsClient appinsights.TelemetryClient
	logger            *zap.Logger
	clock             clock.Clock

	profiles      *data.ProfileStore
	batches       *data.BatchStore
	notifications *data.NotificationStore
	catalog       *data.Catalog
	sessions      *session.Issuer
	weather       *weather.Service
	assistant     *assistant.Assistant

	defaultDistrict string
	dataCache       *data.Cache[string, data.DashboardData]
}

func NewApiRouter(cfg *config.Config, appInsightsClient appinsights.TelemetryClient, logger *zap.Logger, weatherService *weather.Service) (*ApiRouter, error) {
	if appInsightsClient == nil {
		panic("appInsightsClient is required")
	}
	catalog, err := data.LoadCatalog()
	if err != nil {
		return nil, err
	}
	return &ApiRouter{
		appInsightsClient: appInsightsClient,
		logger:            logger,
		clock:             clock.NewClock(),
		profiles:          data.NewProfileStore(cfg.ProfilesFilePath()),
		batches:           data.NewBatchStore(cfg.BatchesFilePath()),
		notifications:     data.NewNotificationStore(cfg.NotificationsFilePath()),
		catalog:           catalog,
		sessions:          session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL),
		weather:           weatherService,
		assistant: assistant.New(assistant.Config{
			AIKey:     cfg.GeminiAPIKey,
			SpeechKey: cfg.ElevenLabsAPIKey,
		}, catalog),
		defaultDistrict: cfg.DefaultDistrict,
		dataCache:       data.NewCache[string, data.DashboardData](10 * time.Minute),
	}, nil
}

func (api *ApiRouter) Hello(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
		return
	}
	fmt.Fprintf(w, "Hello from Shekor 🌾")
}

func (api *ApiRouter) CatalogGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.catalog)
}

type authResponse struct {
	Profile *data.Profile  `json:"profile"`
	Token   *session.Token `json:"token"`
}

func (api *ApiRouter) Signup(w http.ResponseWriter, r *http.Request) {
	var newProfile data.NewProfile
	if !decodeJSON(w, r, &newProfile) {
		return
	}
	profile, err := api.profiles.Add(newProfile)
	if err != nil {
		api.writeError(w, err)
		return
	}
	token, err := api.sessions.Issue(profile.Mobile)
	if err != nil {
		api.writeError(w, err)
		return
	}
	api.logger.Info("farmer signed up", zap.String("id", profile.ID), zap.String("district", profile.District))
	writeJSON(w, http.StatusCreated, authResponse{Profile: profile, Token: token})
}

func (api *ApiRouter) Login(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &credentials) {
		return
	}
	profile, err := api.profiles.Authenticate(credentials.Mobile, credentials.Password)
	if err != nil {
		api.writeError(w, err)
		return
	}
	token, err := api.sessions.Issue(profile.Mobile)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Profile: profile, Token: token})
}

func (api *ApiRouter) ProfileGet(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (api *ApiRouter) Predict(w http.ResponseWriter, r *http.Request) {
	var form data.BatchForm
	if !decodeJSON(w, r, &form) {
		return
	}
	if err := form.Validate(); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction.Predict(form.Conditions()))
}

func (api *ApiRouter) BatchCreate(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	var form data.BatchForm
	if !decodeJSON(w, r, &form) {
		return
	}
	batch, err := api.batches.Add(profile.Mobile, form)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

func (api *ApiRouter) BatchList(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	batches, err := api.batches.List(profile.Mobile)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (api *ApiRouter) BatchGet(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	batch, err := api.batches.Get(profile.Mobile, r.PathValue("id"))
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (api *ApiRouter) BatchDelete(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	if err := api.batches.Delete(profile.Mobile, r.PathValue("id")); err != nil {
		api.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *ApiRouter) WeatherGet(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		location = api.districtFor(api.optionalProfile(r))
	}
	result, err := api.weather.Fetch(r.Context(), location, resolveLanguage(r))
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (api *ApiRouter) SmartAlertGet(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	lang := resolveLanguage(r)
	batches, err := api.batches.List(profile.Mobile)
	if err != nil {
		api.writeError(w, err)
		return
	}

	alert := assistant.SmartAlert(api.catalog, batches, tomorrow(api.forecastFor(r, profile, lang)), lang)
	response := struct {
		Alert        *assistant.Alert   `json:"alert"`
		Notification *data.Notification `json:"notification,omitempty"`
	}{Alert: alert}
	if alert != nil {
		notification, _, err := api.notifications.AddUnlessLatest(profile.Mobile, string(alert.Type), alert.Message, alert.Description)
		if err != nil {
			api.writeError(w, err)
			return
		}
		response.Notification = notification
	}
	writeJSON(w, http.StatusOK, response)
}

func (api *ApiRouter) NotificationList(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	notifications, err := api.notifications.List(profile.Mobile)
	if err != nil {
		api.writeError(w, err)
		return
	}
	unread, err := api.notifications.UnreadCount(profile.Mobile)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Notifications []data.Notification `json:"notifications"`
		UnreadCount   int                 `json:"unreadCount"`
	}{notifications, unread})
}

func (api *ApiRouter) NotificationRead(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	if err := api.notifications.MarkRead(profile.Mobile, r.PathValue("id")); err != nil {
		api.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *ApiRouter) NotificationReadAll(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	if err := api.notifications.MarkAllRead(profile.Mobile); err != nil {
		api.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *ApiRouter) VoiceTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	text, err := api.assistant.Transcribe(audio)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Text string `json:"text"`
	}{text})
}

func (api *ApiRouter) VoiceAsk(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	var request struct {
		Question string `json:"question"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeErrorMessage(w, http.StatusBadRequest, "question is required")
		return
	}
	batches, err := api.batches.List(profile.Mobile)
	if err != nil {
		api.writeError(w, err)
		return
	}
	district := api.districtFor(profile)
	var forecast []weather.DailyForecast
	if result := api.forecastFor(r, profile, "bn"); result != nil {
		forecast = result.Data
	}

	answer, err := api.assistant.Ask(request.Question, district, batches, forecast)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Context  string `json:"context"`
	}{request.Question, answer, assistant.BuildContext(district, batches, forecast)})
}

func (api *ApiRouter) VoiceSpeak(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}
	audio, err := api.assistant.Speak(request.Text)
	if err != nil {
		api.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(audio)
}

func (api *ApiRouter) DashboardDataGet(w http.ResponseWriter, r *http.Request) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	dashboardData, err := api.dashboardData(r, profile)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardData)
}

func (api *ApiRouter) trackCacheEvent(cacheHit bool, reason string) {
	e := appinsights.NewEventTelemetry("cache-hit")
	e.Properties["cache-hit"] = fmt.Sprintf("%t", cacheHit)
	e.Properties["reason"] = reason
	api.appInsightsClient.Track(e)
}

func (api *ApiRouter) DashboardImageGet(w http.ResponseWriter, r *http.Request, telemetry *appinsights.RequestTelemetry) {
	profile, ok := api.authenticate(w, r)
	if !ok {
		return
	}
	log := api.logger.With(zap.String("farmer", profile.ID))

	actionId := r.Header.Get("action-id")
	if actionId != "" {
		log.Debug("dashboard action", zap.String("action-id", actionId))
		telemetry.Properties["action-id"] = actionId
	}

	ifNoneMatch := r.Header.Get("If-None-Match")
	if ifNoneMatch != "" {
		telemetry.Properties["If-None-Match"] = ifNoneMatch
	}

	dashboardData, err := api.dashboardData(r, profile)
	if err != nil {
		api.writeError(w, err)
		return
	}

	if ifNoneMatch != "" && actionId == "" {
		// Only answer 304 when the caller already holds an image and is not
		// asking for an action such as a forced refresh.
		cachedDashboardData := api.dataCache.Get(dataCacheKey(profile, ifNoneMatch))
		if cachedDashboardData != nil {
			reason := checkForSignificantChange(cachedDashboardData, dashboardData)
			if reason == "" {
				api.trackCacheEvent(true, "no-significant-change")
				w.WriteHeader(http.StatusNotModified)
				return
			}
			log.Debug("significant change in dashboard data", zap.String("reason", reason))
			api.trackCacheEvent(false, reason)
			telemetry.Properties["cache-invalid"] = reason
		} else {
			api.trackCacheEvent(false, "no cached data")
		}
	} else if actionId != "" {
		api.trackCacheEvent(false, fmt.Sprintf("Got action-id: %s", actionId))
	} else {
		api.trackCacheEvent(false, "If-None-Match header not set")
	}

	dc, err := drawDashboardImage(dashboardData)
	if err != nil {
		api.writeError(w, err)
		return
	}

	// Can't use multiwriter here because we need the hash to set
	// the etag header before writing the image to the response
	buf := new(bytes.Buffer)
	if err = dc.EncodeJPG(buf, &jpeg.Options{Quality: 90}); err != nil {
		api.writeError(w, err)
		return
	}
	bufBytes := buf.Bytes()

	hash := sha1.New()
	hash.Write(bufBytes)
	hashValue := fmt.Sprintf("%x", hash.Sum(nil))

	api.dataCache.Set(dataCacheKey(profile, hashValue), dashboardData)
	telemetry.Properties["Etag"] = hashValue
	w.Header().Set("Etag", hashValue)

	actionIDs := []string{}
	for _, action := range dashboardData.Actions {
		actionIDs = append(actionIDs, action.ID)
	}
	actionIDsEncoded, err := json.Marshal(actionIDs)
	if err != nil {
		api.writeError(w, err)
		return
	}
	w.Header().Set("actions", string(actionIDsEncoded))
	w.Header().Set("Content-Type", "image/jpeg")

	_, _ = w.Write(bufBytes)
}

func (api *ApiRouter) dashboardData(r *http.Request, profile *data.Profile) (*data.DashboardData, error) {
	batches, err := api.batches.List(profile.Mobile)
	if err != nil {
		return nil, err
	}
	forecast := api.forecastFor(r, profile, "en")

	var alert *data.DashboardAlert
	if smartAlert := assistant.SmartAlert(api.catalog, batches, tomorrow(forecast), "en"); smartAlert != nil {
		alert = &data.DashboardAlert{
			Type:        string(smartAlert.Type),
			Message:     smartAlert.Message,
			Description: smartAlert.Description,
		}
	}
	return data.NewDashboardData(api.catalog, profile, batches, forecast, alert, api.clock.Now().UTC()), nil
}

// dataCacheKey scopes an ETag to the farmer it was issued to.
func dataCacheKey(profile *data.Profile, etag string) string {
	return profile.ID + ":" + etag
}

func checkForSignificantChange(oldData *data.DashboardData, newData *data.DashboardData) string {
	if oldData == nil {
		return "oldData is nil"
	}

	if newData.GeneratedAt.Sub(oldData.GeneratedAt) > 30*time.Minute {
		return "generatedAt is more than 30 minutes apart"
	}
	if oldData.DateString != newData.DateString {
		return "date has changed"
	}

	if len(oldData.Batches) != len(newData.Batches) {
		return "batch count has changed"
	}
	oldCounts, newCounts := oldData.RiskCounts(), newData.RiskCounts()
	for risk, count := range newCounts {
		if oldCounts[risk] != count {
			return "risk counts have changed"
		}
	}

	if oldData.AlertMessage() != newData.AlertMessage() {
		return "alert has changed"
	}

	if oldData.ForecastStale != newData.ForecastStale {
		return "forecast staleness has changed"
	}
	if len(oldData.Forecast) != len(newData.Forecast) {
		return "forecast availability has changed"
	}
	for i := range newData.Forecast {
		oldDay, newDay := oldData.Forecast[i], newData.Forecast[i]
		if math.Abs(oldDay.TempMax-newDay.TempMax) >= 1 || math.Abs(oldDay.TempMin-newDay.TempMin) >= 1 {
			return "forecast temperature has changed"
		}
		if oldDay.RainIntensity != newDay.RainIntensity || oldDay.Icon != newDay.Icon {
			return "forecast rain has changed"
		}
	}

	return ""
}

// forecastFor loads the forecast for the farmer's district. Weather is
// optional for the callers, so failures are logged and yield nil.
func (api *ApiRouter) forecastFor(r *http.Request, profile *data.Profile, lang string) *weather.Result {
	result, err := api.weather.Fetch(r.Context(), api.districtFor(profile), lang)
	if err != nil {
		api.logger.Warn("weather unavailable", zap.Error(err))
		return nil
	}
	return result
}

func tomorrow(result *weather.Result) weather.DailyForecast {
	if result == nil || len(result.Data) == 0 {
		return weather.DailyForecast{}
	}
	if len(result.Data) > 1 {
		return result.Data[1]
	}
	return result.Data[0]
}

func (api *ApiRouter) districtFor(profile *data.Profile) string {
	if profile != nil && profile.District != "" {
		return profile.District
	}
	return api.defaultDistrict
}

// authenticate resolves the bearer token to a profile, writing a 401 when it
// cannot.
func (api *ApiRouter) authenticate(w http.ResponseWriter, r *http.Request) (*data.Profile, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		writeErrorMessage(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}
	mobile, err := api.sessions.Verify(token)
	if err != nil {
		api.writeError(w, err)
		return nil, false
	}
	profile, err := api.profiles.GetByMobile(mobile)
	if errors.Is(err, data.ErrProfileNotFound) {
		api.writeError(w, session.ErrInvalidToken)
		return nil, false
	}
	if err != nil {
		api.writeError(w, err)
		return nil, false
	}
	return profile, true
}

func (api *ApiRouter) optionalProfile(r *http.Request) *data.Profile {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	mobile, err := api.sessions.Verify(token)
	if err != nil {
		return nil
	}
	profile, err := api.profiles.GetByMobile(mobile)
	if err != nil {
		return nil
	}
	return profile
}

// resolveLanguage picks "en" or "bn" from the lang query parameter, falling
// back to Accept-Language and then English.
func resolveLanguage(r *http.Request) string {
	switch lang := r.URL.Query().Get("lang"); lang {
	case "en", "bn":
		return lang
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return "en"
	}
	_, index, confidence := languageMatcher.Match(tags...)
	if confidence == language.No || index != 1 {
		return "en"
	}
	return "bn"
}

func statusFor(err error) int {
	var unavailable *weather.UnavailableError
	switch {
	case errors.Is(err, data.ErrInvalidInput), errors.Is(err, assistant.ErrEmptyAudio):
		return http.StatusBadRequest
	case errors.Is(err, data.ErrProfileExists):
		return http.StatusConflict
	case errors.Is(err, data.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, data.ErrProfileNotFound),
		errors.Is(err, data.ErrBatchNotFound),
		errors.Is(err, data.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, weather.ErrMissingAPIKey),
		errors.Is(err, assistant.ErrMissingAIKey),
		errors.Is(err, assistant.ErrMissingSpeechKey):
		return http.StatusServiceUnavailable
	case errors.As(err, &unavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (api *ApiRouter) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		api.logger.Error("request failed", zap.Error(err))
	}
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, err.Error())
			return false
		}
		writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
		return false
	}
	return true
}
