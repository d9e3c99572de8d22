package data

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shekor/harvest-api/prediction"
	"github.com/shekor/harvest-api/weather"
)

func newTestProfileStore(t *testing.T) *ProfileStore {
	s := NewProfileStore(filepath.Join(t.TempDir(), "profiles.json"))
	s.bcryptCost = bcrypt.MinCost
	return s
}

func validProfile(mobile string) NewProfile {
	return NewProfile{
		NID:      "1990123456789",
		Mobile:   mobile,
		Name:     "Rahim Uddin",
		District: "Rangpur",
		FarmSize: 2.5,
		Password: "secret",
	}
}

func TestProfileStore_AddAndGet(t *testing.T) {
	store := newTestProfileStore(t)

	created, err := store.Add(validProfile("01711000000"))
	require.NoError(t, err)
	assert.Contains(t, created.ID, "user_")
	assert.Equal(t, RoleFarmer, created.Role)

	got, err := store.GetByMobile("01711000000")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Rangpur", got.District)
}

func TestProfileStore_DuplicateMobile(t *testing.T) {
	store := newTestProfileStore(t)

	_, err := store.Add(validProfile("01711000000"))
	require.NoError(t, err)

	_, err = store.Add(validProfile("01711000000"))
	assert.ErrorIs(t, err, ErrProfileExists)
}

func TestProfileStore_Validation(t *testing.T) {
	store := newTestProfileStore(t)

	p := validProfile("01711000000")
	p.FarmSize = 0
	p.Name = ""
	_, err := store.Add(p)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "FarmSize")
	assert.Contains(t, err.Error(), "Name")

	_, err = store.GetByMobile("01711000000")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileStore_Authenticate(t *testing.T) {
	store := newTestProfileStore(t)
	_, err := store.Add(validProfile("01711000000"))
	require.NoError(t, err)

	p, err := store.Authenticate("01711000000", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Rahim Uddin", p.Name)

	_, err = store.Authenticate("01711000000", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = store.Authenticate("01999999999", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProfileStore_StoresOnlyHash(t *testing.T) {
	store := newTestProfileStore(t)
	_, err := store.Add(validProfile("01711000000"))
	require.NoError(t, err)

	content, err := os.ReadFile(store.filePath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), `"secret"`)
	assert.Contains(t, string(content), "password_hash")
}

func validBatch() BatchForm {
	return BatchForm{
		CropType:           "paddy",
		EstimatedWeight:    500,
		HarvestDate:        Date(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)),
		StorageLocation:    "Home store",
		StorageMethod:      "jute_bag_stack",
		StorageTemperature: 28,
		MoistureLevel:      14,
	}
}

func TestBatchStore_ScopedByOwner(t *testing.T) {
	store := NewBatchStore(filepath.Join(t.TempDir(), "batches.json"))

	first, err := store.Add("01711000000", validBatch())
	require.NoError(t, err)
	assert.Equal(t, prediction.RiskLow, first.Prediction.RiskLevel)

	wet := validBatch()
	wet.MoistureLevel = 80
	second, err := store.Add("01711000000", wet)
	require.NoError(t, err)
	assert.Equal(t, prediction.RiskHigh, second.Prediction.RiskLevel)

	_, err = store.Add("01822000000", validBatch())
	require.NoError(t, err)

	list, err := store.List("01711000000")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "batches are listed in registration order")
	assert.Equal(t, second.ID, list[1].ID)

	_, err = store.Get("01822000000", first.ID)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	got, err := store.Get("01711000000", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-05-20", got.Data.HarvestDate.String())
}

func TestBatchStore_ListEmpty(t *testing.T) {
	store := NewBatchStore(filepath.Join(t.TempDir(), "batches.json"))

	list, err := store.List("nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestBatchStore_Delete(t *testing.T) {
	store := NewBatchStore(filepath.Join(t.TempDir(), "batches.json"))

	b, err := store.Add("01711000000", validBatch())
	require.NoError(t, err)

	assert.ErrorIs(t, store.Delete("01822000000", b.ID), ErrBatchNotFound)
	require.NoError(t, store.Delete("01711000000", b.ID))
	assert.ErrorIs(t, store.Delete("01711000000", b.ID), ErrBatchNotFound)

	list, err := store.List("01711000000")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBatchForm_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BatchForm)
	}{
		{"missing crop", func(f *BatchForm) { f.CropType = "" }},
		{"zero weight", func(f *BatchForm) { f.EstimatedWeight = 0 }},
		{"negative temperature", func(f *BatchForm) { f.StorageTemperature = -1 }},
		{"moisture over 100", func(f *BatchForm) { f.MoistureLevel = 101 }},
		{"missing harvest date", func(f *BatchForm) { f.HarvestDate = Date{} }},
		{"missing storage method", func(f *BatchForm) { f.StorageMethod = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validBatch()
			tt.mutate(&f)
			assert.ErrorIs(t, f.Validate(), ErrInvalidInput)
		})
	}
	assert.NoError(t, validBatch().Validate())
}

func TestBatchStore_ConcurrentAdds(t *testing.T) {
	store := NewBatchStore(filepath.Join(t.TempDir(), "batches.json"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Add("01711000000", validBatch())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := store.List("01711000000")
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func TestNotificationStore(t *testing.T) {
	store := NewNotificationStore(filepath.Join(t.TempDir(), "notifications.json"))
	clk := fakeclock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	store.clock = clk

	first, err := store.Add("01711000000", "warning", "Heavy Rain Alert", "Cover the paddy.")
	require.NoError(t, err)
	clk.Increment(time.Minute)
	second, err := store.Add("01711000000", "success", "All Clear", "Nothing to do.")
	require.NoError(t, err)

	list, err := store.List("01711000000")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	count, err := store.UnreadCount("01711000000")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.MarkRead("01711000000", first.ID))
	count, err = store.UnreadCount("01711000000")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, store.MarkRead("01822000000", first.ID), ErrNotificationNotFound)

	require.NoError(t, store.MarkAllRead("01711000000"))
	count, err = store.UnreadCount("01711000000")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNotificationStore_AddUnlessLatest(t *testing.T) {
	store := NewNotificationStore(filepath.Join(t.TempDir(), "notifications.json"))

	first, added, err := store.AddUnlessLatest("01711000000", "warning", "Heavy Rain Alert", "Cover the paddy.")
	require.NoError(t, err)
	assert.True(t, added)

	again, added, err := store.AddUnlessLatest("01711000000", "warning", "Heavy Rain Alert", "Cover the paddy.")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, first.ID, again.ID)

	_, added, err = store.AddUnlessLatest("01711000000", "warning", "Heavy Rain Alert", "Move it to higher ground.")
	require.NoError(t, err)
	assert.True(t, added)

	// another owner's history does not count
	_, added, err = store.AddUnlessLatest("01822000000", "warning", "Heavy Rain Alert", "Cover the paddy.")
	require.NoError(t, err)
	assert.True(t, added)

	list, err := store.List("01711000000")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNotificationStore_Cap(t *testing.T) {
	store := NewNotificationStore(filepath.Join(t.TempDir(), "notifications.json"))

	var last *Notification
	for i := 0; i < MaxNotifications+5; i++ {
		n, err := store.Add("01711000000", "info", "Batch Status", "")
		require.NoError(t, err)
		last = n
	}

	list, err := store.List("01711000000")
	require.NoError(t, err)
	assert.Len(t, list, MaxNotifications)
	assert.Equal(t, last.ID, list[0].ID)
}

func TestCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	assert.Len(t, c.Crops, 3)
	assert.Len(t, c.StorageMethods, 3)
	assert.Contains(t, c.Districts, "Dhaka")
	assert.Equal(t, "Paddy/Rice", c.CropName("paddy", "en"))
	assert.Equal(t, "গম", c.CropName("wheat", "bn"))
	assert.Equal(t, "barley", c.CropName("barley", "en"))
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2025-05-20"`)))
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-05-20"`, string(b))

	assert.Error(t, d.UnmarshalJSON([]byte(`2025-05-20`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`"20/05/2025"`)))
}

func TestWeatherCacheFile(t *testing.T) {
	dir := t.TempDir()
	cache := NewWeatherCacheFile(filepath.Join(dir, "weather-cache.json"))

	entry, err := cache.Get("weather:Dhaka:en")
	require.NoError(t, err)
	assert.Nil(t, entry)

	ts := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Set("weather:Dhaka:en", weather.CacheEntry{
		Timestamp: ts,
		Data:      []weather.DailyForecast{{DayEn: "Today", RainChance: 80}},
	}))

	// a second handle on the same file sees the entry, as after a restart
	reopened := NewWeatherCacheFile(filepath.Join(dir, "weather-cache.json"))
	entry, err = reopened.Get("weather:Dhaka:en")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, ts.Equal(entry.Timestamp))
	assert.Equal(t, 80, entry.Data[0].RainChance)

	require.NoError(t, reopened.Remove("weather:Dhaka:en"))
	entry, err = cache.Get("weather:Dhaka:en")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestWeatherCacheFile_CorruptEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather-cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"entries":{"weather:Dhaka:en":{"timestamp":"yesterday"}}}`), 0644))

	_, err := NewWeatherCacheFile(path).Get("weather:Dhaka:en")
	assert.ErrorIs(t, err, weather.ErrCorruptEntry)
}

type stubForecastSource struct {
	err error
}

func (s *stubForecastSource) Configured() bool { return true }

func (s *stubForecastSource) Forecast(ctx context.Context, location, lang string) (*weather.APIResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	var resp weather.APIResponse
	err := json.Unmarshal([]byte(`{"forecast":{"forecastday":[
		{"date":"2025-06-01","day":{"maxtemp_c":31,"mintemp_c":25,"avghumidity":80,"daily_chance_of_rain":70,"condition":{"text":"Rain"}}},
		{"date":"2025-06-02","day":{"maxtemp_c":30,"mintemp_c":24,"avghumidity":75,"daily_chance_of_rain":20,"condition":{"text":"Cloudy"}}}
	]}}`), &resp)
	return &resp, err
}

func TestWeatherCacheFile_RecoversFromCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather-cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	cache := NewWeatherCacheFile(path)
	_, err := cache.Get("weather:Dhaka:en")
	assert.ErrorIs(t, err, weather.ErrCorruptEntry)

	source := &stubForecastSource{}
	clk := fakeclock.NewFakeClock(time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC))
	service := weather.NewService(source, cache, weather.WithClock(clk))

	result, err := service.Fetch(context.Background(), "Dhaka", "en")
	require.NoError(t, err)
	assert.False(t, result.IsCached)

	// the successful fetch rewrote the file
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw), string(raw))
	entry, err := cache.Get("weather:Dhaka:en")
	require.NoError(t, err)
	require.NotNil(t, entry)

	clk.Increment(2 * time.Hour)
	source.err = errors.New("connection refused")
	result, err = service.Fetch(context.Background(), "Dhaka", "en")
	require.NoError(t, err)
	assert.True(t, result.IsStale)
	assert.Equal(t, 70, result.Data[0].RainChance)
}

func TestJsonUpdateExclusiveLockResetCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batches.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batches":[{"id":`), 0644))

	err := JsonUpdateExclusiveLock(path, func(b *batches) error { return nil })
	assert.Error(t, err, "strict update keeps failing on a corrupt file")

	err = JsonUpdateExclusiveLockResetCorrupt(path, func(b *batches) error {
		assert.Empty(t, b.Batches)
		return nil
	})
	require.NoError(t, err)

	got, err := JsonReadSharedLock[batches](path)
	require.NoError(t, err)
	assert.Empty(t, got.Batches)
}

func TestJsonReadSharedLock_MissingFile(t *testing.T) {
	got, err := JsonReadSharedLock[batches](filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, got.Batches)
}

func TestJsonUpdateExclusiveLock_ErrorLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batches.json")
	store := NewBatchStore(path)
	_, err := store.Add("01711000000", validBatch())
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = JsonUpdateExclusiveLock(path, func(b *batches) error {
		b.Batches = nil
		return ErrBatchNotFound
	})
	assert.ErrorIs(t, err, ErrBatchNotFound)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNewDashboardData(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	profile := &Profile{Name: "Rahim", District: "Rangpur"}
	stored := []StoredBatch{
		{ID: "a", Data: BatchForm{CropType: "paddy"}, Prediction: prediction.Result{RiskLevel: prediction.RiskHigh, EtclDays: 15}},
		{ID: "b", Data: BatchForm{CropType: "jute"}, Prediction: prediction.Result{RiskLevel: prediction.RiskLow, EtclDays: 90}},
	}
	forecast := &weather.Result{
		Data:    make([]weather.DailyForecast, 5),
		IsStale: true,
	}

	d := NewDashboardData(catalog, profile, stored, forecast, nil, now)
	assert.Equal(t, "Sunday, 01 June 2025", d.DateString)
	assert.Len(t, d.Forecast, 3)
	assert.True(t, d.ForecastStale)
	assert.Equal(t, "Paddy/Rice", d.Batches[0].Crop)
	assert.Equal(t, "jute", d.Batches[1].Crop)
	assert.Equal(t, map[prediction.Risk]int{prediction.RiskLow: 1, prediction.RiskMedium: 0, prediction.RiskHigh: 1}, d.RiskCounts())
	assert.Equal(t, "", d.AlertMessage())

	d = NewDashboardData(catalog, profile, nil, nil, &DashboardAlert{Message: "All Clear"}, now)
	assert.Empty(t, d.Forecast)
	assert.Empty(t, d.Batches)
	assert.Equal(t, "All Clear", d.AlertMessage())
}
