package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheDuration is how long a fetched forecast counts as fresh.
const DefaultCacheDuration = time.Hour

const sharedFetchTimeout = 30 * time.Second

var ErrMissingAPIKey = errors.New("weather API key is missing, set WEATHER_API_KEY")

// UnavailableError is returned when the fetch failed and nothing was cached.
type UnavailableError struct {
	Lang string
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Lang == "bn" {
		return "আবহাওয়ার তথ্য লোড করা যাচ্ছে না। A network error occurred and no cached data is available."
	}
	return "Failed to load weather data. A network error occurred and no cached data is available."
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// ForecastSource is the upstream weather API.
type ForecastSource interface {
	Configured() bool
	Forecast(ctx context.Context, location, lang string) (*APIResponse, error)
}

type Result struct {
	Data      []DailyForecast `json:"data"`
	Alerts    []Alert         `json:"alerts"`
	IsCached  bool            `json:"isCached"`
	IsStale   bool            `json:"isStale"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Service is a read-through cache in front of a ForecastSource.
type Service struct {
	source        ForecastSource
	cache         Cache
	cacheDuration time.Duration
	clock         clock.Clock
	logger        *zap.Logger
	group         singleflight.Group
}

type Option func(*Service)

func WithCacheDuration(d time.Duration) Option {
	return func(s *Service) { s.cacheDuration = d }
}

func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(source ForecastSource, cache Cache, opts ...Option) *Service {
	s := &Service{
		source:        source,
		cache:         cache,
		cacheDuration: DefaultCacheDuration,
		clock:         clock.NewClock(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func CacheKey(location, lang string) string {
	return fmt.Sprintf("weather:%s:%s", location, lang)
}

// Fetch returns the forecast for location in lang. A fresh cache entry is
// served without a network call; otherwise the API is queried and, if that
// fails, the last cached entry is returned marked stale.
func (s *Service) Fetch(ctx context.Context, location, lang string) (*Result, error) {
	if !s.source.Configured() {
		return nil, ErrMissingAPIKey
	}

	key := CacheKey(location, lang)
	// The shared fetch must not die with whichever caller happened to start it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		defer cancel()
		return s.fetch(fetchCtx, key, location, lang)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		// followers never run the func, so their context is released here
		cancel()
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (s *Service) fetch(ctx context.Context, key, location, lang string) (*Result, error) {
	log := s.logger.With(zap.String("key", key))
	now := s.clock.Now()

	cached, err := s.cache.Get(key)
	if err != nil {
		log.Warn("discarding unreadable weather cache entry", zap.Error(err))
		if rmErr := s.cache.Remove(key); rmErr != nil {
			log.Warn("failed to remove weather cache entry", zap.Error(rmErr))
		}
		cached = nil
	}
	if cached != nil && now.Sub(cached.Timestamp) < s.cacheDuration {
		log.Debug("weather cache hit")
		return newResult(cached.Data, cached.Timestamp, true, false), nil
	}

	days, err := s.fetchFromSource(ctx, location, lang)
	if err != nil {
		log.Error("error fetching weather data", zap.Error(err))
		if cached != nil {
			return newResult(cached.Data, cached.Timestamp, true, true), nil
		}
		return nil, &UnavailableError{Lang: lang, Err: err}
	}

	if err := s.cache.Set(key, CacheEntry{Timestamp: now, Data: days}); err != nil {
		log.Warn("failed to cache weather data", zap.Error(err))
	}
	return newResult(days, now, false, false), nil
}

func (s *Service) fetchFromSource(ctx context.Context, location, lang string) ([]DailyForecast, error) {
	resp, err := s.source.Forecast(ctx, location, lang)
	if err != nil {
		return nil, err
	}
	return transform(resp, lang)
}

func newResult(days []DailyForecast, fetchedAt time.Time, cached, stale bool) *Result {
	return &Result{
		Data:      days,
		Alerts:    DeriveAlerts(days),
		IsCached:  cached,
		IsStale:   stale,
		FetchedAt: fetchedAt,
	}
}
