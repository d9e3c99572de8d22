package data

import (
	"encoding/json"
	"fmt"

	"github.com/shekor/harvest-api/weather"
)

type weatherCacheFile struct {
	Entries map[string]json.RawMessage `json:"entries"`
}

// WeatherCacheFile is a weather.Cache kept in a JSON file so the last good
// forecast outlives a restart.
type WeatherCacheFile struct {
	filePath string
}

var _ weather.Cache = (*WeatherCacheFile)(nil)

func NewWeatherCacheFile(filePath string) *WeatherCacheFile {
	return &WeatherCacheFile{filePath: filePath}
}

func (c *WeatherCacheFile) Get(key string) (*weather.CacheEntry, error) {
	f, err := JsonReadSharedLock[weatherCacheFile](c.filePath)
	if err != nil {
		if isDecodeError(err) {
			return nil, fmt.Errorf("%w: %s: %v", weather.ErrCorruptEntry, c.filePath, err)
		}
		return nil, err
	}
	raw, ok := f.Entries[key]
	if !ok {
		return nil, nil
	}
	var entry weather.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", weather.ErrCorruptEntry, key, err)
	}
	return &entry, nil
}

func (c *WeatherCacheFile) Set(key string, entry weather.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return JsonUpdateExclusiveLockResetCorrupt(c.filePath, func(f *weatherCacheFile) error {
		if f.Entries == nil {
			f.Entries = map[string]json.RawMessage{}
		}
		f.Entries[key] = raw
		return nil
	})
}

func (c *WeatherCacheFile) Remove(key string) error {
	return JsonUpdateExclusiveLockResetCorrupt(c.filePath, func(f *weatherCacheFile) error {
		delete(f.Entries, key)
		return nil
	})
}
