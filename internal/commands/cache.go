package commands

import (
	"sync"
	"time"
)

type CacheItem struct {
	ChartData  []byte
	Caption    string
	Expiration time.Time
}

var (
	chartCacheMu sync.Mutex
	chartCache   = make(map[string]*CacheItem)
)

func cacheGet(key string, now time.Time) (*CacheItem, bool) {
	chartCacheMu.Lock()
	defer chartCacheMu.Unlock()

	if item, found := chartCache[key]; found && now.Before(item.Expiration) {
		return item, true
	}
	return nil, false
}

func cacheSet(key string, chartData []byte, caption string, expiration time.Time) {
	chartCacheMu.Lock()
	defer chartCacheMu.Unlock()

	chartCache[key] = &CacheItem{
		ChartData:  chartData,
		Caption:    caption,
		Expiration: expiration,
	}
}

func cacheReset() {
	chartCacheMu.Lock()
	defer chartCacheMu.Unlock()

	chartCache = make(map[string]*CacheItem)
}
