package downloader

import (
	"context"
	"errors"

	"github.com/bluele/gcache"
)

// Caches downloaded files in memory, keyed by URL.
type MemoryDownloader struct {
	cache gcache.Cache
}

func NewMemoryDownloader() *MemoryDownloader {
	return NewMemoryDownloaderWithClock(gcache.NewRealClock())
}

// Entry expiration is judged by clock. Mostly useful for tests.
func NewMemoryDownloaderWithClock(clock gcache.Clock) *MemoryDownloader {
	return &MemoryDownloader{
		cache: gcache.New(16).LRU().Clock(clock).Build(),
	}
}

func (d *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if options.Cache {
		value, err := d.cache.Get(url)
		if err == nil {
			return value.([]byte), nil
		}
		if !errors.Is(err, gcache.KeyNotFoundError) {
			return nil, err
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	if options.Cache {
		err = d.cache.SetWithExpire(url, body, options.CacheTTL)
		if err != nil {
			return nil, err
		}
	}

	return body, nil
}
