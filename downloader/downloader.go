package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrTooLarge = errors.New("response exceeds max size")

type GetOptions struct {
	MaxSize  int
	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration

	// Failed requests are retried this many times, with
	// exponential backoff starting at RetryInterval. Only server
	// errors and network errors are retried.
	Retries       uint64
	RetryInterval time.Duration
}

// A thing capable of downloading a file, optionally with caching
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// Gets a file. Doesn't cache. Provided as convenience for
// implementing custom Downloaders.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	b := backoff.NewExponentialBackOff()
	if options.RetryInterval > 0 {
		b.InitialInterval = options.RetryInterval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, options.Retries), ctx)

	return backoff.RetryWithData(func() ([]byte, error) {
		return get(ctx, client, url, headers, options.MaxSize)
	}, policy)
}

func get(ctx context.Context, client *http.Client, url string, headers map[string]string, maxSize int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("status %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var reader io.Reader = resp.Body
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(maxSize)+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if maxSize > 0 && len(body) > maxSize {
		return nil, backoff.Permanent(ErrTooLarge)
	}

	return body, nil
}
