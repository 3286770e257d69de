package gtfs

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/olalid/ha-gtfs/downloader"
	"github.com/olalid/ha-gtfs/parse"
	"github.com/olalid/ha-gtfs/storage"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultMaxSize  = 800 << 20 // 800 MB
	DefaultCacheTTL = 0
	DefaultRetries  = 3
)

// Loader reads static GTFS archives from disk or over HTTP and
// parses them into storage.
//
// Archives are identified by the sha256 of their content. An archive
// already parsed is reused as is, and when the archive at a source
// changes, the feed previously parsed from it is removed.
type Loader struct {
	Timeout    time.Duration
	MaxSize    int
	CacheTTL   time.Duration
	Retries    uint64
	Headers    map[string]string
	Downloader downloader.Downloader
	Logger     zerolog.Logger

	// Used to timestamp FeedMetadata.RetrievedAt.
	Now func() time.Time

	storage storage.Storage
	mutex   sync.Mutex
}

// Creates a new Loader on top of the given storage.
//
// Remote archives are fetched via an in-memory Downloader, but are
// only cached if CacheTTL is set.
func NewLoader(s storage.Storage) *Loader {
	return &Loader{
		Timeout:    DefaultTimeout,
		MaxSize:    DefaultMaxSize,
		CacheTTL:   DefaultCacheTTL,
		Retries:    DefaultRetries,
		Downloader: downloader.NewMemoryDownloader(),
		Logger:     zerolog.Nop(),
		Now:        time.Now,

		storage: s,
	}
}

// Loads the archive at source: a local path, a file:// URL or an
// http(s):// URL.
func (l *Loader) Load(ctx context.Context, source string) (*Static, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	body, err := l.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(body))

	log := l.Logger.With().Str("source", source).Str("hash", hash).Logger()

	feeds, err := l.storage.ListFeeds(storage.ListFeedsFilter{Hash: hash})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}

	var metadata *storage.FeedMetadata
	if len(feeds) > 0 {
		// Already parsed. Possibly for a different source, in
		// which case that source keeps ownership.
		metadata = feeds[0]
		log.Debug().Msg("reusing parsed feed")
	} else {
		metadata, err = l.parse(hash, body)
		if err != nil {
			return nil, err
		}
		metadata.Source = source
		metadata.RetrievedAt = l.Now().UTC()

		err = l.storage.WriteFeedMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("writing metadata: %w", err)
		}
		log.Debug().
			Str("calendar_start", metadata.CalendarStartDate).
			Str("calendar_end", metadata.CalendarEndDate).
			Msg("parsed feed")
	}

	err = l.deleteSuperseded(source, hash)
	if err != nil {
		return nil, err
	}

	reader, err := l.storage.GetReader(hash)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	return NewStatic(reader, metadata)
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path. Single letter schemes are Windows drives.
		return os.ReadFile(source)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		// file:gtfs.zip has no slash and parses as opaque.
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		return os.ReadFile(path)
	case "http", "https":
		return l.Downloader.Get(ctx, source, l.Headers, downloader.GetOptions{
			Timeout:  l.Timeout,
			MaxSize:  l.MaxSize,
			Cache:    l.CacheTTL > 0,
			CacheTTL: l.CacheTTL,
			Retries:  l.Retries,
		})
	}

	return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
}

func (l *Loader) parse(hash string, body []byte) (*storage.FeedMetadata, error) {
	writer, err := l.storage.GetWriter(hash)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}

	metadata, err := parse.ParseStatic(writer, body)
	if err != nil {
		delErr := l.storage.DeleteFeed(hash)
		if delErr != nil && !errors.Is(delErr, storage.ErrFeedNotFound) {
			return nil, errors.Join(
				fmt.Errorf("parsing: %w", err),
				fmt.Errorf("deleting partial feed: %w", delErr),
			)
		}
		return nil, fmt.Errorf("parsing: %w", err)
	}

	metadata.Hash = hash
	return metadata, nil
}

// Removes feeds previously parsed from source, other than hash.
func (l *Loader) deleteSuperseded(source string, hash string) error {
	feeds, err := l.storage.ListFeeds(storage.ListFeedsFilter{Source: source})
	if err != nil {
		return fmt.Errorf("listing feeds: %w", err)
	}

	for _, feed := range feeds {
		if feed.Hash == hash {
			continue
		}
		err = l.storage.DeleteFeed(feed.Hash)
		if err != nil && !errors.Is(err, storage.ErrFeedNotFound) {
			return fmt.Errorf("deleting feed %s: %w", feed.Hash, err)
		}
		l.Logger.Debug().
			Str("source", source).
			Str("hash", feed.Hash).
			Msg("deleted superseded feed")
	}

	return nil
}
