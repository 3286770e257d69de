package gtfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrFeedNotCovering = errors.New("feed does not cover today and tomorrow")

// Source of parsed feeds. Implemented by Loader.
type FeedLoader interface {
	Load(ctx context.Context, source string) (*Static, error)
}

// Outcome of a refresh of a ScheduleCache.
type RefreshResult struct {
	Date     string
	Valid    bool
	Reason   error
	StopName string
	Today    int
	Tomorrow int
	Hash     string
}

// ScheduleCache holds the departures from one stop for the current
// day and the next, as computed from a feed.
//
// The tables are recomputed when the date changes. Until then,
// lookups are answered from memory. All methods are safe for
// concurrent use.
type ScheduleCache struct {
	// If >0, the feed is also reloaded when the last refresh is
	// at least this old.
	MaxAge time.Duration

	loader FeedLoader
	source string
	stopID string

	mutex       sync.Mutex
	valid       bool
	date        string
	refreshedAt time.Time
	stopName    string
	today       []Departure
	tomorrow    []Departure
}

func NewScheduleCache(loader FeedLoader, source string, stopID string) *ScheduleCache {
	return &ScheduleCache{
		loader: loader,
		source: source,
		stopID: stopID,
	}
}

func (c *ScheduleCache) StopID() string {
	return c.stopID
}

// Loads the feed and recomputes the tables for now's date and the
// day after.
//
// A feed that doesn't cover both days leaves the cache invalid, but
// is not an error. On error the cache is invalidated and the next
// RefreshIfStale will try again.
func (c *ScheduleCache) Refresh(ctx context.Context, now time.Time) (RefreshResult, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.refresh(ctx, now)
}

func (c *ScheduleCache) refresh(ctx context.Context, now time.Time) (RefreshResult, error) {
	date := now.Format("20060102")

	static, err := c.loader.Load(ctx, c.source)
	if err != nil {
		c.invalidate("")
		return RefreshResult{Date: date}, fmt.Errorf("loading feed: %w", err)
	}

	result := RefreshResult{
		Date: date,
		Hash: static.Metadata.Hash,
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	if !static.Covers(today) || !static.Covers(tomorrow) {
		c.invalidate(date)
		c.refreshedAt = now
		result.Reason = ErrFeedNotCovering
		return result, nil
	}

	todayDepartures, err := static.DayDepartures(c.stopID, today)
	if err != nil {
		c.invalidate("")
		return result, fmt.Errorf("computing departures for %s: %w", date, err)
	}

	tomorrowDepartures, err := static.DayDepartures(c.stopID, tomorrow)
	if err != nil {
		c.invalidate("")
		return result, fmt.Errorf("computing departures for %s: %w", tomorrow.Format("20060102"), err)
	}

	stopName, err := static.StopName(c.stopID)
	if err != nil {
		c.invalidate("")
		return result, fmt.Errorf("getting stop name: %w", err)
	}

	c.valid = true
	c.date = date
	c.refreshedAt = now
	c.stopName = stopName
	c.today = todayDepartures
	c.tomorrow = tomorrowDepartures

	result.Valid = true
	result.StopName = stopName
	result.Today = len(todayDepartures)
	result.Tomorrow = len(tomorrowDepartures)
	return result, nil
}

func (c *ScheduleCache) invalidate(date string) {
	c.valid = false
	c.date = date
	c.stopName = ""
	c.today = nil
	c.tomorrow = nil
}

// Refreshes if the cache was computed for another date than now's,
// or is older than MaxAge. Returns nil result if nothing was done.
func (c *ScheduleCache) RefreshIfStale(ctx context.Context, now time.Time) (*RefreshResult, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.stale(now) {
		return nil, nil
	}

	result, err := c.refresh(ctx, now)
	return &result, err
}

func (c *ScheduleCache) stale(now time.Time) bool {
	if c.date != now.Format("20060102") {
		return true
	}
	return c.MaxAge > 0 && now.Sub(c.refreshedAt) >= c.MaxAge
}

// Returns the first departure at or after now. Never loads
// anything: if the cache is invalid or computed for another date,
// there is no departure.
func (c *ScheduleCache) Next(now time.Time) (Departure, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.valid || c.date != now.Format("20060102") {
		return Departure{}, false
	}

	now = now.Truncate(time.Second)

	// Both tables are ordered, but today's trips running past
	// midnight may depart after tomorrow's first ones.
	next, found := firstAtOrAfter(c.today, now)
	if d, ok := firstAtOrAfter(c.tomorrow, now); ok {
		if !found || d.Time.Before(next.Time) {
			next, found = d, true
		}
	}

	return next, found
}

func firstAtOrAfter(departures []Departure, t time.Time) (Departure, bool) {
	for _, d := range departures {
		if !d.Time.Before(t) {
			return d, true
		}
	}
	return Departure{}, false
}

// RefreshIfStale followed by Next.
func (c *ScheduleCache) Lookup(ctx context.Context, now time.Time) (Departure, bool, *RefreshResult, error) {
	result, err := c.RefreshIfStale(ctx, now)
	if err != nil {
		return Departure{}, false, result, err
	}

	d, ok := c.Next(now)
	return d, ok, result, nil
}

func (c *ScheduleCache) StopName() (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.valid {
		return "", false
	}
	return c.stopName, true
}

func (c *ScheduleCache) Valid() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.valid
}

// Date (YYYYMMDD) the tables were computed for. Empty if never
// refreshed, or if the last refresh failed.
func (c *ScheduleCache) Date() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.date
}

func (c *ScheduleCache) Today() []Departure {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]Departure{}, c.today...)
}

func (c *ScheduleCache) Tomorrow() []Departure {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]Departure{}, c.tomorrow...)
}
