package storage

import (
	"errors"
	"time"

	"github.com/olalid/ha-gtfs/model"
)

var ErrFeedNotFound = errors.New("feed not found")

type Storage interface {
	// Retrieves all feed metadata records matching the given
	// filter, most recently retrieved first.
	ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error)

	// Writes a FeedMetadata record. If a record with the same
	// hash exists, it is replaced.
	WriteFeedMetadata(metadata *FeedMetadata) error

	// Removes a feed's metadata and all of its records.
	DeleteFeed(hash string) error

	// Gets a reader for the feed with the given hash.
	GetReader(hash string) (FeedReader, error)

	// Gets a writer for the feed with the given hash. Any
	// records previously written for the hash are discarded.
	GetWriter(hash string) (FeedWriter, error)
}

type ListFeedsFilter struct {
	// If set, only include feeds loaded from the given source.
	Source string

	// If set, only include feeds with the given hash.
	Hash string
}

// Metadata for a parsed static GTFS feed. The parsed data can be
// accessed via FeedReader.
type FeedMetadata struct {
	Hash              string
	Source            string
	RetrievedAt       time.Time
	Timezone          string
	CalendarStartDate string
	CalendarEndDate   string
	FeedStartDate     string
	FeedEndDate       string
	MaxArrival        string
	MaxDeparture      string
}

// Writes GTFS records for a single feed.
//
// As stop_times.txt tends to be very large, BeginStopTimes() and
// EndStopTimes() are called before and after all calls to
// WriteStopTime(), allowing transactions/batching/whathaveyou. Same
// goes for trips.
type FeedWriter interface {
	WriteAgency(agency *model.Agency) error
	WriteStop(stop *model.Stop) error
	WriteRoute(route *model.Route) error
	WriteTrip(trip *model.Trip) error
	BeginTrips() error
	EndTrips() error
	WriteCalendar(cal *model.Calendar) error
	WriteCalendarDate(caldate *model.CalendarDate) error
	WriteStopTime(stopTime *model.StopTime) error
	BeginStopTimes() error
	EndStopTimes() error
	Close() error
}

type FeedReader interface {
	Agencies() ([]*model.Agency, error)
	Stops() ([]*model.Stop, error)
	Routes() ([]*model.Route, error)
	Trips() ([]*model.Trip, error)
	StopTimes() ([]*model.StopTime, error)
	Calendars() ([]*model.Calendar, error)
	CalendarDates() ([]*model.CalendarDate, error)

	// Services IDs for all services active on the given
	// date. Date is given as YYYYMMDD.
	ActiveServices(date string) ([]string, error)

	// List of stop_times and associated data matching the
	// provided filter, ordered by arrival time.
	StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error)
}

// Filter for StopTimeEvents()
type StopTimeEventFilter struct {
	// Limit results to events for the given stop ID. This can
	// reference a parent station, in which case all sub-stops are
	// included.
	StopID string

	// Limit results to a set of services.
	ServiceIDs []string

	// Drop stop_times passengers can't board, i.e. those with
	// pickup_type model.PickupTypeNotBoardable.
	BoardableOnly bool
}

// Holds information about a stop_time record, along with the
// associated trip, route and stop.
type StopTimeEvent struct {
	StopTime *model.StopTime
	Trip     *model.Trip
	Route    *model.Route
	Stop     *model.Stop
}
