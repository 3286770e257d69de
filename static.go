package gtfs

import (
	"fmt"
	"sort"
	"time"

	"github.com/olalid/ha-gtfs/model"
	"github.com/olalid/ha-gtfs/storage"
)

// A parsed static feed, read through storage.
type Static struct {
	Metadata *storage.FeedMetadata
	Reader   storage.FeedReader

	location *time.Location
}

func NewStatic(reader storage.FeedReader, metadata *storage.FeedMetadata) (*Static, error) {
	location, err := time.LoadLocation(metadata.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	return &Static{
		Metadata: metadata,
		Reader:   reader,
		location: location,
	}, nil
}

// The agency timezone.
func (s *Static) Location() *time.Location {
	return s.location
}

// Reports whether the feed is valid on the given day. Dates from
// feed_info.txt take precedence over the range spanned by the
// calendars.
func (s *Static) Covers(day time.Time) bool {
	start := s.Metadata.FeedStartDate
	if start == "" {
		start = s.Metadata.CalendarStartDate
	}
	end := s.Metadata.FeedEndDate
	if end == "" {
		end = s.Metadata.CalendarEndDate
	}
	if start == "" || end == "" {
		return false
	}

	date := day.Format("20060102")
	return start <= date && date <= end
}

type Departure struct {
	StopID         string
	RouteID        string
	RouteShortName string
	RouteLongName  string
	TripID         string
	StopSequence   uint32
	DirectionID    int8
	Headsign       string
	PickupType     model.PickupType

	// Arrival as given by the feed, "HH:MM:SS". Hours may exceed
	// 23.
	ArrivalTime string

	// Arrival instant: midnight of the service day plus the
	// arrival offset.
	Time time.Time
}

// Short name of the route, or long name if there's no short name.
func (d Departure) Route() string {
	if d.RouteShortName != "" {
		return d.RouteShortName
	}
	return d.RouteLongName
}

// Returns all boardable departures from a stop on the service day
// of the given time, ordered by arrival.
//
// Instants are computed in day's timezone. If stopID references a
// station, departures from all its stops are included.
func (s *Static) DayDepartures(stopID string, day time.Time) ([]Departure, error) {
	departures := []Departure{}

	serviceIDs, err := s.Reader.ActiveServices(day.Format("20060102"))
	if err != nil {
		return nil, fmt.Errorf("getting active services: %w", err)
	}
	if len(serviceIDs) == 0 {
		return departures, nil
	}

	events, err := s.Reader.StopTimeEvents(storage.StopTimeEventFilter{
		StopID:        stopID,
		ServiceIDs:    serviceIDs,
		BoardableOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("getting stop time events: %w", err)
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	for _, event := range events {
		headsign := event.StopTime.Headsign
		if headsign == "" {
			headsign = event.Trip.Headsign
		}

		departures = append(departures, Departure{
			StopID:         event.Stop.ID,
			RouteID:        event.Route.ID,
			RouteShortName: event.Route.ShortName,
			RouteLongName:  event.Route.LongName,
			TripID:         event.Trip.ID,
			StopSequence:   event.StopTime.StopSequence,
			DirectionID:    event.Trip.DirectionID,
			Headsign:       headsign,
			PickupType:     event.StopTime.PickupType,
			ArrivalTime:    model.ClockString(event.StopTime.Arrival),
			Time:           midnight.Add(event.StopTime.ArrivalTime()),
		})
	}

	sort.SliceStable(departures, func(i, j int) bool {
		if departures[i].Time.Equal(departures[j].Time) {
			return departures[i].TripID < departures[j].TripID
		}
		return departures[i].Time.Before(departures[j].Time)
	})

	return departures, nil
}

// Name of a stop. Empty if there is no such stop.
func (s *Static) StopName(stopID string) (string, error) {
	stops, err := s.Reader.Stops()
	if err != nil {
		return "", fmt.Errorf("getting stops: %w", err)
	}
	for _, stop := range stops {
		if stop.ID == stopID {
			return stop.Name, nil
		}
	}
	return "", nil
}
