package gtfs

import (
	"context"
	"strconv"
	"time"
)

const (
	DefaultSensorName = "Next Bus"
	UnitOfMeasurement = "min"
	Icon              = "mdi:bus"

	StateNoDeparture = "-"
	StateInvalid     = "GTFS data invalid"
)

// Reading attributes.
const (
	AttrStopID    = "Stop ID"
	AttrDueIn     = "Due in"
	AttrStopName  = "Stop name"
	AttrDueAt     = "Due at"
	AttrRoute     = "Route"
	AttrDirection = "Direction"
	AttrTripID    = "Trip ID"
)

// Whole minutes from now until arrival, truncated toward zero.
func DueInMinutes(arrival time.Time, now time.Time) int {
	return int(arrival.Sub(now).Minutes())
}

// Sensor reports the next departure from a stop.
type Sensor struct {
	Name string

	cache *ScheduleCache
}

func NewSensor(name string, cache *ScheduleCache) *Sensor {
	if name == "" {
		name = DefaultSensorName
	}
	return &Sensor{
		Name:  name,
		cache: cache,
	}
}

func (s *Sensor) StopID() string {
	return s.cache.StopID()
}

type Reading struct {
	Name         string
	State        string
	DueIn        int
	HasDeparture bool
	Departure    Departure
	Attributes   map[string]string

	// Set if the feed was (re)loaded to produce this reading.
	Refresh *RefreshResult
}

// Computes a reading for now, refreshing the schedule first if
// needed. On error, the returned reading is still usable and
// reports invalid data.
func (s *Sensor) Update(ctx context.Context, now time.Time) (Reading, error) {
	departure, found, refresh, err := s.cache.Lookup(ctx, now)

	reading := Reading{
		Name:    s.Name,
		Refresh: refresh,
	}

	if !s.cache.Valid() {
		reading.State = StateInvalid
		reading.Attributes = map[string]string{
			AttrDueIn: "Invalid",
		}
		return reading, err
	}

	if !found {
		reading.State = StateNoDeparture
		reading.Attributes = map[string]string{
			AttrStopID: s.StopID(),
			AttrDueIn:  StateNoDeparture,
		}
		return reading, err
	}

	stopName, _ := s.cache.StopName()

	reading.HasDeparture = true
	reading.Departure = departure
	reading.DueIn = DueInMinutes(departure.Time, now)
	reading.State = strconv.Itoa(reading.DueIn)
	reading.Attributes = map[string]string{
		AttrStopID:    s.StopID(),
		AttrDueIn:     reading.State,
		AttrStopName:  stopName,
		AttrDueAt:     departure.ArrivalTime,
		AttrRoute:     departure.Route(),
		AttrDirection: departure.Headsign,
		AttrTripID:    departure.TripID,
	}

	return reading, err
}
