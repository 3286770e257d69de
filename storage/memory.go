package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/olalid/ha-gtfs/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	Feeds    map[string]*MemoryStorageFeed
	Metadata map[string]*FeedMetadata

	mutex sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Feeds:    map[string]*MemoryStorageFeed{},
		Metadata: map[string]*FeedMetadata{},
	}
}

func (s *MemoryStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	feeds := []*FeedMetadata{}
	for _, metadata := range s.Metadata {
		if filter.Source != "" && metadata.Source != filter.Source {
			continue
		}
		if filter.Hash != "" && metadata.Hash != filter.Hash {
			continue
		}
		feeds = append(feeds, metadata)
	}
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].RetrievedAt.After(feeds[j].RetrievedAt)
	})
	return feeds, nil
}

func (s *MemoryStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Metadata[feed.Hash] = feed
	return nil
}

func (s *MemoryStorage) DeleteFeed(hash string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, hasFeed := s.Feeds[hash]
	_, hasMetadata := s.Metadata[hash]
	if !hasFeed && !hasMetadata {
		return ErrFeedNotFound
	}
	delete(s.Feeds, hash)
	delete(s.Metadata, hash)
	return nil
}

func (s *MemoryStorage) GetReader(hash string) (FeedReader, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	f, ok := s.Feeds[hash]
	if !ok {
		return nil, ErrFeedNotFound
	}
	return f, nil
}

func (s *MemoryStorage) GetWriter(hash string) (FeedWriter, error) {
	f := &MemoryStorageFeed{
		calendar:        map[string]*model.Calendar{},
		calendarDate:    map[string][]*model.CalendarDate{},
		routes:          map[string]*model.Route{},
		agency:          map[string]*model.Agency{},
		stops:           map[string]*model.Stop{},
		stopsByParent:   map[string][]*model.Stop{},
		trips:           map[string]*model.Trip{},
		stopTimesByTrip: map[string][]*model.StopTime{},
		stopTimesByStop: map[string][]*model.StopTime{},
	}

	s.mutex.Lock()
	s.Feeds[hash] = f
	s.mutex.Unlock()

	return f, nil
}

type MemoryStorageFeed struct {
	calendar        map[string]*model.Calendar
	calendarDate    map[string][]*model.CalendarDate
	routes          map[string]*model.Route
	agency          map[string]*model.Agency
	stops           map[string]*model.Stop
	stopsByParent   map[string][]*model.Stop
	trips           map[string]*model.Trip
	stopTimesByTrip map[string][]*model.StopTime
	stopTimesByStop map[string][]*model.StopTime
}

func (f *MemoryStorageFeed) WriteAgency(agency *model.Agency) error {
	f.agency[agency.ID] = agency
	return nil
}

func (f *MemoryStorageFeed) WriteStop(stop *model.Stop) error {
	f.stops[stop.ID] = stop
	if stop.ParentStation != "" {
		f.stopsByParent[stop.ParentStation] = append(f.stopsByParent[stop.ParentStation], stop)
	}
	return nil
}

func (f *MemoryStorageFeed) WriteRoute(route *model.Route) error {
	f.routes[route.ID] = route
	return nil
}

func (f *MemoryStorageFeed) BeginTrips() error {
	return nil
}

func (f *MemoryStorageFeed) WriteTrip(trip *model.Trip) error {
	f.trips[trip.ID] = trip
	return nil
}

func (f *MemoryStorageFeed) EndTrips() error {
	return nil
}

func (f *MemoryStorageFeed) BeginStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteStopTime(stopTime *model.StopTime) error {
	f.stopTimesByTrip[stopTime.TripID] = append(f.stopTimesByTrip[stopTime.TripID], stopTime)
	f.stopTimesByStop[stopTime.StopID] = append(f.stopTimesByStop[stopTime.StopID], stopTime)
	return nil
}

func (f *MemoryStorageFeed) EndStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteCalendar(row *model.Calendar) error {
	f.calendar[row.ServiceID] = row
	return nil
}

func (f *MemoryStorageFeed) WriteCalendarDate(row *model.CalendarDate) error {
	f.calendarDate[row.ServiceID] = append(f.calendarDate[row.ServiceID], row)
	return nil
}

func (f *MemoryStorageFeed) Close() error {
	return nil
}

func (f *MemoryStorageFeed) Agencies() ([]*model.Agency, error) {
	agencies := []*model.Agency{}
	for _, v := range f.agency {
		agencies = append(agencies, v)
	}
	return agencies, nil
}

func (f *MemoryStorageFeed) Stops() ([]*model.Stop, error) {
	stops := []*model.Stop{}
	for _, v := range f.stops {
		stops = append(stops, v)
	}
	return stops, nil
}

func (f *MemoryStorageFeed) Routes() ([]*model.Route, error) {
	routes := []*model.Route{}
	for _, v := range f.routes {
		routes = append(routes, v)
	}
	return routes, nil
}

func (f *MemoryStorageFeed) Trips() ([]*model.Trip, error) {
	trips := []*model.Trip{}
	for _, v := range f.trips {
		trips = append(trips, v)
	}
	return trips, nil
}

func (f *MemoryStorageFeed) StopTimes() ([]*model.StopTime, error) {
	stoptimes := []*model.StopTime{}
	for _, v := range f.stopTimesByTrip {
		stoptimes = append(stoptimes, v...)
	}
	return stoptimes, nil
}

func (f *MemoryStorageFeed) Calendars() ([]*model.Calendar, error) {
	cals := []*model.Calendar{}
	for _, v := range f.calendar {
		cals = append(cals, v)
	}
	return cals, nil
}

func (f *MemoryStorageFeed) CalendarDates() ([]*model.CalendarDate, error) {
	cds := []*model.CalendarDate{}
	for _, v := range f.calendarDate {
		cds = append(cds, v...)
	}
	return cds, nil
}

func (f *MemoryStorageFeed) ActiveServices(date string) ([]string, error) {
	services := map[string]bool{}

	parsedDate, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", date)
	}

	for _, calendar := range f.calendar {
		if calendar.Weekday&(1<<parsedDate.Weekday()) == 0 {
			continue
		}
		if calendar.StartDate > date {
			continue
		}
		if calendar.EndDate < date {
			continue
		}
		services[calendar.ServiceID] = true
	}

	for _, cds := range f.calendarDate {
		for _, cd := range cds {
			if cd.Date != date {
				continue
			}
			switch cd.ExceptionType {
			case model.ExceptionTypeAdded:
				services[cd.ServiceID] = true
			case model.ExceptionTypeRemoved:
				services[cd.ServiceID] = false
			}
		}
	}

	activeServices := []string{}
	for serviceID, active := range services {
		if active {
			activeServices = append(activeServices, serviceID)
		}
	}
	sort.Strings(activeServices)

	return activeServices, nil
}

func (f *MemoryStorageFeed) StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error) {
	var stopTimes []*model.StopTime

	if filter.StopID != "" {
		// The StopID filter must also apply to parent
		// stations, in case caller is referring to a Station
		// holding (potentially) multiple Stops
		stop, found := f.stops[filter.StopID]
		if !found {
			return []*StopTimeEvent{}, nil
		}

		stopTimes = append(stopTimes, f.stopTimesByStop[filter.StopID]...)
		if stop.LocationType == model.LocationTypeStation {
			for _, s := range f.stopsByParent[filter.StopID] {
				stopTimes = append(stopTimes, f.stopTimesByStop[s.ID]...)
			}
		}
	} else {
		// Without StopID, we need to iterate over all
		// StopTimes.
		stopTimes = []*model.StopTime{}
		for _, v := range f.stopTimesByTrip {
			stopTimes = append(stopTimes, v...)
		}
	}

	serviceIDs := map[string]bool{}
	for _, sid := range filter.ServiceIDs {
		serviceIDs[sid] = true
	}

	events := []*StopTimeEvent{}

	for _, st := range stopTimes {
		if filter.BoardableOnly && st.PickupType == model.PickupTypeNotBoardable {
			continue
		}

		trip := f.trips[st.TripID]
		if len(serviceIDs) > 0 && !serviceIDs[trip.ServiceID] {
			continue
		}

		events = append(events, &StopTimeEvent{
			StopTime: st,
			Trip:     trip,
			Route:    f.routes[trip.RouteID],
			Stop:     f.stops[st.StopID],
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].StopTime.Arrival != events[j].StopTime.Arrival {
			return events[i].StopTime.Arrival < events[j].StopTime.Arrival
		}
		return events[i].StopTime.TripID < events[j].StopTime.TripID
	})

	return events, nil
}
