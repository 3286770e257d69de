package model

import (
	"fmt"
	"strconv"
	"time"
)

// Holds all external facing types and constants.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntranceExit
	LocationTypeGenericNode
	LocationTypeBoardingArea
)

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCable      RouteType = 5
	RouteTypeAerial     RouteType = 6
	RouteTypeFunicular  RouteType = 7
	RouteTypeTrolleybus RouteType = 11
	RouteTypeMonorail   RouteType = 12

	RouteTypeExtendedMin RouteType = 100
	RouteTypeExtendedMax RouteType = 1799
)

// Pickup (and drop off) policy of a stop_time.
type PickupType int8

const (
	PickupTypeRegular PickupType = iota
	PickupTypeNone
	PickupTypePhoneAgency
	PickupTypeCoordinateWithDriver
)

// Stop times with this pickup type are not offered as departures.
//
// NOTE: GTFS defines 1 as "no pickup available", but the sensor has
// always dropped 2 and existing configurations rely on that.
const PickupTypeNotBoardable = PickupTypePhoneAgency

type ExceptionType int8

const (
	ExceptionTypeAdded   ExceptionType = 1
	ExceptionTypeRemoved ExceptionType = 2
)

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
}

// Optional feed_info.txt. Dates are YYYYMMDD, possibly blank.
type FeedInfo struct {
	PublisherName string
	PublisherURL  string
	Lang          string
	StartDate     string
	EndDate       string
	Version       string
}

type Calendar struct {
	ServiceID string
	StartDate string
	EndDate   string
	Weekday   int8
}

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType ExceptionType
}

type Stop struct {
	ID            string
	Code          string
	Name          string
	Desc          string
	Lat           float64
	Lon           float64
	URL           string
	LocationType  LocationType
	ParentStation string
	PlatformCode  string
}

type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Headsign    string
	ShortName   string
	DirectionID int8
}

type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Desc      string
	Type      RouteType
	URL       string
	Color     string
	TextColor string
}

// Arrival and Departure are "HHMMSS", hours possibly >= 24.
type StopTime struct {
	TripID       string
	StopID       string
	Headsign     string
	StopSequence uint32
	Arrival      string
	Departure    string
	PickupType   PickupType
	DropOffType  PickupType
}

func (st *StopTime) ArrivalTime() time.Duration {
	return hhmmssDuration(st.Arrival)
}

func (st *StopTime) DepartureTime() time.Duration {
	return hhmmssDuration(st.Departure)
}

func hhmmssDuration(hhmmss string) time.Duration {
	h, _ := strconv.Atoi(hhmmss[0:2])
	m, _ := strconv.Atoi(hhmmss[2:4])
	s, _ := strconv.Atoi(hhmmss[4:6])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// Formats an "HHMMSS" time as "HH:MM:SS".
func ClockString(hhmmss string) string {
	if len(hhmmss) != 6 {
		return hhmmss
	}
	return fmt.Sprintf("%s:%s:%s", hhmmss[0:2], hhmmss[2:4], hhmmss[4:6])
}
