package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olalid/ha-gtfs/model"
)

// SQL implementation of Storage, shared by the SQLite and Postgres
// backends. Every GTFS table carries a feed column holding the feed
// hash, so a single database can hold multiple feeds.

type sqlDialect struct {
	// Rewrites a query written with "?" placeholders.
	rebind func(query string) string
}

var sqliteDialect = sqlDialect{
	rebind: func(query string) string { return query },
}

var postgresDialect = sqlDialect{
	rebind: func(query string) string {
		var b strings.Builder
		n := 0
		for _, r := range query {
			if r == '?' {
				n++
				b.WriteString("$" + strconv.Itoa(n))
				continue
			}
			b.WriteRune(r)
		}
		return b.String()
	},
}

var sqlSchema = []string{`
CREATE TABLE IF NOT EXISTS feed (
    hash TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    retrieved_at TEXT NOT NULL,
    timezone TEXT NOT NULL,
    calendar_start TEXT NOT NULL,
    calendar_end TEXT NOT NULL,
    feed_start TEXT NOT NULL,
    feed_end TEXT NOT NULL,
    max_arrival TEXT NOT NULL,
    max_departure TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS agency (
    feed TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL,
PRIMARY KEY (feed, id)
)`, `
CREATE TABLE IF NOT EXISTS stops (
    feed TEXT NOT NULL,
    id TEXT NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    url TEXT NOT NULL,
    location_type INTEGER NOT NULL,
    parent_station TEXT NOT NULL,
    platform_code TEXT NOT NULL,
PRIMARY KEY (feed, id)
)`, `
CREATE INDEX IF NOT EXISTS stops_parent_station ON stops (feed, parent_station)`, `
CREATE TABLE IF NOT EXISTS routes (
    feed TEXT NOT NULL,
    id TEXT NOT NULL,
    agency_id TEXT NOT NULL,
    short_name TEXT NOT NULL,
    long_name TEXT NOT NULL,
    description TEXT NOT NULL,
    type INTEGER NOT NULL,
    url TEXT NOT NULL,
    color TEXT NOT NULL,
    text_color TEXT NOT NULL,
PRIMARY KEY (feed, id)
)`, `
CREATE TABLE IF NOT EXISTS trips (
    feed TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT NOT NULL,
    short_name TEXT NOT NULL,
    direction_id INTEGER NOT NULL,
PRIMARY KEY (feed, id)
)`, `
CREATE INDEX IF NOT EXISTS trips_service_id ON trips (feed, service_id)`, `
CREATE TABLE IF NOT EXISTS stop_times (
    feed TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence BIGINT NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT NOT NULL,
    pickup_type INTEGER NOT NULL,
    drop_off_type INTEGER NOT NULL
)`, `
CREATE INDEX IF NOT EXISTS stop_times_stop_id ON stop_times (feed, stop_id)`, `
CREATE TABLE IF NOT EXISTS calendar (
    feed TEXT NOT NULL,
    service_id TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    weekday INTEGER NOT NULL,
PRIMARY KEY (feed, service_id)
)`, `
CREATE TABLE IF NOT EXISTS calendar_dates (
    feed TEXT NOT NULL,
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL
)`, `
CREATE INDEX IF NOT EXISTS calendar_dates_date ON calendar_dates (feed, date)`,
}

// Tables holding per feed records, in deletion order.
var sqlFeedTables = []string{"stop_times", "trips", "calendar_dates", "calendar", "routes", "stops", "agency"}

type sqlStorage struct {
	db      *sql.DB
	dialect sqlDialect

	// Feeds written by this process, possibly still without
	// metadata.
	written map[string]bool
}

type sqlFeedWriter struct {
	s    *sqlStorage
	feed string

	tx           *sql.Tx
	stopTimeStmt *sql.Stmt
}

type sqlFeedReader struct {
	s    *sqlStorage
	feed string
}

func newSQLStorage(db *sql.DB, dialect sqlDialect) (*sqlStorage, error) {
	for _, query := range sqlSchema {
		_, err := db.Exec(query)
		if err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &sqlStorage{
		db:      db,
		dialect: dialect,
		written: map[string]bool{},
	}, nil
}

func (s *sqlStorage) exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(s.dialect.rebind(query), args...)
}

func (s *sqlStorage) query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(s.dialect.rebind(query), args...)
}

func (s *sqlStorage) Close() error {
	return s.db.Close()
}

func (s *sqlStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	query := `
SELECT
    hash,
    source,
    retrieved_at,
    timezone,
    calendar_start,
    calendar_end,
    feed_start,
    feed_end,
    max_arrival,
    max_departure
FROM feed`

	conditions := []string{}
	params := []interface{}{}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		params = append(params, filter.Source)
	}
	if filter.Hash != "" {
		conditions = append(conditions, "hash = ?")
		params = append(params, filter.Hash)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY retrieved_at DESC"

	rows, err := s.query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying feeds: %w", err)
	}
	defer rows.Close()

	feeds := []*FeedMetadata{}
	for rows.Next() {
		var retrievedAt string
		f := &FeedMetadata{}
		err := rows.Scan(
			&f.Hash,
			&f.Source,
			&retrievedAt,
			&f.Timezone,
			&f.CalendarStartDate,
			&f.CalendarEndDate,
			&f.FeedStartDate,
			&f.FeedEndDate,
			&f.MaxArrival,
			&f.MaxDeparture,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning feed: %w", err)
		}
		f.RetrievedAt, err = time.Parse(time.RFC3339Nano, retrievedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing retrieved_at: %w", err)
		}
		feeds = append(feeds, f)
	}

	return feeds, rows.Err()
}

func (s *sqlStorage) WriteFeedMetadata(f *FeedMetadata) error {
	_, err := s.exec(`
INSERT INTO feed (
    hash,
    source,
    retrieved_at,
    timezone,
    calendar_start,
    calendar_end,
    feed_start,
    feed_end,
    max_arrival,
    max_departure
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (hash) DO UPDATE SET
    source = excluded.source,
    retrieved_at = excluded.retrieved_at,
    timezone = excluded.timezone,
    calendar_start = excluded.calendar_start,
    calendar_end = excluded.calendar_end,
    feed_start = excluded.feed_start,
    feed_end = excluded.feed_end,
    max_arrival = excluded.max_arrival,
    max_departure = excluded.max_departure`,
		f.Hash,
		f.Source,
		f.RetrievedAt.UTC().Format(time.RFC3339Nano),
		f.Timezone,
		f.CalendarStartDate,
		f.CalendarEndDate,
		f.FeedStartDate,
		f.FeedEndDate,
		f.MaxArrival,
		f.MaxDeparture,
	)
	if err != nil {
		return fmt.Errorf("writing feed metadata: %w", err)
	}
	return nil
}

func (s *sqlStorage) deleteRecords(hash string) (int64, error) {
	var deleted int64
	for _, table := range sqlFeedTables {
		res, err := s.exec(`DELETE FROM `+table+` WHERE feed = ?`, hash)
		if err != nil {
			return 0, fmt.Errorf("deleting from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			deleted += n
		}
	}
	return deleted, nil
}

func (s *sqlStorage) DeleteFeed(hash string) error {
	deleted, err := s.deleteRecords(hash)
	if err != nil {
		return err
	}

	res, err := s.exec(`DELETE FROM feed WHERE hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("deleting feed: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil {
		deleted += n
	}

	known := s.written[hash]
	delete(s.written, hash)

	if deleted == 0 && !known {
		return ErrFeedNotFound
	}
	return nil
}

func (s *sqlStorage) GetReader(hash string) (FeedReader, error) {
	if !s.written[hash] {
		rows, err := s.query(`SELECT hash FROM feed WHERE hash = ?`, hash)
		if err != nil {
			return nil, fmt.Errorf("querying feed: %w", err)
		}
		found := rows.Next()
		rows.Close()
		if !found {
			return nil, ErrFeedNotFound
		}
	}

	return &sqlFeedReader{s: s, feed: hash}, nil
}

func (s *sqlStorage) GetWriter(hash string) (FeedWriter, error) {
	_, err := s.deleteRecords(hash)
	if err != nil {
		return nil, fmt.Errorf("clearing feed: %w", err)
	}

	s.written[hash] = true

	return &sqlFeedWriter{s: s, feed: hash}, nil
}

func (w *sqlFeedWriter) exec(query string, args ...interface{}) error {
	query = w.s.dialect.rebind(query)
	var err error
	if w.tx != nil {
		_, err = w.tx.Exec(query, args...)
	} else {
		_, err = w.s.db.Exec(query, args...)
	}
	return err
}

func (w *sqlFeedWriter) rollback() {
	if w.stopTimeStmt != nil {
		w.stopTimeStmt.Close()
		w.stopTimeStmt = nil
	}
	if w.tx != nil {
		w.tx.Rollback()
		w.tx = nil
	}
}

func (w *sqlFeedWriter) WriteAgency(a *model.Agency) error {
	err := w.exec(`
INSERT INTO agency (feed, id, name, url, timezone)
VALUES (?, ?, ?, ?, ?)`,
		w.feed,
		a.ID,
		a.Name,
		a.URL,
		a.Timezone,
	)
	if err != nil {
		return fmt.Errorf("inserting agency: %w", err)
	}
	return nil
}

func (w *sqlFeedWriter) WriteStop(stop *model.Stop) error {
	err := w.exec(`
INSERT INTO stops (feed, id, code, name, description, lat, lon, url, location_type, parent_station, platform_code)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.feed,
		stop.ID,
		stop.Code,
		stop.Name,
		stop.Desc,
		stop.Lat,
		stop.Lon,
		stop.URL,
		int64(stop.LocationType),
		stop.ParentStation,
		stop.PlatformCode,
	)
	if err != nil {
		return fmt.Errorf("inserting stop: %w", err)
	}
	return nil
}

func (w *sqlFeedWriter) WriteRoute(route *model.Route) error {
	err := w.exec(`
INSERT INTO routes (feed, id, agency_id, short_name, long_name, description, type, url, color, text_color)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.feed,
		route.ID,
		route.AgencyID,
		route.ShortName,
		route.LongName,
		route.Desc,
		int64(route.Type),
		route.URL,
		route.Color,
		route.TextColor,
	)
	if err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}
	return nil
}

func (w *sqlFeedWriter) BeginTrips() error {
	tx, err := w.s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning trip insert transaction: %w", err)
	}
	w.tx = tx
	return nil
}

func (w *sqlFeedWriter) WriteTrip(trip *model.Trip) error {
	err := w.exec(`
INSERT INTO trips (feed, id, route_id, service_id, headsign, short_name, direction_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.feed,
		trip.ID,
		trip.RouteID,
		trip.ServiceID,
		trip.Headsign,
		trip.ShortName,
		int64(trip.DirectionID),
	)
	if err != nil {
		w.rollback()
		return fmt.Errorf("inserting trip: %w", err)
	}
	return nil
}

func (w *sqlFeedWriter) EndTrips() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit()
	w.tx = nil
	if err != nil {
		return fmt.Errorf("committing trip insert transaction: %w", err)
	}
	return nil
}

func (w *sqlFeedWriter) BeginStopTimes() error {
	// transaction with prepared statement.
	tx, err := w.s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning stop_time insert transaction: %w", err)
	}
	w.tx = tx

	w.stopTimeStmt, err = tx.Prepare(w.s.dialect.rebind(`
INSERT INTO stop_times (feed, trip_id, stop_id, stop_sequence, arrival_time, departure_time, headsign, pickup_type, drop_off_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		w.rollback()
		return fmt.Errorf("preparing stop_time insert: %w", err)
	}

	return nil
}

func (w *sqlFeedWriter) WriteStopTime(stopTime *model.StopTime) error {
	if w.stopTimeStmt == nil {
		return fmt.Errorf("stop_time written outside BeginStopTimes/EndStopTimes")
	}

	_, err := w.stopTimeStmt.Exec(
		w.feed,
		stopTime.TripID,
		stopTime.StopID,
		int64(stopTime.StopSequence),
		stopTime.Arrival,
		stopTime.Departure,
		stopTime.Headsign,
		int64(stopTime.PickupType),
		int64(stopTime.DropOffType),
	)
	if err != nil {
		w.rollback()
		return fmt.Errorf("inserting stop_time: %w", err)
	}

	return nil
}

func (w *sqlFeedWriter) EndStopTimes() error {
	if w.tx == nil {
		return fmt.Errorf("no stop_time insert transaction")
	}

	// commit transaction and clean up
	w.stopTimeStmt.Close()
	w.stopTimeStmt = nil
	err := w.tx.Commit()
	w.tx = nil
	if err != nil {
		return fmt.Errorf("committing stop_time insert transaction: %w", err)
	}

	return nil
}

func (w *sqlFeedWriter) WriteCalendar(cal *model.Calendar) error {
	err := w.exec(`
INSERT INTO calendar (feed, service_id, start_date, end_date, weekday)
VALUES (?, ?, ?, ?, ?)`,
		w.feed,
		cal.ServiceID,
		cal.StartDate,
		cal.EndDate,
		int64(cal.Weekday),
	)
	if err != nil {
		return fmt.Errorf("inserting calendar: %w", err)
	}
	return nil
}

func (w *sqlFeedWriter) WriteCalendarDate(cd *model.CalendarDate) error {
	err := w.exec(`
INSERT INTO calendar_dates (feed, service_id, date, exception_type)
VALUES (?, ?, ?, ?)`,
		w.feed,
		cd.ServiceID,
		cd.Date,
		int64(cd.ExceptionType),
	)
	if err != nil {
		return fmt.Errorf("inserting calendar date: %w", err)
	}
	return nil
}

func (w *sqlFeedWriter) Close() error {
	// A dangling transaction means parsing was aborted.
	w.rollback()

	_, err := w.s.db.Exec(`ANALYZE`)
	if err != nil {
		return fmt.Errorf("analyzing database: %w", err)
	}

	return nil
}

func (r *sqlFeedReader) Agencies() ([]*model.Agency, error) {
	rows, err := r.s.query(`SELECT id, name, url, timezone FROM agency WHERE feed = ? ORDER BY id`, r.feed)
	if err != nil {
		return nil, fmt.Errorf("querying agencies: %w", err)
	}
	defer rows.Close()

	agencies := []*model.Agency{}
	for rows.Next() {
		a := &model.Agency{}
		err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scanning agency: %w", err)
		}
		agencies = append(agencies, a)
	}

	return agencies, rows.Err()
}

func scanStop(scan func(dest ...interface{}) error) (*model.Stop, error) {
	var locationType int64
	s := &model.Stop{}
	err := scan(
		&s.ID,
		&s.Code,
		&s.Name,
		&s.Desc,
		&s.Lat,
		&s.Lon,
		&s.URL,
		&locationType,
		&s.ParentStation,
		&s.PlatformCode,
	)
	if err != nil {
		return nil, err
	}
	s.LocationType = model.LocationType(locationType)
	return s, nil
}

func (r *sqlFeedReader) Stops() ([]*model.Stop, error) {
	rows, err := r.s.query(`
SELECT id, code, name, description, lat, lon, url, location_type, parent_station, platform_code
FROM stops
WHERE feed = ?
ORDER BY id`, r.feed)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*model.Stop{}
	for rows.Next() {
		s, err := scanStop(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, s)
	}

	return stops, rows.Err()
}

func scanRoute(scan func(dest ...interface{}) error) (*model.Route, error) {
	var routeType int64
	route := &model.Route{}
	err := scan(
		&route.ID,
		&route.AgencyID,
		&route.ShortName,
		&route.LongName,
		&route.Desc,
		&routeType,
		&route.URL,
		&route.Color,
		&route.TextColor,
	)
	if err != nil {
		return nil, err
	}
	route.Type = model.RouteType(routeType)
	return route, nil
}

func (r *sqlFeedReader) Routes() ([]*model.Route, error) {
	rows, err := r.s.query(`
SELECT id, agency_id, short_name, long_name, description, type, url, color, text_color
FROM routes
WHERE feed = ?
ORDER BY id`, r.feed)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := []*model.Route{}
	for rows.Next() {
		route, err := scanRoute(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, route)
	}

	return routes, rows.Err()
}

func scanTrip(scan func(dest ...interface{}) error) (*model.Trip, error) {
	var directionID int64
	trip := &model.Trip{}
	err := scan(
		&trip.ID,
		&trip.RouteID,
		&trip.ServiceID,
		&trip.Headsign,
		&trip.ShortName,
		&directionID,
	)
	if err != nil {
		return nil, err
	}
	trip.DirectionID = int8(directionID)
	return trip, nil
}

func (r *sqlFeedReader) Trips() ([]*model.Trip, error) {
	rows, err := r.s.query(`
SELECT id, route_id, service_id, headsign, short_name, direction_id
FROM trips
WHERE feed = ?
ORDER BY id`, r.feed)
	if err != nil {
		return nil, fmt.Errorf("querying trips: %w", err)
	}
	defer rows.Close()

	trips := []*model.Trip{}
	for rows.Next() {
		trip, err := scanTrip(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning trip: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

func scanStopTime(scan func(dest ...interface{}) error) (*model.StopTime, error) {
	var stopSequence, pickupType, dropOffType int64
	st := &model.StopTime{}
	err := scan(
		&st.TripID,
		&st.StopID,
		&stopSequence,
		&st.Arrival,
		&st.Departure,
		&st.Headsign,
		&pickupType,
		&dropOffType,
	)
	if err != nil {
		return nil, err
	}
	st.StopSequence = uint32(stopSequence)
	st.PickupType = model.PickupType(pickupType)
	st.DropOffType = model.PickupType(dropOffType)
	return st, nil
}

func (r *sqlFeedReader) StopTimes() ([]*model.StopTime, error) {
	rows, err := r.s.query(`
SELECT trip_id, stop_id, stop_sequence, arrival_time, departure_time, headsign, pickup_type, drop_off_type
FROM stop_times
WHERE feed = ?
ORDER BY trip_id, stop_sequence`, r.feed)
	if err != nil {
		return nil, fmt.Errorf("querying stop_times: %w", err)
	}
	defer rows.Close()

	stopTimes := []*model.StopTime{}
	for rows.Next() {
		st, err := scanStopTime(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning stop_time: %w", err)
		}
		stopTimes = append(stopTimes, st)
	}

	return stopTimes, rows.Err()
}

func (r *sqlFeedReader) Calendars() ([]*model.Calendar, error) {
	rows, err := r.s.query(`
SELECT service_id, start_date, end_date, weekday
FROM calendar
WHERE feed = ?
ORDER BY service_id`, r.feed)
	if err != nil {
		return nil, fmt.Errorf("querying calendar: %w", err)
	}
	defer rows.Close()

	calendars := []*model.Calendar{}
	for rows.Next() {
		var weekday int64
		c := &model.Calendar{}
		err := rows.Scan(&c.ServiceID, &c.StartDate, &c.EndDate, &weekday)
		if err != nil {
			return nil, fmt.Errorf("scanning calendar: %w", err)
		}
		c.Weekday = int8(weekday)
		calendars = append(calendars, c)
	}

	return calendars, rows.Err()
}

func (r *sqlFeedReader) CalendarDates() ([]*model.CalendarDate, error) {
	rows, err := r.s.query(`
SELECT service_id, date, exception_type
FROM calendar_dates
WHERE feed = ?
ORDER BY service_id, date`, r.feed)
	if err != nil {
		return nil, fmt.Errorf("querying calendar_dates: %w", err)
	}
	defer rows.Close()

	calendarDates := []*model.CalendarDate{}
	for rows.Next() {
		var exceptionType int64
		cd := &model.CalendarDate{}
		err := rows.Scan(&cd.ServiceID, &cd.Date, &exceptionType)
		if err != nil {
			return nil, fmt.Errorf("scanning calendar_date: %w", err)
		}
		cd.ExceptionType = model.ExceptionType(exceptionType)
		calendarDates = append(calendarDates, cd)
	}

	return calendarDates, rows.Err()
}

func (r *sqlFeedReader) ActiveServices(date string) ([]string, error) {
	parsedDate, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", date)
	}
	weekday := int64(1) << parsedDate.Weekday()

	rows, err := r.s.query(`
WITH
Exceptions AS (
	SELECT service_id, exception_type
	FROM calendar_dates
	WHERE feed = ? AND date = ?
),
Regular AS (
	SELECT service_id
	FROM calendar
	WHERE feed = ? AND
	      (weekday & ?) <> 0 AND
	      start_date <= ? AND
	      end_date >= ?
)
SELECT service_id
FROM Regular
WHERE service_id NOT IN (
	SELECT service_id FROM Exceptions WHERE exception_type = 2
)
UNION
SELECT service_id
FROM Exceptions
WHERE exception_type = 1
ORDER BY service_id
`, r.feed, date, r.feed, weekday, date, date)
	if err != nil {
		return nil, fmt.Errorf("querying for active services: %w", err)
	}
	defer rows.Close()

	activeServices := []string{}
	for rows.Next() {
		var serviceID string
		err = rows.Scan(&serviceID)
		if err != nil {
			return nil, fmt.Errorf("scanning active services: %w", err)
		}
		activeServices = append(activeServices, serviceID)
	}

	return activeServices, rows.Err()
}

func (r *sqlFeedReader) StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error) {
	query := `
SELECT
    stop_times.trip_id,
    stop_times.stop_id,
    stop_times.stop_sequence,
    stop_times.arrival_time,
    stop_times.departure_time,
    stop_times.headsign,
    stop_times.pickup_type,
    stop_times.drop_off_type,
    trips.id,
    trips.route_id,
    trips.service_id,
    trips.headsign,
    trips.short_name,
    trips.direction_id,
    routes.id,
    routes.agency_id,
    routes.short_name,
    routes.long_name,
    routes.description,
    routes.type,
    routes.url,
    routes.color,
    routes.text_color,
    stops.id,
    stops.code,
    stops.name,
    stops.description,
    stops.lat,
    stops.lon,
    stops.url,
    stops.location_type,
    stops.parent_station,
    stops.platform_code
FROM stop_times
INNER JOIN stops ON stops.feed = stop_times.feed AND stops.id = stop_times.stop_id
INNER JOIN trips ON trips.feed = stop_times.feed AND trips.id = stop_times.trip_id
INNER JOIN routes ON routes.feed = trips.feed AND routes.id = trips.route_id
WHERE stop_times.feed = ?`

	params := []interface{}{r.feed}

	if filter.StopID != "" {
		query += `
AND (stops.id = ? OR (stops.parent_station = ? AND EXISTS (
    SELECT 1 FROM stops AS station
    WHERE station.feed = stop_times.feed AND station.id = ? AND station.location_type = ?
)))`
		params = append(params, filter.StopID, filter.StopID, filter.StopID, int64(model.LocationTypeStation))
	}

	if len(filter.ServiceIDs) > 0 {
		placeholders := make([]string, len(filter.ServiceIDs))
		for i, sid := range filter.ServiceIDs {
			placeholders[i] = "?"
			params = append(params, sid)
		}
		query += " AND trips.service_id IN (" + strings.Join(placeholders, ", ") + ")"
	}

	if filter.BoardableOnly {
		query += " AND stop_times.pickup_type <> ?"
		params = append(params, int64(model.PickupTypeNotBoardable))
	}

	query += " ORDER BY stop_times.arrival_time, stop_times.trip_id"

	rows, err := r.s.query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying for stop time events: %w", err)
	}
	defer rows.Close()

	events := []*StopTimeEvent{}
	for rows.Next() {
		var (
			stopSequence, pickupType, dropOffType int64
			directionID, routeType, locationType  int64
		)
		st := &model.StopTime{}
		trip := &model.Trip{}
		route := &model.Route{}
		stop := &model.Stop{}

		err := rows.Scan(
			&st.TripID,
			&st.StopID,
			&stopSequence,
			&st.Arrival,
			&st.Departure,
			&st.Headsign,
			&pickupType,
			&dropOffType,
			&trip.ID,
			&trip.RouteID,
			&trip.ServiceID,
			&trip.Headsign,
			&trip.ShortName,
			&directionID,
			&route.ID,
			&route.AgencyID,
			&route.ShortName,
			&route.LongName,
			&route.Desc,
			&routeType,
			&route.URL,
			&route.Color,
			&route.TextColor,
			&stop.ID,
			&stop.Code,
			&stop.Name,
			&stop.Desc,
			&stop.Lat,
			&stop.Lon,
			&stop.URL,
			&locationType,
			&stop.ParentStation,
			&stop.PlatformCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning stop time event: %w", err)
		}

		st.StopSequence = uint32(stopSequence)
		st.PickupType = model.PickupType(pickupType)
		st.DropOffType = model.PickupType(dropOffType)
		trip.DirectionID = int8(directionID)
		route.Type = model.RouteType(routeType)
		stop.LocationType = model.LocationType(locationType)

		events = append(events, &StopTimeEvent{
			StopTime: st,
			Trip:     trip,
			Route:    route,
			Stop:     stop,
		})
	}

	return events, rows.Err()
}
