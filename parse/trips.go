package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/olalid/ha-gtfs/model"
	"github.com/olalid/ha-gtfs/storage"
)

type TripCSV struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	ShortName   string `csv:"trip_short_name"`
	DirectionID int8   `csv:"direction_id"`
}

// Parses trips.txt. Returns the set of trip IDs. Every trip must
// reference a known route and service.
func ParseTrips(
	writer storage.FeedWriter,
	data io.Reader,
	routes map[string]bool,
	services map[string]bool,
) (map[string]bool, error) {
	trips := map[string]bool{}

	err := gocsv.UnmarshalToCallbackWithError(data, func(t *TripCSV) error {
		if t.ID == "" {
			return fmt.Errorf("empty trip_id")
		}
		if trips[t.ID] {
			return fmt.Errorf("repeated trip_id '%s'", t.ID)
		}
		trips[t.ID] = true

		if t.RouteID == "" {
			return fmt.Errorf("empty route_id for trip_id '%s'", t.ID)
		}
		if !routes[t.RouteID] {
			return fmt.Errorf("unknown route_id '%s'", t.RouteID)
		}
		if !services[t.ServiceID] {
			return fmt.Errorf("unknown service_id '%s'", t.ServiceID)
		}
		if t.DirectionID != 0 && t.DirectionID != 1 {
			return fmt.Errorf("invalid direction_id '%d'", t.DirectionID)
		}

		err := writer.WriteTrip(&model.Trip{
			ID:          t.ID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.Headsign,
			ShortName:   t.ShortName,
			DirectionID: t.DirectionID,
		})
		if err != nil {
			return fmt.Errorf("writing trip '%s': %w", t.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshaling trips csv: %w", err)
	}

	return trips, nil
}
