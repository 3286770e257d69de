package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/olalid/ha-gtfs/model"
	"github.com/olalid/ha-gtfs/storage"
)

type StopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  uint32 `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	Headsign      string `csv:"stop_headsign"`
	PickupType    string `csv:"pickup_type"`
	DropOffType   string `csv:"drop_off_type"`
}

// Converts "H:MM:SS" or "HH:MM:SS" to "HHMMSS". Hours may exceed 23.
func parseStopTimeTime(s string) (string, error) {
	split := strings.Split(strings.TrimSpace(s), ":")
	if len(split) != 3 {
		return "", fmt.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(str)
		if err != nil {
			return "", fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}

	if hms[0] < 0 || hms[0] > 99 {
		return "", fmt.Errorf("invalid hour in '%s'", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return "", fmt.Errorf("invalid minute in '%s'", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return "", fmt.Errorf("invalid second in '%s'", s)
	}

	return fmt.Sprintf("%02d%02d%02d", hms[0], hms[1], hms[2]), nil
}

// Blank means regular pickup/drop off.
func parsePickupType(s string) (model.PickupType, error) {
	if s == "" {
		return model.PickupTypeRegular, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("non-integer '%s'", s)
	}
	pt := model.PickupType(n)
	if pt < model.PickupTypeRegular || pt > model.PickupTypeCoordinateWithDriver {
		return 0, fmt.Errorf("out of range: %d", n)
	}
	return pt, nil
}

// Parses stop_times.txt. Returns the max arrival and departure times
// seen, as "HHMMSS".
//
// Rows lacking both arrival_time and departure_time are skipped. If
// only one is given, it's used for both.
func ParseStopTimes(
	writer storage.FeedWriter,
	data io.Reader,
	trips map[string]bool,
	stops map[string]bool,
) (string, string, error) {

	stopSeq := map[string]map[uint32]bool{}

	maxArrival := ""
	maxDeparture := ""

	row := 0
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *StopTimeCSV) error {
		row += 1
		if !trips[st.TripID] {
			return fmt.Errorf("unknown trip_id: '%s' (row %d)", st.TripID, row)
		}
		if st.StopID == "" {
			return fmt.Errorf("missing stop_id (row %d)", row)
		}
		if !stops[st.StopID] {
			return fmt.Errorf("unknown stop_id: '%s' (row %d)", st.StopID, row)
		}

		if st.ArrivalTime == "" && st.DepartureTime == "" {
			return nil
		}
		if st.ArrivalTime == "" {
			st.ArrivalTime = st.DepartureTime
		}
		if st.DepartureTime == "" {
			st.DepartureTime = st.ArrivalTime
		}

		arrivalTime, err := parseStopTimeTime(st.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", row)
		}
		departureTime, err := parseStopTimeTime(st.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", row)
		}

		pickupType, err := parsePickupType(st.PickupType)
		if err != nil {
			return errors.Wrapf(err, "parsing pickup_type (row %d)", row)
		}
		dropOffType, err := parsePickupType(st.DropOffType)
		if err != nil {
			return errors.Wrapf(err, "parsing drop_off_type (row %d)", row)
		}

		if stopSeq[st.TripID] == nil {
			stopSeq[st.TripID] = map[uint32]bool{}
		}
		if stopSeq[st.TripID][st.StopSequence] {
			return fmt.Errorf("duplicate stop_sequence %d for trip_id '%s'", st.StopSequence, st.TripID)
		}
		stopSeq[st.TripID][st.StopSequence] = true

		if arrivalTime > maxArrival {
			maxArrival = arrivalTime
		}
		if departureTime > maxDeparture {
			maxDeparture = departureTime
		}

		err = writer.WriteStopTime(&model.StopTime{
			TripID:       st.TripID,
			StopID:       st.StopID,
			Headsign:     st.Headsign,
			StopSequence: st.StopSequence,
			Arrival:      arrivalTime,
			Departure:    departureTime,
			PickupType:   pickupType,
			DropOffType:  dropOffType,
		})
		if err != nil {
			return errors.Wrapf(err, "writing stop_time (row %d)", row)
		}

		return nil
	})
	if err != nil {
		return "", "", errors.Wrap(err, "unmarshaling stop_times csv")
	}

	return maxArrival, maxDeparture, nil
}
