package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olalid/ha-gtfs/model"
	"github.com/olalid/ha-gtfs/storage"
)

var errDiskFull = errors.New("disk full")

// Passes writes through to a memory feed, except for the record type
// named by fail.
type failingWriter struct {
	storage.FeedWriter
	fail string
}

func newFailingWriter(t *testing.T, fail string) *failingWriter {
	writer, err := storage.NewMemoryStorage().GetWriter("test")
	require.NoError(t, err)
	return &failingWriter{FeedWriter: writer, fail: fail}
}

func (w *failingWriter) WriteAgency(agency *model.Agency) error {
	if w.fail == "agency" {
		return errDiskFull
	}
	return w.FeedWriter.WriteAgency(agency)
}

func (w *failingWriter) WriteStop(stop *model.Stop) error {
	if w.fail == "stop" {
		return errDiskFull
	}
	return w.FeedWriter.WriteStop(stop)
}

func (w *failingWriter) WriteRoute(route *model.Route) error {
	if w.fail == "route" {
		return errDiskFull
	}
	return w.FeedWriter.WriteRoute(route)
}

func (w *failingWriter) WriteTrip(trip *model.Trip) error {
	if w.fail == "trip" {
		return errDiskFull
	}
	return w.FeedWriter.WriteTrip(trip)
}

func (w *failingWriter) WriteCalendar(cal *model.Calendar) error {
	if w.fail == "calendar" {
		return errDiskFull
	}
	return w.FeedWriter.WriteCalendar(cal)
}

func (w *failingWriter) WriteCalendarDate(caldate *model.CalendarDate) error {
	if w.fail == "calendar_date" {
		return errDiskFull
	}
	return w.FeedWriter.WriteCalendarDate(caldate)
}

// Memory backed writer and reader for a single feed.
func memoryFeed(t *testing.T) (storage.FeedWriter, func() storage.FeedReader) {
	s := storage.NewMemoryStorage()
	writer, err := s.GetWriter("test")
	require.NoError(t, err)
	return writer, func() storage.FeedReader {
		reader, err := s.GetReader("test")
		require.NoError(t, err)
		return reader
	}
}
