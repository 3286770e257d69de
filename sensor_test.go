package gtfs_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gtfs "github.com/olalid/ha-gtfs"
	"github.com/olalid/ha-gtfs/storage"
)

func TestDueInMinutes(t *testing.T) {
	now := monday(7, 0, 0)

	for _, tc := range []struct {
		arrival  time.Time
		expected int
	}{
		{monday(8, 15, 0), 75},
		{monday(7, 0, 0), 0},
		{monday(7, 0, 59), 0},
		{monday(7, 1, 0), 1},
		{monday(7, 1, 59), 1},
		{monday(6, 59, 30), 0},
		{monday(6, 58, 0), -2},
		{tuesday(6, 0, 0), 1380},
	} {
		assert.Equal(t, tc.expected, gtfs.DueInMinutes(tc.arrival, now), tc.arrival.String())
	}
}

func TestSensorDeparture(t *testing.T) {
	cache, _ := buildCache(t, scenarioFiles("20241231"), "S1")
	sensor := gtfs.NewSensor("Bus to town", cache)
	assert.Equal(t, "Bus to town", sensor.Name)

	reading, err := sensor.Update(context.Background(), monday(7, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "Bus to town", reading.Name)
	assert.Equal(t, "75", reading.State)
	assert.Equal(t, 75, reading.DueIn)
	assert.True(t, reading.HasDeparture)
	assert.Equal(t, "T1", reading.Departure.TripID)
	assert.Equal(t, map[string]string{
		gtfs.AttrStopID:    "S1",
		gtfs.AttrDueIn:     "75",
		gtfs.AttrStopName:  "Main Street",
		gtfs.AttrDueAt:     "08:15:00",
		gtfs.AttrRoute:     "42",
		gtfs.AttrDirection: "Downtown",
		gtfs.AttrTripID:    "T1",
	}, reading.Attributes)
	require.NotNil(t, reading.Refresh)
	assert.True(t, reading.Refresh.Valid)

	// No refresh needed this time
	reading, err = sensor.Update(context.Background(), monday(9, 0, 0))
	require.NoError(t, err)
	assert.Nil(t, reading.Refresh)
	assert.Equal(t, "1260", reading.State)
	assert.Equal(t, "06:00:00", reading.Attributes[gtfs.AttrDueAt])
	assert.Equal(t, "T2", reading.Attributes[gtfs.AttrTripID])
}

func TestSensorDefaultName(t *testing.T) {
	cache, _ := buildCache(t, scenarioFiles("20241231"), "S1")
	assert.Equal(t, gtfs.DefaultSensorName, gtfs.NewSensor("", cache).Name)
}

func TestSensorNoDeparture(t *testing.T) {
	cache, _ := buildCache(t, scheduleFiles(), "S3")
	sensor := gtfs.NewSensor("", cache)

	reading, err := sensor.Update(context.Background(), monday(7, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, gtfs.StateNoDeparture, reading.State)
	assert.False(t, reading.HasDeparture)
	assert.Equal(t, map[string]string{
		gtfs.AttrStopID: "S3",
		gtfs.AttrDueIn:  "-",
	}, reading.Attributes)
}

func TestSensorInvalidFeed(t *testing.T) {
	cache, _ := buildCache(t, scenarioFiles("20240304"), "S1")
	sensor := gtfs.NewSensor("", cache)

	reading, err := sensor.Update(context.Background(), monday(7, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, gtfs.StateInvalid, reading.State)
	assert.False(t, reading.HasDeparture)
	assert.Equal(t, map[string]string{gtfs.AttrDueIn: "Invalid"}, reading.Attributes)
	require.NotNil(t, reading.Refresh)
	assert.ErrorIs(t, reading.Refresh.Reason, gtfs.ErrFeedNotCovering)
}

func TestSensorLoadFailure(t *testing.T) {
	loader := gtfs.NewLoader(storage.NewMemoryStorage())
	cache := gtfs.NewScheduleCache(loader, filepath.Join(t.TempDir(), "missing.zip"), "S1")
	sensor := gtfs.NewSensor("", cache)

	reading, err := sensor.Update(context.Background(), monday(7, 0, 0))
	assert.Error(t, err)
	assert.Equal(t, gtfs.StateInvalid, reading.State)
	assert.Equal(t, map[string]string{gtfs.AttrDueIn: "Invalid"}, reading.Attributes)
}
