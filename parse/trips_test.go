package parse

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olalid/ha-gtfs/model"
)

func TestParseTrips(t *testing.T) {
	routes := map[string]bool{"r42": true, "r43": true}
	services := map[string]bool{"vardag": true, "helg": true}

	for _, tc := range []struct {
		name    string
		content string
		trips   []*model.Trip
		err     string
	}{
		{
			"both directions",
			`
route_id,service_id,trip_id,trip_headsign,trip_short_name,direction_id
r42,vardag,t1,Hornstull,,0
r42,vardag,t2,Slussen,,1
r43,helg,t3,Liljeholmen,Nattbuss,`,
			[]*model.Trip{
				{ID: "t1", RouteID: "r42", ServiceID: "vardag", Headsign: "Hornstull"},
				{ID: "t2", RouteID: "r42", ServiceID: "vardag", Headsign: "Slussen", DirectionID: 1},
				{ID: "t3", RouteID: "r43", ServiceID: "helg", Headsign: "Liljeholmen", ShortName: "Nattbuss"},
			},
			"",
		},

		{
			"route_id blank",
			`
route_id,service_id,trip_id
,vardag,t1`,
			nil,
			"empty route_id for trip_id 't1'",
		},

		{
			"route_id column missing",
			`
service_id,trip_id
vardag,t1`,
			nil,
			"empty route_id for trip_id 't1'",
		},

		{
			"route not in routes.txt",
			`
route_id,service_id,trip_id
r99,vardag,t1`,
			nil,
			"unknown route_id 'r99'",
		},

		{
			"service not in calendar",
			`
route_id,service_id,trip_id
r42,sondag,t1`,
			nil,
			"unknown service_id 'sondag'",
		},

		{
			"direction_id out of range",
			`
route_id,service_id,trip_id,direction_id
r42,vardag,t1,2`,
			nil,
			"invalid direction_id '2'",
		},

		{
			"repeated trip_id",
			`
route_id,service_id,trip_id
r42,vardag,t1
r43,helg,t1`,
			nil,
			"repeated trip_id 't1'",
		},

		{
			"trip_id blank",
			`
route_id,service_id,trip_id
r42,vardag,`,
			nil,
			"empty trip_id",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			writer, reader := memoryFeed(t)

			tripIDs, err := ParseTrips(writer, bytes.NewBufferString(tc.content), routes, services)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}

			require.NoError(t, err)

			trips, err := reader().Trips()
			require.NoError(t, err)
			sort.Slice(trips, func(i, j int) bool {
				return trips[i].ID < trips[j].ID
			})
			assert.Equal(t, tc.trips, trips)

			assert.Equal(t, len(tc.trips), len(tripIDs))
			for _, trip := range tc.trips {
				assert.True(t, tripIDs[trip.ID])
			}
		})
	}
}

func TestParseTripsWriteError(t *testing.T) {
	writer := newFailingWriter(t, "trip")

	_, err := ParseTrips(
		writer,
		bytes.NewBufferString(`
route_id,service_id,trip_id
r42,vardag,t1
r42,vardag,t2`),
		map[string]bool{"r42": true},
		map[string]bool{"vardag": true},
	)
	assert.ErrorIs(t, err, errDiskFull)
	assert.ErrorContains(t, err, "writing trip 't1'")
}
