package parse

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olalid/ha-gtfs/model"
)

const calendarHeader = "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date"

func TestParseCalendar(t *testing.T) {
	for _, tc := range []struct {
		name      string
		rows      string
		services  map[string]bool
		minDate   string
		maxDate   string
		calendars []*model.Calendar
		err       string
	}{
		{
			"weekdays",
			`
vardag,1,1,1,1,1,0,0,20240101,20241231`,
			map[string]bool{"vardag": true},
			"20240101",
			"20241231",
			[]*model.Calendar{{
				ServiceID: "vardag",
				StartDate: "20240101",
				EndDate:   "20241231",
				Weekday:   1<<1 | 1<<2 | 1<<3 | 1<<4 | 1<<5,
			}},
			"",
		},

		{
			"weekend wraps sunday to bit zero",
			`
helg,0,0,0,0,0,1,1,20240106,20240107`,
			map[string]bool{"helg": true},
			"20240106",
			"20240107",
			[]*model.Calendar{{
				ServiceID: "helg",
				StartDate: "20240106",
				EndDate:   "20240107",
				Weekday:   1<<6 | 1,
			}},
			"",
		},

		{
			"date range spans all services",
			`
summer,1,1,1,1,1,1,1,20240615,20240815
winter,1,1,1,1,1,1,1,20231201,20240301
never,0,0,0,0,0,0,0,20240101,20240102`,
			map[string]bool{"summer": true, "winter": true, "never": true},
			"20231201",
			"20240815",
			[]*model.Calendar{
				{ServiceID: "never", StartDate: "20240101", EndDate: "20240102"},
				{ServiceID: "summer", StartDate: "20240615", EndDate: "20240815", Weekday: 127},
				{ServiceID: "winter", StartDate: "20231201", EndDate: "20240301", Weekday: 127},
			},
			"",
		},

		{
			"day flag out of range",
			`
odd,1,1,2,1,1,0,0,20240101,20241231`,
			nil, "", "", nil,
			"service_id 'odd': invalid Wednesday value '2'",
		},

		{
			"dashed start_date",
			`
s,1,1,1,1,1,0,0,2024-01-01,20241231`,
			nil, "", "", nil,
			"parsing start_date",
		},

		{
			"end_date not in calendar",
			`
s,1,1,1,1,1,0,0,20240101,20240230`,
			nil, "", "", nil,
			"parsing end_date",
		},

		{
			"repeated service_id",
			`
s,1,0,0,0,0,0,0,20240101,20240131
s,0,1,0,0,0,0,0,20240201,20240229`,
			nil, "", "", nil,
			"repeated service_id 's'",
		},

		{
			"empty service_id",
			`
,1,0,0,0,0,0,0,20240101,20240131`,
			nil, "", "", nil,
			"empty service_id",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			writer, reader := memoryFeed(t)

			services, minDate, maxDate, err := ParseCalendar(writer, bytes.NewBufferString(calendarHeader+tc.rows))
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.services, services)
			assert.Equal(t, tc.minDate, minDate)
			assert.Equal(t, tc.maxDate, maxDate)

			calendars, err := reader().Calendars()
			require.NoError(t, err)
			sort.Slice(calendars, func(i, j int) bool {
				return calendars[i].ServiceID < calendars[j].ServiceID
			})
			assert.Equal(t, tc.calendars, calendars)
		})
	}
}

func TestParseCalendarWriteError(t *testing.T) {
	writer := newFailingWriter(t, "calendar")

	_, _, _, err := ParseCalendar(writer, bytes.NewBufferString(calendarHeader+`
s,1,0,0,0,0,0,0,20240101,20240131`))
	assert.ErrorIs(t, err, errDiskFull)
	assert.ErrorContains(t, err, "writing calendar")
}
