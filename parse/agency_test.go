package parse

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olalid/ha-gtfs/model"
)

func TestParseAgency(t *testing.T) {
	for _, tc := range []struct {
		name      string
		content   string
		agencyIDs map[string]bool
		timezone  string
		agencies  []*model.Agency
		err       string
	}{
		{
			"single agency without agency_id",
			`
agency_name,agency_url,agency_timezone
SL,https://sl.se,Europe/Stockholm`,
			map[string]bool{"": true},
			"Europe/Stockholm",
			[]*model.Agency{{
				Name:     "SL",
				URL:      "https://sl.se",
				Timezone: "Europe/Stockholm",
			}},
			"",
		},

		{
			"agencies sharing timezone",
			`
agency_id,agency_name,agency_url,agency_timezone
ul,UL,https://ul.se,Europe/Stockholm
sl,SL,https://sl.se,Europe/Stockholm`,
			map[string]bool{"ul": true, "sl": true},
			"Europe/Stockholm",
			[]*model.Agency{
				{ID: "sl", Name: "SL", URL: "https://sl.se", Timezone: "Europe/Stockholm"},
				{ID: "ul", Name: "UL", URL: "https://ul.se", Timezone: "Europe/Stockholm"},
			},
			"",
		},

		{
			"timezone differs on a later record",
			`
agency_id,agency_name,agency_url,agency_timezone
sl,SL,https://sl.se,Europe/Stockholm
ruter,Ruter,https://ruter.no,Europe/Oslo`,
			nil, "", nil,
			"multiple agency_timezone",
		},

		{
			"first record lacks timezone",
			`
agency_id,agency_name,agency_url,agency_timezone
sl,SL,https://sl.se,
ul,UL,https://ul.se,Europe/Stockholm`,
			nil, "", nil,
			"missing agency_timezone",
		},

		{
			"unknown timezone",
			`
agency_name,agency_url,agency_timezone
SL,https://sl.se,Europe/Atlantis`,
			nil, "", nil,
			"agency_timezone 'Europe/Atlantis' is invalid",
		},

		{
			"repeated agency_id",
			`
agency_id,agency_name,agency_url,agency_timezone
sl,SL,https://sl.se,Europe/Stockholm
sl,SL again,https://sl.se,Europe/Stockholm`,
			nil, "", nil,
			"duplicated agency_id: 'sl'",
		},

		{
			"missing agency_name",
			`
agency_id,agency_url,agency_timezone
sl,https://sl.se,Europe/Stockholm`,
			nil, "", nil,
			"missing agency_name",
		},

		{
			"missing agency_url",
			`
agency_id,agency_name,agency_timezone
sl,SL,Europe/Stockholm`,
			nil, "", nil,
			"missing agency_url",
		},

		{
			"header only",
			`
agency_id,agency_name,agency_url,agency_timezone`,
			nil, "", nil,
			"no agency record found",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			writer, reader := memoryFeed(t)

			agency, tz, err := ParseAgency(writer, bytes.NewBufferString(tc.content))

			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.agencyIDs, agency)
			assert.Equal(t, tc.timezone, tz)

			agencies, err := reader().Agencies()
			require.NoError(t, err)
			sort.Slice(agencies, func(i, j int) bool {
				return agencies[i].ID < agencies[j].ID
			})
			assert.Equal(t, tc.agencies, agencies)
		})
	}
}

func TestParseAgencyWriteError(t *testing.T) {
	writer := newFailingWriter(t, "agency")

	_, _, err := ParseAgency(writer, bytes.NewBufferString(`
agency_id,agency_name,agency_url,agency_timezone
sl,SL,https://sl.se,Europe/Stockholm`))
	assert.ErrorIs(t, err, errDiskFull)
	assert.ErrorContains(t, err, "writing agency 'sl'")
}

func TestParseAgencyTimezoneCheckedBeforeWrites(t *testing.T) {
	writer, reader := memoryFeed(t)

	_, _, err := ParseAgency(writer, bytes.NewBufferString(`
agency_id,agency_name,agency_url,agency_timezone
sl,SL,https://sl.se,Europe/Stockholm
ul,UL,https://ul.se,Europe/Stockholm
ruter,Ruter,https://ruter.no,Europe/Oslo`))
	require.Error(t, err)

	agencies, err := reader().Agencies()
	require.NoError(t, err)
	assert.Equal(t, 0, len(agencies))
}
