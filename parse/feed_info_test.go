package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olalid/ha-gtfs/model"
)

func TestParseFeedInfo(t *testing.T) {
	for _, tc := range []struct {
		name     string
		content  string
		expected *model.FeedInfo
		err      bool
	}{
		{
			"minimal",
			`
feed_publisher_name,feed_publisher_url,feed_lang
Publisher,http://publisher/,en`,
			&model.FeedInfo{
				PublisherName: "Publisher",
				PublisherURL:  "http://publisher/",
				Lang:          "en",
			},
			false,
		},

		{
			"with dates and version",
			`
feed_publisher_name,feed_publisher_url,feed_lang,feed_start_date,feed_end_date,feed_version
Publisher,http://publisher/,en,20230101,20231231,v1`,
			&model.FeedInfo{
				PublisherName: "Publisher",
				PublisherURL:  "http://publisher/",
				Lang:          "en",
				StartDate:     "20230101",
				EndDate:       "20231231",
				Version:       "v1",
			},
			false,
		},

		{
			"no records",
			`
feed_publisher_name,feed_publisher_url,feed_lang`,
			nil,
			false,
		},

		{
			"multiple records",
			`
feed_publisher_name,feed_publisher_url,feed_lang
A,http://a/,en
B,http://b/,en`,
			nil,
			true,
		},

		{
			"invalid end date",
			`
feed_publisher_name,feed_publisher_url,feed_lang,feed_end_date
Publisher,http://publisher/,en,20231332`,
			nil,
			true,
		},

		{
			"start after end",
			`
feed_publisher_name,feed_publisher_url,feed_lang,feed_start_date,feed_end_date
Publisher,http://publisher/,en,20231231,20230101`,
			nil,
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			info, err := ParseFeedInfo(bytes.NewBufferString(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, info)
		})
	}
}
