package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/olalid/ha-gtfs/model"
)

type FeedInfoCSV struct {
	PublisherName string `csv:"feed_publisher_name"`
	PublisherURL  string `csv:"feed_publisher_url"`
	Lang          string `csv:"feed_lang"`
	StartDate     string `csv:"feed_start_date"`
	EndDate       string `csv:"feed_end_date"`
	Version       string `csv:"feed_version"`
}

// Parses feed_info.txt. Returns nil if the file holds no record.
func ParseFeedInfo(data io.Reader) (*model.FeedInfo, error) {
	rows := []*FeedInfoCSV{}
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling feed_info csv: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		return nil, fmt.Errorf("found %d records, expected 1", len(rows))
	}

	fi := rows[0]
	if fi.StartDate != "" {
		if err := validDate(fi.StartDate); err != nil {
			return nil, fmt.Errorf("parsing feed_start_date: %w", err)
		}
	}
	if fi.EndDate != "" {
		if err := validDate(fi.EndDate); err != nil {
			return nil, fmt.Errorf("parsing feed_end_date: %w", err)
		}
	}
	if fi.StartDate != "" && fi.EndDate != "" && fi.StartDate > fi.EndDate {
		return nil, fmt.Errorf("feed_start_date %s after feed_end_date %s", fi.StartDate, fi.EndDate)
	}

	return &model.FeedInfo{
		PublisherName: fi.PublisherName,
		PublisherURL:  fi.PublisherURL,
		Lang:          fi.Lang,
		StartDate:     fi.StartDate,
		EndDate:       fi.EndDate,
		Version:       fi.Version,
	}, nil
}
