package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	gtfs "github.com/olalid/ha-gtfs"
)

var nextCmd = &cobra.Command{
	Use:   "next [stop_id...]",
	Short: "Prints the next departure from stops",
	Long:  "Prints the next departure from the given stops, or from all configured departures",
	RunE:  next,
}

var at string

func init() {
	nextCmd.Flags().StringVarP(&at, "at", "", "", "Evaluate at this time (RFC 3339) instead of now")
	rootCmd.AddCommand(nextCmd)
}

func next(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args, true)
	if err != nil {
		return err
	}

	now := time.Now().In(cfg.Location())
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		now = t.In(cfg.Location())
	}

	loader, err := buildLoader(cfg)
	if err != nil {
		return err
	}

	for _, sensor := range buildSensors(cfg, loader) {
		reading, err := sensor.Update(cmd.Context(), now)
		if err != nil {
			return fmt.Errorf("updating %s (%s): %w", sensor.Name, sensor.StopID(), err)
		}
		printReading(reading)
	}

	return nil
}

func printReading(reading gtfs.Reading) {
	if reading.HasDeparture {
		fmt.Printf("%s: %s %s\n", reading.Name, reading.State, gtfs.UnitOfMeasurement)
	} else {
		fmt.Printf("%s: %s\n", reading.Name, reading.State)
	}

	keys := []string{}
	for k := range reading.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, reading.Attributes[k])
	}
}
