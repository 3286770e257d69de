package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	gtfs "github.com/olalid/ha-gtfs"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Polls all configured departures until interrupted",
	Args:  cobra.NoArgs,
	RunE:  watch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil, true)
	if err != nil {
		return err
	}

	loader, err := buildLoader(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("gtfs_file", cfg.GTFSFile).
		Int("sensors", len(cfg.Departures)).
		Dur("poll_interval", cfg.PollInterval).
		Msg("Watching departures")

	p := pool.New().WithErrors().WithContext(ctx)
	for _, sensor := range buildSensors(cfg, loader) {
		p.Go(func(ctx context.Context) error {
			return poll(ctx, sensor, cfg.PollInterval, cfg.Location())
		})
	}

	err = p.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Updates the sensor every interval until ctx is done.
func poll(ctx context.Context, sensor *gtfs.Sensor, interval time.Duration, location *time.Location) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		reading, err := sensor.Update(ctx, time.Now().In(location))
		logReading(sensor, reading, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func logReading(sensor *gtfs.Sensor, reading gtfs.Reading, err error) {
	logger := log.With().Str("sensor", sensor.Name).Str("stop", sensor.StopID()).Logger()

	if r := reading.Refresh; r != nil {
		event := logger.Info()
		if !r.Valid {
			event = logger.Warn()
		}
		event.
			Str("date", r.Date).
			Bool("valid", r.Valid).
			AnErr("reason", r.Reason).
			Str("stop_name", r.StopName).
			Int("today", r.Today).
			Int("tomorrow", r.Tomorrow).
			Str("hash", r.Hash).
			Msg("Refreshed schedule")
	}

	if err != nil {
		logger.Error().Err(err).Msg("Failed to update sensor")
	}

	attributes := map[string]interface{}{}
	for k, v := range reading.Attributes {
		attributes[k] = v
	}
	logger.Info().
		Str("state", reading.State).
		Fields(attributes).
		Msg("Sensor updated")
}
