package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	gtfs "github.com/olalid/ha-gtfs"
	"github.com/olalid/ha-gtfs/config"
	"github.com/olalid/ha-gtfs/storage"
)

var rootCmd = &cobra.Command{
	Use:               "ha-gtfs",
	Short:             "GTFS next departure sensor",
	Long:              "Reports the next scheduled departure from transit stops, read from a GTFS feed",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

var (
	configPath string
	gtfsFile   string
	timezone   string
	logFormat  string
	debug      bool
	headers    []string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&gtfsFile, "gtfs-file", "f", "", "GTFS zip archive (path or URL), overrides config")
	rootCmd.PersistentFlags().StringVarP(&timezone, "timezone", "", "", "Timezone, overrides config")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "", "console", "Log format: console or json")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringSliceVarP(
		&headers,
		"header",
		"",
		[]string{},
		"HTTP header used when downloading the GTFS archive",
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	switch logFormat {
	case "console":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		return fmt.Errorf("unknown log format '%s'", logFormat)
	}

	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	return nil
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

// Reads the config file, if any, and applies flag overrides. Stop
// IDs given as arguments replace the configured departures.
func loadConfig(stopIDs []string, requireDepartures bool) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("reading config: %w", err)
		}
		cfg, err = config.Decode(data)
		if err != nil {
			return config.Config{}, err
		}
	}

	if gtfsFile != "" {
		cfg.GTFSFile = gtfsFile
	}
	if timezone != "" {
		cfg.Timezone = timezone
	}

	extra, err := parseHeaders(headers)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid header: %w", err)
	}
	if len(extra) > 0 && cfg.Download.Headers == nil {
		cfg.Download.Headers = map[string]string{}
	}
	for k, v := range extra {
		cfg.Download.Headers[k] = v
	}

	if len(stopIDs) > 0 {
		cfg.Departures = nil
		for _, stopID := range stopIDs {
			cfg.Departures = append(cfg.Departures, config.Departure{
				Name:   config.DefaultDepartureName,
				StopID: stopID,
			})
		}
	}

	if requireDepartures {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateFeed()
	}
	if err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func buildStorage(cfg config.Config) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteStorage(storage.SQLiteConfig{
			OnDisk:    cfg.Storage.Directory != "",
			Directory: cfg.Storage.Directory,
		})
	case "postgres":
		pg := cfg.Storage.Postgres
		return storage.NewPSQLStorage(storage.PSQLConfig{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			DBName:   pg.DBName,
			SSLMode:  pg.SSLMode,
		})
	}
	return storage.NewMemoryStorage(), nil
}

func buildLoader(cfg config.Config) (*gtfs.Loader, error) {
	s, err := buildStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s storage: %w", cfg.Storage.Backend, err)
	}

	loader := gtfs.NewLoader(s)
	loader.Timeout = cfg.Download.Timeout
	loader.MaxSize = cfg.Download.MaxSize
	loader.CacheTTL = cfg.Download.CacheTTL
	if cfg.Download.Retries != nil {
		loader.Retries = *cfg.Download.Retries
	}
	loader.Headers = cfg.Download.Headers
	loader.Logger = log.Logger

	return loader, nil
}

func buildSensors(cfg config.Config, loader gtfs.FeedLoader) []*gtfs.Sensor {
	sensors := []*gtfs.Sensor{}
	for _, d := range cfg.Departures {
		cache := gtfs.NewScheduleCache(loader, cfg.GTFSFile, d.StopID)
		cache.MaxAge = cfg.RefreshInterval
		sensors = append(sensors, gtfs.NewSensor(d.Name, cache))
	}
	return sensors
}
