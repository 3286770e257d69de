package config

import "time"

// Departure is one sensor: the next departure from a stop.
type Departure struct {
	Name   string `yaml:"name"`
	StopID string `yaml:"stopid" validate:"required"`
}

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
}

// StorageConfig selects where parsed feeds are kept.
type StorageConfig struct {
	Backend   string         `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	Directory string         `yaml:"directory"`
	Postgres  PostgresConfig `yaml:"postgres"`
}

// DownloadConfig applies when gtfs_file is an http(s) URL.
type DownloadConfig struct {
	Timeout  time.Duration     `yaml:"timeout" validate:"gte=0"`
	MaxSize  int               `yaml:"max_size" validate:"gte=0"`
	CacheTTL time.Duration     `yaml:"cache_ttl" validate:"gte=0"`
	Retries  *uint64           `yaml:"retries"`
	Headers  map[string]string `yaml:"headers"`
}

// Config is the root configuration structure
type Config struct {
	GTFSFile        string         `yaml:"gtfs_file" validate:"required"`
	Timezone        string         `yaml:"timezone"`
	PollInterval    time.Duration  `yaml:"poll_interval" validate:"gte=0"`
	RefreshInterval time.Duration  `yaml:"refresh_interval" validate:"gte=0"`
	Departures      []Departure    `yaml:"departures" validate:"required,min=1,dive"`
	Storage         StorageConfig  `yaml:"storage"`
	Download        DownloadConfig `yaml:"download"`
}
