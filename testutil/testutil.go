package testutil

// Helpers and configuration for tests.
//
// Tests run against the memory and sqlite backends. If
// GTFS_TEST_POSTGRES is set (to a host), postgres is included too.

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	gtfs "github.com/olalid/ha-gtfs"
	"github.com/olalid/ha-gtfs/parse"
	"github.com/olalid/ha-gtfs/storage"
)

func Backends() []string {
	backends := []string{"memory", "sqlite"}
	if os.Getenv("GTFS_TEST_POSTGRES") != "" {
		backends = append(backends, "postgres")
	}
	return backends
}

func BuildStorage(t testing.TB, backend string) storage.Storage {
	var s storage.Storage
	var err error
	switch backend {
	case "memory":
		s = storage.NewMemoryStorage()
	case "sqlite":
		s, err = storage.NewSQLiteStorage()
		require.NoError(t, err)
	case "postgres":
		s, err = storage.NewPSQLStorage(storage.PSQLConfig{
			Host:     os.Getenv("GTFS_TEST_POSTGRES"),
			Port:     5432,
			User:     "postgres",
			Password: os.Getenv("GTFS_TEST_POSTGRES_PASSWORD"),
			DBName:   "postgres",
			ClearDB:  true,
		})
		require.NoError(t, err)
	}
	require.NotNil(t, s, "unknown backend %q", backend)

	return s
}

func LoadStatic(t testing.TB, backend string, buf []byte) *gtfs.Static {
	s := BuildStorage(t, backend)

	// Parse buf into storage
	feedWriter, err := s.GetWriter("test")
	require.NoError(t, err)

	metadata, err := parse.ParseStatic(feedWriter, buf)
	require.NoError(t, err)
	metadata.Hash = "test"

	// Create Static
	reader, err := s.GetReader("test")
	require.NoError(t, err)

	static, err := gtfs.NewStatic(reader, metadata)
	require.NoError(t, err)

	return static
}

func BuildStatic(
	t testing.TB,
	backend string,
	files map[string][]string,
) *gtfs.Static {
	return LoadStatic(t, backend, BuildZip(t, files))
}

// Fills in missing required files with (mostly blank) dummy data.
func fillFiles(files map[string][]string) map[string][]string {
	filled := map[string][]string{}
	for name, content := range files {
		filled[name] = content
	}

	if filled["agency.txt"] == nil {
		filled["agency.txt"] = []string{"agency_timezone,agency_name,agency_url", "UTC,FooAgency,http://example.com"}
	}
	if filled["calendar.txt"] == nil && filled["calendar_dates.txt"] == nil {
		filled["calendar.txt"] = []string{"service_id"}
	}
	if filled["routes.txt"] == nil {
		filled["routes.txt"] = []string{"route_id"}
	}
	if filled["trips.txt"] == nil {
		filled["trips.txt"] = []string{"trip_id"}
	}
	if filled["stops.txt"] == nil {
		filled["stops.txt"] = []string{"stop_id"}
	}
	if filled["stop_times.txt"] == nil {
		filled["stop_times.txt"] = []string{"stop_id"}
	}

	return filled
}

// Builds a GTFS zip archive. Required files missing from files are
// added.
func BuildZip(
	t testing.TB,
	files map[string][]string,
) []byte {

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range fillFiles(files) {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

// Writes a GTFS zip archive to a temporary file, returning its path.
func WriteZip(
	t testing.TB,
	files map[string][]string,
) string {
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	require.NoError(t, os.WriteFile(path, BuildZip(t, files), 0644))
	return path
}
