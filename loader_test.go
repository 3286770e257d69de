package gtfs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gtfs "github.com/olalid/ha-gtfs"
	"github.com/olalid/ha-gtfs/storage"
	"github.com/olalid/ha-gtfs/testutil"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func TestLoaderLocalFile(t *testing.T) {
	for _, backend := range testutil.Backends() {
		t.Run(backend, func(t *testing.T) {
			s := testutil.BuildStorage(t, backend)
			loader := gtfs.NewLoader(s)
			loader.Now = func() time.Time { return time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) }

			path := testutil.WriteZip(t, scheduleFiles())

			static, err := loader.Load(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, path, static.Metadata.Source)
			assert.Equal(t, 64, len(static.Metadata.Hash))
			assert.Equal(t, "20240101", static.Metadata.CalendarStartDate)
			assert.Equal(t, "20241231", static.Metadata.CalendarEndDate)
			assert.Equal(t, time.UTC, static.Location())

			feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
			require.NoError(t, err)
			require.Equal(t, 1, len(feeds))
			assert.Equal(t, static.Metadata.Hash, feeds[0].Hash)
			assert.Equal(t, path, feeds[0].Source)
			assert.True(t, time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC).Equal(feeds[0].RetrievedAt))

			// Data is readable
			departures, err := static.DayDepartures("S1", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Equal(t, 3, len(departures))

			// Same thing via file:// URL
			static, err = loader.Load(context.Background(), "file://"+path)
			require.NoError(t, err)
			assert.Equal(t, feeds[0].Hash, static.Metadata.Hash)
		})
	}
}

func TestLoaderReusesUnchangedArchive(t *testing.T) {
	for _, backend := range testutil.Backends() {
		t.Run(backend, func(t *testing.T) {
			s := testutil.BuildStorage(t, backend)
			loader := gtfs.NewLoader(s)
			calls := 0
			loader.Now = func() time.Time {
				calls++
				return time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
			}

			path := testutil.WriteZip(t, scheduleFiles())

			first, err := loader.Load(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, 1, calls)

			second, err := loader.Load(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, first.Metadata.Hash, second.Metadata.Hash)

			feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
			require.NoError(t, err)
			assert.Equal(t, 1, len(feeds))
		})
	}
}

func TestLoaderReplacesChangedArchive(t *testing.T) {
	for _, backend := range testutil.Backends() {
		t.Run(backend, func(t *testing.T) {
			s := testutil.BuildStorage(t, backend)
			loader := gtfs.NewLoader(s)

			path := testutil.WriteZip(t, scheduleFiles())

			first, err := loader.Load(context.Background(), path)
			require.NoError(t, err)

			// Archive at the same path is updated
			require.NoError(t, writeFile(path, testutil.BuildZip(t, scenarioFiles("20241231"))))

			second, err := loader.Load(context.Background(), path)
			require.NoError(t, err)
			assert.NotEqual(t, first.Metadata.Hash, second.Metadata.Hash)

			feeds, err := s.ListFeeds(storage.ListFeedsFilter{Source: path})
			require.NoError(t, err)
			require.Equal(t, 1, len(feeds))
			assert.Equal(t, second.Metadata.Hash, feeds[0].Hash)

			_, err = s.GetReader(first.Metadata.Hash)
			assert.ErrorIs(t, err, storage.ErrFeedNotFound)

			name, err := second.StopName("S1")
			require.NoError(t, err)
			assert.Equal(t, "Main Street", name)
		})
	}
}

func TestLoaderSourcesSharingArchive(t *testing.T) {
	s := storage.NewMemoryStorage()
	loader := gtfs.NewLoader(s)

	a := testutil.WriteZip(t, scheduleFiles())
	b := testutil.WriteZip(t, scheduleFiles())

	first, err := loader.Load(context.Background(), a)
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, first.Metadata.Hash, second.Metadata.Hash)

	// The first source keeps ownership
	feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, len(feeds))
	assert.Equal(t, a, feeds[0].Source)
}

func TestLoaderBrokenArchive(t *testing.T) {
	for _, backend := range testutil.Backends() {
		t.Run(backend, func(t *testing.T) {
			s := testutil.BuildStorage(t, backend)
			loader := gtfs.NewLoader(s)

			files := scheduleFiles()
			files["stop_times.txt"] = append(files["stop_times.txt"], "T1,08:45:00,08:45:00,unknown,3,,0")
			path := testutil.WriteZip(t, files)

			_, err := loader.Load(context.Background(), path)
			assert.Error(t, err)

			feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
			require.NoError(t, err)
			assert.Equal(t, 0, len(feeds))

			// Storage is still usable
			require.NoError(t, writeFile(path, testutil.BuildZip(t, scheduleFiles())))
			_, err = loader.Load(context.Background(), path)
			assert.NoError(t, err)
		})
	}
}

func TestLoaderErrors(t *testing.T) {
	loader := gtfs.NewLoader(storage.NewMemoryStorage())

	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)

	_, err = loader.Load(context.Background(), "ftp://example.com/gtfs.zip")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.zip")
	require.NoError(t, writeFile(path, []byte("garbage")))
	_, err = loader.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoaderHTTP(t *testing.T) {
	archive := testutil.BuildZip(t, scheduleFiles())

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gtfs.zip" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Write(archive)
	}))
	defer server.Close()

	s := storage.NewMemoryStorage()
	loader := gtfs.NewLoader(s)
	loader.Headers = map[string]string{"Authorization": "secret"}
	loader.Retries = 0

	static, err := loader.Load(context.Background(), server.URL+"/gtfs.zip")
	require.NoError(t, err)
	assert.Equal(t, "secret", gotAuth)
	assert.Equal(t, server.URL+"/gtfs.zip", static.Metadata.Source)

	name, err := static.StopName("S2")
	require.NoError(t, err)
	assert.Equal(t, "Stop Two", name)

	_, err = loader.Load(context.Background(), server.URL+"/nope.zip")
	assert.Error(t, err)

	// Too large
	loader.MaxSize = 10
	_, err = loader.Load(context.Background(), server.URL+"/gtfs.zip")
	assert.Error(t, err)
}

func TestLoaderFileURLWithoutSlash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "gtfs.zip"), testutil.BuildZip(t, scheduleFiles())))
	t.Chdir(dir)

	loader := gtfs.NewLoader(storage.NewMemoryStorage())
	static, err := loader.Load(context.Background(), "file:gtfs.zip")
	require.NoError(t, err)
	assert.Equal(t, "file:gtfs.zip", static.Metadata.Source)

	_, err = loader.Load(context.Background(), "file:missing.zip")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
