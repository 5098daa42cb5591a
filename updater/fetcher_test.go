package updater

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newUpdateServer serves a manifest and its files; flaky fails the first
// request to /flaky with a 503.
func newUpdateServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var flaky atomic.Int32

	r := chi.NewRouter()
	r.Get("/app/manifest.yaml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "version: 2.0.0\nfiles:\n  - path: bin/app\n    size: 11\n")
	})
	r.Get("/app/bin/app", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "hello world")
	})
	r.Get("/agent", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, req.UserAgent())
	})
	r.Get("/flaky", func(w http.ResponseWriter, _ *http.Request) {
		if flaky.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "recovered")
	})
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		flaky.Add(1)
		http.NotFound(w, nil)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &flaky
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestHTTPFetcher_FetchReader(t *testing.T) {
	srv, _ := newUpdateServer(t)
	f := NewHTTPFetcher("1.2.3", nil)

	rc, err := f.FetchReader(context.Background(), srv.URL+"/agent", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "launcher-updater/1.2.3", readAll(t, rc))
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	srv, calls := newUpdateServer(t)
	f := NewHTTPFetcher("", nil)
	f.Interval = time.Millisecond

	rc, err := f.FetchReader(context.Background(), srv.URL+"/flaky", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "recovered", readAll(t, rc))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPFetcher_ClientErrorsArePermanent(t *testing.T) {
	srv, calls := newUpdateServer(t)
	f := NewHTTPFetcher("", nil)
	f.Interval = time.Millisecond

	_, err := f.FetchReader(context.Background(), srv.URL+"/missing", time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEngine_UpdateOverHTTP(t *testing.T) {
	srv, _ := newUpdateServer(t)
	dir := t.TempDir()

	engine, err := NewEngine(WithInstallDir(dir), WithCurrentVersion("1.0.0"))
	require.NoError(t, err)

	listener := &recordingListener{}
	outcome, err := engine.Update(context.Background(), srv.URL+"/app/manifest.yaml", filepath.Join(t.TempDir(), "update.zip"), time.Minute, 5*time.Second, listener)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.FileExists(t, filepath.Join(dir, "bin", "app"))
	assert.Equal(t, "completed", listener.Events()[len(listener.Events())-1])

	// Installed files now match the manifest, so a newer engine sees nothing to do.
	again, err := NewEngine(WithInstallDir(dir))
	require.NoError(t, err)
	outcome, err = again.Update(context.Background(), srv.URL+"/app/manifest.yaml", filepath.Join(t.TempDir(), "update.zip"), time.Minute, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpToDate, outcome)
}
