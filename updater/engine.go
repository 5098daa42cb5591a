// Package updater checks a remote manifest for a newer release of the
// application, downloads the changed files while reporting progress to
// DownloadListeners, and installs them as one archive.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/GoCodeAlone/launcher/logging"
	"github.com/GoCodeAlone/launcher/metrics"
)

const defaultChunkSize = 32 << 10

// Outcome is the result of one Update call.
type Outcome int

const (
	// OutcomeSkipped means the rate limit suppressed the attempt.
	OutcomeSkipped Outcome = iota
	// OutcomeUpToDate means the manifest required nothing.
	OutcomeUpToDate
	// OutcomeUpdated means files were downloaded and installed.
	OutcomeUpdated
	// OutcomeFailed means the attempt stopped on an error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUpToDate:
		return "up_to_date"
	case OutcomeUpdated:
		return "updated"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Engine performs rate-limited update attempts. An Engine is safe for
// concurrent use; attempts for the same URL share one last-check record.
type Engine struct {
	mu        sync.Mutex
	lastCheck map[string]time.Time

	fetcher    Fetcher
	installer  Installer
	installDir string
	current    *version.Version
	logger     logging.Logger
	now        func() time.Time
	metrics    *metrics.Collector
	chunkSize  int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine) error

// WithFetcher sets the collaborator used for the manifest and file downloads.
func WithFetcher(f Fetcher) EngineOption {
	return func(e *Engine) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		e.fetcher = f
		return nil
	}
}

// WithInstaller sets the collaborator applying downloaded archives.
func WithInstaller(i Installer) EngineOption {
	return func(e *Engine) error {
		if i == nil {
			return errors.New("installer cannot be nil")
		}
		e.installer = i
		return nil
	}
}

// WithInstallDir sets the directory compared against the manifest and, unless
// WithInstaller is used, the directory updates are installed into.
func WithInstallDir(dir string) EngineOption {
	return func(e *Engine) error {
		if dir == "" {
			return errors.New("install directory cannot be empty")
		}
		e.installDir = dir
		return nil
	}
}

// WithCurrentVersion sets the running version compared with the manifest's.
func WithCurrentVersion(v string) EngineOption {
	return func(e *Engine) error {
		if v == "" {
			e.current = nil
			return nil
		}
		parsed, err := version.NewVersion(v)
		if err != nil {
			return fmt.Errorf("invalid current version %q: %w", v, err)
		}
		e.current = parsed
		return nil
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(logger logging.Logger) EngineOption {
	return func(e *Engine) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		e.logger = logger
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		e.now = now
		return nil
	}
}

// WithEngineMetrics records attempt outcomes and downloaded bytes.
func WithEngineMetrics(c *metrics.Collector) EngineOption {
	return func(e *Engine) error {
		e.metrics = c
		return nil
	}
}

// WithChunkSize sets the read buffer size used for downloads.
func WithChunkSize(n int) EngineOption {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("chunk size must be positive, got %d", n)
		}
		e.chunkSize = n
		return nil
	}
}

// NewEngine creates an Engine. Without options it fetches over HTTP and
// installs into the working directory.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		lastCheck:  make(map[string]time.Time),
		installDir: ".",
		logger:     logging.Discard(),
		now:        time.Now,
		chunkSize:  defaultChunkSize,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.fetcher == nil {
		current := ""
		if e.current != nil {
			current = e.current.String()
		}
		e.fetcher = NewHTTPFetcher(current, e.logger)
	}
	if e.installer == nil {
		e.installer = NewArchiveInstaller(e.installDir, e.logger)
	}
	return e, nil
}

// LastCheck returns when url was last checked.
func (e *Engine) LastCheck(url string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.lastCheck[url]
	return t, ok
}

// Update checks the manifest at url and, when an update is required,
// downloads the changed files, packs them into archiveName and installs it.
//
// Attempts for url closer than minInterval to the previous one are skipped
// without I/O. The check time is recorded before the manifest is fetched, so
// concurrent callers do not fetch twice, and replaced by the completion time
// once the attempt ends. A failed attempt notifies DownloadFailure and returns
// OutcomeFailed with the error; it never installs a partial set of files.
func (e *Engine) Update(ctx context.Context, url, archiveName string, minInterval, timeout time.Duration, listeners ...DownloadListener) (Outcome, error) {
	if !e.claim(url, minInterval) {
		e.logger.Debug("Update check skipped", "url", url, "interval", minInterval)
		e.metrics.UpdateAttempt(OutcomeSkipped.String(), 0)
		return OutcomeSkipped, nil
	}

	started := e.now()
	fan := NewListeners(e.logger, listeners...)
	outcome, err := e.attempt(ctx, url, archiveName, timeout, fan)
	finished := e.now()

	e.mu.Lock()
	e.lastCheck[url] = finished
	e.mu.Unlock()

	if err != nil {
		outcome = OutcomeFailed
		e.logger.Error("Update failed", "url", url, "error", err)
		fan.DownloadFailure(err)
	}
	e.metrics.UpdateAttempt(outcome.String(), finished.Sub(started))
	return outcome, err
}

// claim reports whether an attempt for url may run now and, if so, records
// the placeholder check time.
func (e *Engine) claim(url string, minInterval time.Duration) bool {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastCheck[url]; ok && now.Before(last.Add(minInterval)) {
		return false
	}
	e.lastCheck[url] = now
	return true
}

func (e *Engine) attempt(ctx context.Context, url, archiveName string, timeout time.Duration, fan *Listeners) (Outcome, error) {
	e.logger.Info("Checking for updates", "url", url)

	manifest, err := e.fetchManifest(ctx, url, timeout)
	if err != nil {
		return OutcomeFailed, err
	}

	changed, required, err := manifest.Changes(e.installDir, e.current)
	if err != nil {
		return OutcomeFailed, err
	}
	if !required {
		e.logger.Info("Application is up to date", "url", url, "version", manifest.Version)
		fan.FileUpToDate()
		return OutcomeUpToDate, nil
	}

	e.logger.Info("Update required", "url", url, "version", manifest.Version, "files", len(changed), "bytes", TotalSize(changed))

	staging, err := os.MkdirTemp("", "launcher-update-*")
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: create staging dir: %w", ErrDownloadFailed, err)
	}
	defer os.RemoveAll(staging)

	if err := e.download(ctx, manifest, url, changed, staging, timeout, fan); err != nil {
		return OutcomeFailed, err
	}

	paths := make([]string, len(changed))
	for i, f := range changed {
		paths[i] = f.Path
	}
	if err := PackArchive(archiveName, staging, paths); err != nil {
		return OutcomeFailed, err
	}
	if err := e.installer.Install(archiveName, true); err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	e.logger.Info("Update completed", "url", url, "version", manifest.Version)
	fan.Completed()
	return OutcomeUpdated, nil
}

func (e *Engine) fetchManifest(ctx context.Context, url string, timeout time.Duration) (*Manifest, error) {
	body, err := e.fetcher.FetchReader(ctx, url, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestFetch, err)
	}
	defer body.Close()
	return ParseManifest(body)
}

// download transfers every file into staging, emitting the per-file and
// batch progress events.
func (e *Engine) download(ctx context.Context, m *Manifest, manifestURL string, files []FileEntry, staging string, timeout time.Duration, fan *Listeners) error {
	progress := &batchProgress{total: TotalSize(files), fan: fan}

	fan.StartDownloads()
	buf := make([]byte, e.chunkSize)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
		}
		uri, err := m.ResolveURI(f, manifestURL)
		if err != nil {
			return err
		}
		fan.StartDownloadFile(f.Path)
		if err := e.downloadFile(ctx, uri, f, staging, timeout, buf, progress); err != nil {
			return err
		}
		fan.FileCompletedSuccessfully(f.Path)
	}
	fan.DoneDownloads()
	return nil
}

func (e *Engine) downloadFile(ctx context.Context, uri string, f FileEntry, staging string, timeout time.Duration, buf []byte, progress *batchProgress) error {
	e.logger.Debug("Downloading file", "path", f.Path, "uri", uri, "size", f.Size)

	body, err := e.fetcher.FetchReader(ctx, uri, timeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, f.Path, err)
	}
	defer body.Close()

	dest := filepath.Join(staging, filepath.FromSlash(f.Path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, f.Path, err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, f.Path, err)
	}
	defer out.Close()

	// One byte past the declared size is enough to detect an oversized body.
	src := io.LimitReader(body, f.Size+1)
	var transferred int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, f.Path, err)
			}
			transferred += int64(n)
			e.metrics.Downloaded(n)
			progress.file(f, transferred)
			progress.add(int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, f.Path, rerr)
		}
	}

	if transferred != f.Size {
		return fmt.Errorf("%w: %s: expected %d bytes, got %d", ErrSizeMismatch, f.Path, f.Size, transferred)
	}
	if f.Size == 0 {
		progress.file(f, 0)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, f.Path, err)
	}
	return nil
}

type batchProgress struct {
	total       int64
	transferred int64
	fan         *Listeners
}

func (p *batchProgress) file(f FileEntry, transferred int64) {
	p.fan.FileUpdated(f.Path, percent(transferred, f.Size))
}

func (p *batchProgress) add(n int64) {
	p.transferred += n
	p.fan.DownloadUpdated(percent(p.transferred, p.total))
}

func percent(done, total int64) int {
	if total <= 0 {
		return 100
	}
	pct := done * 100 / total
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}
