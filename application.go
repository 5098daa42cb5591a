package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/GoCodeAlone/launcher/console"
	"github.com/GoCodeAlone/launcher/logging"
	"github.com/GoCodeAlone/launcher/metrics"
	"github.com/GoCodeAlone/launcher/splash"
	"github.com/GoCodeAlone/launcher/updater"
)

const (
	// DefaultUpdateTimeout bounds each update request.
	DefaultUpdateTimeout = 5 * time.Second

	// DefaultUpdateInterval is the minimum time between two checks of the
	// same manifest by one engine.
	DefaultUpdateInterval = time.Hour
)

// LifecycleState is the state of an Application.
type LifecycleState int32

const (
	StateUnstarted LifecycleState = iota
	StateStarted
)

func (s LifecycleState) String() string {
	switch s {
	case StateUnstarted:
		return "UNSTARTED"
	case StateStarted:
		return "STARTED"
	default:
		return fmt.Sprintf("LifecycleState(%d)", int32(s))
	}
}

// appConfig is fixed once Prepare returns.
type appConfig struct {
	source         configSource
	updateURL      string
	updateTimeout  time.Duration
	updateInterval time.Duration
	updateSchedule string
	archivePath    string
	installDir     string
	version        string
	banner         *console.Banner
	bannerLines    []console.Line
	splash         splash.Factory
	engine         *updater.Engine
	listeners      []updater.DownloadListener
	output         io.Writer
	exit           func(int)
	metrics        *metrics.Collector
	now            func() time.Time
}

// Application runs the startup sequence of one process.
type Application struct {
	name              string
	cfg               appConfig
	configuration     Configuration
	configurationFile string

	mu        sync.Mutex // guards the fields below, never held while the starter runs
	starting  bool
	stopped   bool
	failure   error
	sink      *logging.Sink
	scheduler *updater.Scheduler

	state atomic.Int32

	logMu  sync.RWMutex
	logger Logger

	screenMu sync.Mutex
	screen   splash.Screen

	observers observers
}

// Prepare validates name and the options and resolves the configuration.
// Nothing is logged or displayed until Start.
func Prepare(name string, opts ...Option) (*Application, error) {
	if name == "" {
		return nil, ErrEmptyApplicationName
	}

	app := &Application{
		name:   name,
		logger: logging.Discard(),
		cfg: appConfig{
			updateTimeout:  DefaultUpdateTimeout,
			updateInterval: DefaultUpdateInterval,
			splash:         splash.EmptyFactory,
			output:         os.Stdout,
			exit:           os.Exit,
			now:            time.Now,
		},
	}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.cfg.banner == nil {
		app.cfg.banner = console.NewBanner(name)
	}
	for _, line := range app.cfg.bannerLines {
		app.cfg.banner.AddLine(line)
	}
	if app.cfg.archivePath == "" {
		app.cfg.archivePath = filepath.Join(os.TempDir(), sanitize(name)+"-update.zip")
	}

	configuration, file, err := resolveConfiguration(name, app.cfg.source)
	if err != nil {
		return nil, err
	}
	app.configuration = configuration
	app.configurationFile = file
	return app, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, name)
}

// Name returns the application name.
func (app *Application) Name() string {
	return app.name
}

// Configuration returns the resolved configuration.
func (app *Application) Configuration() Configuration {
	return app.configuration
}

// State returns the lifecycle state.
func (app *Application) State() LifecycleState {
	return LifecycleState(app.state.Load())
}

// Logger returns the application logger. It discards everything until Start
// has configured logging.
func (app *Application) Logger() Logger {
	return app.log()
}

func (app *Application) log() Logger {
	app.logMu.RLock()
	defer app.logMu.RUnlock()
	return app.logger
}

// Start runs the startup sequence without a starter. Call
// ApplicationStarted once the application is ready to close the splash
// screen.
func (app *Application) Start(ctx context.Context) error {
	return app.StartWith(ctx, nil)
}

// StartWith runs the startup sequence, then starter. It returns at once
// when the sequence is already running or done, including when called again
// from inside the starter.
//
// A failing or panicking starter is logged, the exit function is called with
// status 1 and, should it return, an error wrapping ErrStarterFailed is
// returned by this and every later call. Update failures never stop the
// startup.
func (app *Application) StartWith(ctx context.Context, starter Starter) error {
	if run, err := app.begin(); !run {
		return err
	}
	defer app.end()
	began := app.cfg.now()

	if err := app.configureLogging(); err != nil {
		return err
	}
	app.displayBanner()
	app.logProvenance()
	app.emit(ctx, EventTypeConfigLoaded, map[string]any{
		"file":       app.configurationFile,
		"properties": app.configuration.Len(),
	})
	app.emit(ctx, EventTypeApplicationStarting, nil)

	screen := app.showSplash()

	if app.cfg.updateURL != "" {
		app.update(ctx, screen)
	}

	if starter != nil {
		if err := app.run(ctx, starter); err != nil {
			app.mu.Lock()
			app.failure = err
			app.mu.Unlock()

			app.log().Error("Application failed to start", "application", app.name, "error", err)
			app.emit(ctx, EventTypeApplicationFailed, map[string]any{"error": err.Error()})
			app.cfg.exit(1)
			return err
		}
	}

	app.state.Store(int32(StateStarted))
	if starter != nil {
		app.ApplicationStarted()
	}

	elapsed := app.cfg.now().Sub(began)
	app.cfg.metrics.Startup(elapsed)
	app.log().Info("Application started", "application", app.name, "duration", elapsed)
	app.emit(ctx, EventTypeApplicationStarted, map[string]any{"durationMs": elapsed.Milliseconds()})

	app.startScheduler(ctx)
	return nil
}

// begin claims the startup sequence. It reports false, with the error to
// return, when the sequence is running, has completed or has failed.
func (app *Application) begin() (bool, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	switch {
	case app.failure != nil:
		return false, app.failure
	case app.starting:
		app.log().Debug("Application is starting", "application", app.name)
		return false, nil
	case app.State() == StateStarted:
		app.log().Debug("Application already started", "application", app.name)
		return false, nil
	}
	app.starting = true
	app.stopped = false
	return true, nil
}

// end releases the startup sequence. Outputs are closed again when Stop ran
// while the sequence was still writing to them.
func (app *Application) end() {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.starting = false
	if app.stopped && app.sink != nil {
		_ = app.sink.Close()
		app.sink = nil
	}
}

// ApplicationStarted closes the splash screen.
func (app *Application) ApplicationStarted() {
	app.screenMu.Lock()
	screen := app.screen
	app.screenMu.Unlock()
	if screen != nil {
		screen.Close()
	}
}

// Stop halts scheduled update checks and releases the log outputs. It does
// not wait for a running starter; a sequence still in progress finishes
// without scheduling update checks.
func (app *Application) Stop(ctx context.Context) error {
	app.mu.Lock()
	scheduler := app.scheduler
	app.scheduler = nil
	running := app.starting
	var sink *logging.Sink
	if running {
		// end closes the outputs once the sequence stops writing to them.
		app.stopped = true
	} else {
		sink, app.sink = app.sink, nil
	}
	app.mu.Unlock()

	var result *multierror.Error
	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if app.State() == StateStarted {
		app.emit(ctx, EventTypeApplicationStopped, nil)
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (app *Application) configureLogging() error {
	cfg, err := logging.FromProperties(app.configuration.props)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoggingSetup, err)
	}
	cfg.Console = app.cfg.output

	sink, err := logging.Configure(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoggingSetup, err)
	}
	if err := logging.Install(sink); err != nil {
		_ = sink.Close()
		return fmt.Errorf("%w: %w", ErrLoggingSetup, err)
	}
	app.mu.Lock()
	if app.sink != nil {
		_ = app.sink.Close()
	}
	app.sink = sink
	app.mu.Unlock()

	app.logMu.Lock()
	app.logger = logging.Named(sink.Logger, "launcher")
	app.logMu.Unlock()
	return nil
}

func (app *Application) displayBanner() {
	if err := app.cfg.banner.Display(app.cfg.output); err != nil {
		app.log().Warn("Failed to display banner", "error", err)
	}
}

func (app *Application) logProvenance() {
	p := ReadProvenance()
	app.log().Info(fmt.Sprintf("Starting %s (PID:%d).", app.name, os.Getpid()))
	app.log().Info("Commit: "+p.Commit, "modified", p.Modified)
	app.log().Info("Built at " + p.BuildTime)
	if app.configurationFile != "" {
		app.log().Info("Configuration loaded", "file", app.configurationFile, "properties", app.configuration.Len())
	}
}

func (app *Application) showSplash() splash.Screen {
	screen := app.cfg.splash()
	if screen == nil {
		screen = splash.Empty{}
	}
	screen.SetName(app.name)
	screen.Display()

	app.screenMu.Lock()
	app.screen = screen
	app.screenMu.Unlock()
	return screen
}

// update runs one synchronous update check. Its failures are logged by the
// engine and reported to the listeners.
func (app *Application) update(ctx context.Context, screen splash.Screen) {
	engine, err := app.updateEngine()
	if err != nil {
		app.log().Error("Update engine unavailable", "error", err)
		return
	}

	listeners := []updater.DownloadListener{
		splash.NewUpdateAdapter(screen),
		app.updateEvents(ctx, app.cfg.updateURL),
	}
	listeners = append(listeners, app.cfg.listeners...)

	outcome, err := engine.Update(ctx, app.cfg.updateURL, app.cfg.archivePath, app.cfg.updateInterval, app.cfg.updateTimeout, listeners...)
	if err == nil {
		app.log().Info("Update check finished", "url", app.cfg.updateURL, "outcome", outcome)
	}
}

func (app *Application) updateEngine() (*updater.Engine, error) {
	if app.cfg.engine != nil {
		return app.cfg.engine, nil
	}

	opts := []updater.EngineOption{
		updater.WithEngineLogger(logging.Named(app.log(), "updater")),
		updater.WithEngineMetrics(app.cfg.metrics),
	}
	if app.cfg.installDir != "" {
		opts = append(opts, updater.WithInstallDir(app.cfg.installDir))
	}
	if app.cfg.version != "" {
		opts = append(opts, updater.WithCurrentVersion(app.cfg.version))
	}
	engine, err := updater.NewEngine(opts...)
	if err != nil {
		return nil, err
	}
	app.cfg.engine = engine
	return engine, nil
}

func (app *Application) startScheduler(ctx context.Context) {
	if app.cfg.updateSchedule == "" || app.cfg.updateURL == "" {
		return
	}
	engine, err := app.updateEngine()
	if err != nil {
		app.log().Error("Update engine unavailable", "error", err)
		return
	}

	background := context.WithoutCancel(ctx)
	listeners := append([]updater.DownloadListener{app.updateEvents(background, app.cfg.updateURL)}, app.cfg.listeners...)
	scheduler, err := updater.NewScheduler(engine, app.cfg.updateSchedule, updater.Job{
		URL:         app.cfg.updateURL,
		ArchiveName: app.cfg.archivePath,
		MinInterval: app.cfg.updateInterval,
		Timeout:     app.cfg.updateTimeout,
		Listeners:   listeners,
	})
	if err != nil {
		app.log().Error("Update scheduler unavailable", "error", err)
		return
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.stopped {
		return
	}
	scheduler.Start(background)
	app.scheduler = scheduler
}
