package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cucumber/godog"
	"github.com/go-chi/chi/v5"

	"github.com/GoCodeAlone/launcher/logging"
	"github.com/GoCodeAlone/launcher/splash"
)

// Static errors for BDD assertions
var (
	errStarterRuns       = errors.New("unexpected number of starter runs")
	errNotStarted        = errors.New("application is not started")
	errStillStarted      = errors.New("application should not be started")
	errSplashOpen        = errors.New("splash screen was not closed")
	errBannerCount       = errors.New("unexpected number of banners")
	errEventMissing      = errors.New("event was not observed")
	errInstalledFile     = errors.New("installed file is wrong")
	errExitCodes         = errors.New("unexpected exit codes")
	errStarterBeforeFile = errors.New("starter did not see the installed file")
	errStarterFailure    = errors.New("starter failure")
)

// startupBDDContext holds the state of one scenario
type startupBDDContext struct {
	name       string
	opts       []Option
	app        *Application
	server     *httptest.Server
	installDir string
	out        bytes.Buffer
	exit       exitRecorder
	trace      trace
	starterRun int
	sawFile    bool
	startErr   error
}

func (c *startupBDDContext) reset() {
	if c.app != nil {
		_ = c.app.Stop(context.Background())
	}
	if c.server != nil {
		c.server.Close()
	}
	*c = startupBDDContext{}
}

func (c *startupBDDContext) anApplicationNamed(name string) error {
	c.name = name
	return nil
}

func (c *startupBDDContext) serve(r chi.Router) error {
	dir, err := os.MkdirTemp("", "launcher-bdd-*")
	if err != nil {
		return err
	}
	c.installDir = dir
	c.server = httptest.NewServer(r)
	c.opts = append(c.opts,
		WithUpdate(c.server.URL+"/manifest.json", time.Second),
		WithInstallDir(dir),
		WithUpdateArchive(filepath.Join(os.TempDir(), filepath.Base(dir)+".zip")),
	)
	return nil
}

func (c *startupBDDContext) anUpdateServerPublishing(version string, size int, path string) error {
	r := chi.NewRouter()
	r.Get("/manifest.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"version":%q,"files":[{"path":%q,"size":%d}]}`, version, path, size)
	})
	r.Get("/"+path, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{'o'}, size))
	})
	return c.serve(r)
}

func (c *startupBDDContext) anUpdateServerWithoutAManifest() error {
	return c.serve(chi.NewRouter())
}

func (c *startupBDDContext) theApplicationRunsVersion(version string) error {
	c.opts = append(c.opts, WithVersion(version))
	return nil
}

func (c *startupBDDContext) prepare() error {
	if c.app != nil {
		return nil
	}
	opts := []Option{
		WithConfiguration(nil, map[string]string{logging.OutputKey: "CONSOLE"}),
		WithOutput(&c.out),
		WithExitFunc(c.exit.exit),
		WithSplashScreen(func() splash.Screen { return traceScreen{trace: &c.trace} }),
		WithObserver(NewFunctionalObserver("bdd", func(_ context.Context, e cloudevents.Event) error {
			c.trace.add("event %s", e.Type())
			return nil
		})),
	}
	app, err := Prepare(c.name, append(opts, c.opts...)...)
	if err != nil {
		return err
	}
	c.app = app
	return nil
}

func (c *startupBDDContext) theApplicationStartsWithAStarter() error {
	if err := c.prepare(); err != nil {
		return err
	}
	c.startErr = c.app.StartWith(context.Background(), StarterFunc(func(context.Context) error {
		c.starterRun++
		if c.installDir != "" {
			_, err := os.Stat(filepath.Join(c.installDir, "bin", c.name))
			c.sawFile = err == nil
		}
		return nil
	}))
	return c.startErr
}

func (c *startupBDDContext) theApplicationStartsWithAFailingStarter() error {
	if err := c.prepare(); err != nil {
		return err
	}
	c.startErr = c.app.StartWith(context.Background(), StarterFunc(func(context.Context) error {
		return errStarterFailure
	}))
	return nil
}

func (c *startupBDDContext) theStarterShouldHaveRunOnce() error {
	if c.starterRun != 1 {
		return fmt.Errorf("%w: %d", errStarterRuns, c.starterRun)
	}
	return nil
}

func (c *startupBDDContext) theApplicationShouldBeStarted() error {
	if c.app.State() != StateStarted {
		return errNotStarted
	}
	return nil
}

func (c *startupBDDContext) theApplicationShouldNotBeStarted() error {
	if c.app.State() == StateStarted {
		return errStillStarted
	}
	return nil
}

func (c *startupBDDContext) theSplashScreenShouldBeClosed() error {
	if !c.trace.has("splash.close") {
		return errSplashOpen
	}
	return nil
}

func (c *startupBDDContext) theBannerShouldHaveBeenDisplayedOnce() error {
	if n := strings.Count(c.out.String(), "Powered by"); n != 1 {
		return fmt.Errorf("%w: %d", errBannerCount, n)
	}
	return nil
}

func (c *startupBDDContext) theFileShouldBeInstalledWithBytes(path string, size int) error {
	info, err := os.Stat(filepath.Join(c.installDir, filepath.FromSlash(path)))
	if err != nil {
		return fmt.Errorf("%w: %w", errInstalledFile, err)
	}
	if info.Size() != int64(size) {
		return fmt.Errorf("%w: %d bytes", errInstalledFile, info.Size())
	}
	return nil
}

func (c *startupBDDContext) theObserversShouldHaveReceived(eventType string) error {
	if !c.trace.has("event " + eventType) {
		return fmt.Errorf("%w: %s", errEventMissing, eventType)
	}
	return nil
}

func (c *startupBDDContext) theStarterShouldHaveSeenTheInstalledFile() error {
	if !c.sawFile {
		return errStarterBeforeFile
	}
	return nil
}

func (c *startupBDDContext) theProcessShouldHaveExitedWithStatus(code int) error {
	codes := c.exit.Codes()
	if len(codes) != 1 || codes[0] != code {
		return fmt.Errorf("%w: %v", errExitCodes, codes)
	}
	if !errors.Is(c.startErr, ErrStarterFailed) {
		return fmt.Errorf("%w: %v", errExitCodes, c.startErr)
	}
	return nil
}

// InitializeStartupScenario wires the startup steps
func InitializeStartupScenario(ctx *godog.ScenarioContext) {
	c := &startupBDDContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		dir := c.installDir
		c.reset()
		if dir != "" {
			_ = os.RemoveAll(dir)
			_ = os.Remove(filepath.Join(os.TempDir(), filepath.Base(dir)+".zip"))
		}
		return ctx, nil
	})

	ctx.Step(`^an application named "([^"]*)"$`, c.anApplicationNamed)
	ctx.Step(`^an update server publishing version "([^"]*)" with a (\d+) byte file "([^"]*)"$`, c.anUpdateServerPublishing)
	ctx.Step(`^an update server without a manifest$`, c.anUpdateServerWithoutAManifest)
	ctx.Step(`^the application runs version "([^"]*)"$`, c.theApplicationRunsVersion)

	ctx.Step(`^the application starts with a starter$`, c.theApplicationStartsWithAStarter)
	ctx.Step(`^the application starts with a failing starter$`, c.theApplicationStartsWithAFailingStarter)

	ctx.Step(`^the starter should have run once$`, c.theStarterShouldHaveRunOnce)
	ctx.Step(`^the application should be started$`, c.theApplicationShouldBeStarted)
	ctx.Step(`^the application should not be started$`, c.theApplicationShouldNotBeStarted)
	ctx.Step(`^the splash screen should be closed$`, c.theSplashScreenShouldBeClosed)
	ctx.Step(`^the banner should have been displayed once$`, c.theBannerShouldHaveBeenDisplayedOnce)
	ctx.Step(`^the file "([^"]*)" should be installed with (\d+) bytes$`, c.theFileShouldBeInstalledWithBytes)
	ctx.Step(`^the observers should have received "([^"]*)"$`, c.theObserversShouldHaveReceived)
	ctx.Step(`^the starter should have seen the installed file$`, c.theStarterShouldHaveSeenTheInstalledFile)
	ctx.Step(`^the process should have exited with status (\d+)$`, c.theProcessShouldHaveExitedWithStatus)
}

// TestApplicationStartup runs the BDD tests for the startup sequence
func TestApplicationStartup(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeStartupScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/application_startup.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
