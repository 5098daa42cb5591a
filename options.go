package launcher

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/GoCodeAlone/launcher/console"
	"github.com/GoCodeAlone/launcher/metrics"
	"github.com/GoCodeAlone/launcher/splash"
	"github.com/GoCodeAlone/launcher/updater"
)

// Option configures an Application during Prepare. Options may be given in
// any order.
type Option func(*Application) error

// WithConfiguration sets the command line arguments, without the program
// name, and the default properties to resolve the configuration from.
func WithConfiguration(args []string, defaults map[string]string) Option {
	return func(app *Application) error {
		app.cfg.source.args = args
		app.cfg.source.defaults = defaults
		return nil
	}
}

// WithConfigurationBehavior sets the hook called when the configuration file
// does not exist.
func WithConfigurationBehavior(fn NotFoundBehavior) Option {
	return func(app *Application) error {
		if fn == nil {
			return fmt.Errorf("%w: configuration behavior cannot be nil", ErrInvalidOption)
		}
		app.cfg.source.notFound = fn
		return nil
	}
}

// WithEnvPrefix reads PREFIX_* environment variables into the configuration.
func WithEnvPrefix(prefix string) Option {
	return func(app *Application) error {
		app.cfg.source.envPrefix = prefix
		return nil
	}
}

// WithBanner replaces the default banner.
func WithBanner(banner *console.Banner) Option {
	return func(app *Application) error {
		if banner == nil {
			return fmt.Errorf("%w: banner cannot be nil", ErrInvalidOption)
		}
		app.cfg.banner = banner
		return nil
	}
}

// WithBannerLine adds a line below the banner header.
func WithBannerLine(line console.Line) Option {
	return func(app *Application) error {
		if line == nil {
			return fmt.Errorf("%w: banner line cannot be nil", ErrInvalidOption)
		}
		app.cfg.bannerLines = append(app.cfg.bannerLines, line)
		return nil
	}
}

// WithSplashScreen sets the factory building the splash screen.
func WithSplashScreen(factory splash.Factory) Option {
	return func(app *Application) error {
		if factory == nil {
			return fmt.Errorf("%w: splash screen factory cannot be nil", ErrInvalidOption)
		}
		app.cfg.splash = factory
		return nil
	}
}

// WithUpdate checks the manifest at manifestURL during startup. A zero
// timeout uses DefaultUpdateTimeout.
func WithUpdate(manifestURL string, timeout time.Duration) Option {
	return func(app *Application) error {
		u, err := url.Parse(strings.TrimSpace(manifestURL))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUpdateURL, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidUpdateURL, manifestURL)
		}
		if timeout < 0 {
			return fmt.Errorf("%w: negative update timeout", ErrInvalidOption)
		}
		if timeout == 0 {
			timeout = DefaultUpdateTimeout
		}
		app.cfg.updateURL = u.String()
		app.cfg.updateTimeout = timeout
		return nil
	}
}

// WithUpdateInterval sets the minimum time between two checks of the same
// manifest by one engine.
func WithUpdateInterval(d time.Duration) Option {
	return func(app *Application) error {
		if d < 0 {
			return fmt.Errorf("%w: negative update interval", ErrInvalidOption)
		}
		app.cfg.updateInterval = d
		return nil
	}
}

// WithUpdateSchedule keeps checking for updates on a cron schedule once the
// application has started.
func WithUpdateSchedule(spec string) Option {
	return func(app *Application) error {
		if err := updater.ValidateSchedule(spec); err != nil {
			return err
		}
		app.cfg.updateSchedule = spec
		return nil
	}
}

// WithUpdateArchive sets where downloaded files are packed before install.
func WithUpdateArchive(path string) Option {
	return func(app *Application) error {
		if path == "" {
			return fmt.Errorf("%w: update archive path cannot be empty", ErrInvalidOption)
		}
		app.cfg.archivePath = path
		return nil
	}
}

// WithInstallDir sets the directory updates are installed into.
func WithInstallDir(dir string) Option {
	return func(app *Application) error {
		if dir == "" {
			return fmt.Errorf("%w: install directory cannot be empty", ErrInvalidOption)
		}
		app.cfg.installDir = dir
		return nil
	}
}

// WithUpdateEngine shares an engine, and its rate limit state, between
// applications.
func WithUpdateEngine(engine *updater.Engine) Option {
	return func(app *Application) error {
		if engine == nil {
			return fmt.Errorf("%w: update engine cannot be nil", ErrInvalidOption)
		}
		app.cfg.engine = engine
		return nil
	}
}

// WithDownloadListeners adds listeners to every update attempt.
func WithDownloadListeners(listeners ...updater.DownloadListener) Option {
	return func(app *Application) error {
		for _, l := range listeners {
			if l == nil {
				return fmt.Errorf("%w: download listener cannot be nil", ErrInvalidOption)
			}
		}
		app.cfg.listeners = append(app.cfg.listeners, listeners...)
		return nil
	}
}

// WithObserver registers an observer for the given event types, or for
// every event when none are given.
func WithObserver(observer Observer, eventTypes ...string) Option {
	return func(app *Application) error {
		return app.RegisterObserver(observer, eventTypes...)
	}
}

// WithVersion sets the running version compared against manifest versions.
func WithVersion(v string) Option {
	return func(app *Application) error {
		if _, err := version.NewVersion(v); err != nil {
			return fmt.Errorf("%w: version %q: %w", ErrInvalidOption, v, err)
		}
		app.cfg.version = v
		return nil
	}
}

// WithOutput sets where the banner and CONSOLE logs are written.
func WithOutput(w io.Writer) Option {
	return func(app *Application) error {
		if w == nil {
			return fmt.Errorf("%w: output cannot be nil", ErrInvalidOption)
		}
		app.cfg.output = w
		return nil
	}
}

// WithExitFunc replaces os.Exit, called when the starter fails. When exit
// returns, the failure is final: StartWith keeps returning the starter error
// and never runs the sequence again.
func WithExitFunc(exit func(code int)) Option {
	return func(app *Application) error {
		if exit == nil {
			return fmt.Errorf("%w: exit function cannot be nil", ErrInvalidOption)
		}
		app.cfg.exit = exit
		return nil
	}
}

// WithMetrics records startup and update metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(app *Application) error {
		app.cfg.metrics = c
		return nil
	}
}
