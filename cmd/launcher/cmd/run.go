package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/launcher"
	"github.com/GoCodeAlone/launcher/console"
	"github.com/GoCodeAlone/launcher/health"
	"github.com/GoCodeAlone/launcher/metrics"
	"github.com/GoCodeAlone/launcher/reachability"
	"github.com/GoCodeAlone/launcher/restarter"
	"github.com/GoCodeAlone/launcher/splash"
	"github.com/GoCodeAlone/launcher/updater"
)

const shutdownTimeout = 10 * time.Second

type runOptions struct {
	updateURL    string
	timeout      time.Duration
	interval     time.Duration
	schedule     string
	installDir   string
	archive      string
	version      string
	envPrefix    string
	bannerFile   string
	metricsAddr  string
	splash       bool
	restart      bool
	restartDelay time.Duration
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run NAME [-- application arguments]",
		Short: "Start an application, applying a pending update first",
		Long: `Run prepares and starts the named application. When an update manifest is
given, the update is applied before the application runs. Arguments after --
configure the application, e.g. --configuration app.yaml or --set key=value.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runApplication(ctx, cmd.OutOrStdout(), args[0], args[1:], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.updateURL, "update-url", "", "update manifest URL")
	flags.DurationVar(&opts.timeout, "update-timeout", launcher.DefaultUpdateTimeout, "timeout of each update request")
	flags.DurationVar(&opts.interval, "update-interval", launcher.DefaultUpdateInterval, "minimum time between two update checks")
	flags.StringVar(&opts.schedule, "update-schedule", "", "cron schedule of update checks once started")
	flags.StringVar(&opts.installDir, "install-dir", ".", "directory updates are installed into")
	flags.StringVar(&opts.archive, "update-archive", "", "path of the update archive")
	flags.StringVar(&opts.version, "app-version", "", "running version of the application")
	flags.StringVar(&opts.envPrefix, "env-prefix", "", "read PREFIX_* environment variables into the configuration")
	flags.StringVar(&opts.bannerFile, "banner-file", "", "file with banner lines")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	flags.BoolVar(&opts.splash, "splash", true, "show startup progress on the console")
	flags.BoolVar(&opts.restart, "restart-on-update", false, "restart the process once an update is installed")
	flags.DurationVar(&opts.restartDelay, "restart-delay", 0, "delay before restarting")

	return cmd
}

// runStarter reports the startup time and waits for the context to end.
type runStarter struct {
	launcher.BaseStarter
	perf *console.PerformanceChecker
}

func (s *runStarter) Start(context.Context) error {
	elapsed := s.perf.DisplayTimeElapsed("startup")
	s.Application().Logger().Info("Application running", "startup", elapsed)
	return nil
}

// restartOnUpdate restarts the process once an update has been installed.
type restartOnUpdate struct {
	updater.NopListener
	restarter restarter.Restarter
	delay     time.Duration
}

func (r *restartOnUpdate) Completed() {
	if err := r.restarter.RestartAfter(r.delay); err != nil {
		slog.Error("Restart after update failed", "error", err)
	}
}

func runApplication(ctx context.Context, out io.Writer, name string, args []string, opts *runOptions) error {
	perf := console.NewPerformanceChecker(out)

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return err
	}

	appOpts := []launcher.Option{
		launcher.WithConfiguration(args, nil),
		launcher.WithEnvPrefix(opts.envPrefix),
		launcher.WithOutput(out),
		launcher.WithMetrics(collector),
	}
	if opts.splash {
		appOpts = append(appOpts, launcher.WithSplashScreen(splash.ConsoleFactory(out)))
	}
	if opts.bannerFile != "" {
		banner := console.NewBanner(name)
		// FromFile leaves an error banner in place, so startup continues.
		_ = banner.FromFile(opts.bannerFile)
		appOpts = append(appOpts, launcher.WithBanner(banner))
	}
	if opts.updateURL != "" {
		appOpts = append(appOpts,
			launcher.WithUpdate(opts.updateURL, opts.timeout),
			launcher.WithUpdateInterval(opts.interval),
			launcher.WithInstallDir(opts.installDir),
		)
		if opts.archive != "" {
			appOpts = append(appOpts, launcher.WithUpdateArchive(opts.archive))
		}
		if opts.version != "" {
			appOpts = append(appOpts, launcher.WithVersion(opts.version))
		}
		if opts.schedule != "" {
			appOpts = append(appOpts, launcher.WithUpdateSchedule(opts.schedule))
		}
		if opts.restart {
			r, err := restarter.NewApplicationRestarter("", os.Args[1:])
			if err != nil {
				return err
			}
			appOpts = append(appOpts, launcher.WithDownloadListeners(&restartOnUpdate{restarter: r, delay: opts.restartDelay}))
		}
	}

	app, err := launcher.Prepare(name, appOpts...)
	if err != nil {
		return err
	}

	var server *http.Server
	if opts.metricsAddr != "" {
		server, err = serveMetrics(opts.metricsAddr, reg, opts.updateURL, collector)
		if err != nil {
			return err
		}
	}

	if err := app.StartWith(ctx, &runStarter{perf: perf}); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	return app.Stop(shutdownCtx)
}

// serveMetrics exposes the Prometheus registry and, when an update server is
// configured, its reachability as a health report.
func serveMetrics(addr string, reg *prometheus.Registry, updateURL string, collector *metrics.Collector) (*http.Server, error) {
	checks := health.NewAggregator(reachability.DefaultTimeout + time.Second)
	if updateURL != "" {
		checker, err := reachability.NewChecker(updateURL, reachability.WithMetrics(collector))
		if err != nil {
			return nil, err
		}
		if err := checks.RegisterCheck(checker); err != nil {
			return nil, err
		}
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := checks.CheckAll(req.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.OverallStatus == health.StatusCritical {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	server := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "error", err)
		}
	}()
	return server, nil
}
