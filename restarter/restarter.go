// Package restarter replaces the running process with a fresh one, typically
// after an update has been installed.
package restarter

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/GoCodeAlone/launcher/logging"
)

// ErrRestartFailed is returned when the new process could not be spawned.
var ErrRestartFailed = errors.New("the application could not restart")

// Restarter starts a new instance of the application and exits this one.
type Restarter interface {
	Restart() error
	RestartAfter(delay time.Duration) error
}

// Option configures a restarter.
type Option func(*base)

// WithExitFunc replaces os.Exit.
func WithExitFunc(exit func(int)) Option {
	return func(b *base) {
		if exit != nil {
			b.exit = exit
		}
	}
}

// WithLogger sets the restarter logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSleep replaces time.Sleep for the pre-restart delay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(b *base) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// withCommand replaces exec.Command.
func withCommand(command func(name string, args ...string) *exec.Cmd) Option {
	return func(b *base) {
		b.command = command
	}
}

type base struct {
	exit    func(int)
	sleep   func(time.Duration)
	logger  logging.Logger
	command func(name string, args ...string) *exec.Cmd
}

func newBase(opts []Option) base {
	b := base{
		exit:    os.Exit,
		sleep:   time.Sleep,
		logger:  logging.Discard(),
		command: exec.Command,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// spawn starts binary detached from this process and exits with code 0.
func (b base) spawn(delay time.Duration, binary string, args []string) error {
	b.logger.Info("Restarting the system.", "binary", binary, "delay", delay)
	if delay > 0 {
		b.sleep(delay)
	}

	cmd := b.command(binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrRestartFailed, err)
	}
	if err := cmd.Process.Release(); err != nil {
		b.logger.Warn("Could not release restarted process", "pid", cmd.Process.Pid, "error", err)
	}
	b.exit(0)
	return nil
}

// ApplicationRestarter relaunches a binary with fixed arguments.
type ApplicationRestarter struct {
	base
	binary string
	args   []string
}

// NewApplicationRestarter restarts binary with args. An empty binary means
// the current executable.
func NewApplicationRestarter(binary string, args []string, opts ...Option) (*ApplicationRestarter, error) {
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve current executable: %w", ErrRestartFailed, err)
		}
		binary = exe
	}
	return &ApplicationRestarter{base: newBase(opts), binary: binary, args: args}, nil
}

// Restart restarts immediately.
func (r *ApplicationRestarter) Restart() error {
	return r.RestartAfter(0)
}

// RestartAfter waits delay, spawns the binary and exits.
func (r *ApplicationRestarter) RestartAfter(delay time.Duration) error {
	return r.spawn(delay, r.binary, r.args)
}

// LauncherRestarter hands control back to a launcher executable located in
// the working directory, picking the Windows or the Unix variant.
type LauncherRestarter struct {
	base
	windowsExecutable string
	unixExecutable    string
	goos              string
}

// NewLauncherRestarter creates a restarter for the given launcher names.
func NewLauncherRestarter(windowsExecutable, unixExecutable string, opts ...Option) *LauncherRestarter {
	return &LauncherRestarter{
		base:              newBase(opts),
		windowsExecutable: windowsExecutable,
		unixExecutable:    unixExecutable,
		goos:              runtime.GOOS,
	}
}

// Executable returns the absolute path of the launcher for this platform.
func (r *LauncherRestarter) Executable() (string, error) {
	name := r.unixExecutable
	if r.goos == "windows" {
		name = r.windowsExecutable
	}
	if name == "" {
		return "", fmt.Errorf("%w: no launcher executable for %s", ErrRestartFailed, r.goos)
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRestartFailed, err)
	}
	return abs, nil
}

// Restart restarts immediately.
func (r *LauncherRestarter) Restart() error {
	return r.RestartAfter(0)
}

// RestartAfter waits delay, spawns the launcher and exits.
func (r *LauncherRestarter) RestartAfter(delay time.Duration) error {
	exe, err := r.Executable()
	if err != nil {
		return err
	}
	return r.spawn(delay, exe, nil)
}

var (
	_ Restarter = (*ApplicationRestarter)(nil)
	_ Restarter = (*LauncherRestarter)(nil)
)
