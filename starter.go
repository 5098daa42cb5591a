package launcher

import (
	"context"
	"fmt"
)

// Starter runs the business logic once the startup sequence is done.
type Starter interface {
	Start(ctx context.Context) error
}

// StarterFunc adapts a function to Starter.
type StarterFunc func(ctx context.Context) error

func (f StarterFunc) Start(ctx context.Context) error { return f(ctx) }

// ConfigurationAware starters receive the resolved configuration before
// Start is called.
type ConfigurationAware interface {
	SetConfiguration(Configuration)
}

// ApplicationAware starters receive the running Application before Start is
// called, e.g. to call ApplicationStarted themselves.
type ApplicationAware interface {
	SetApplication(*Application)
}

// BaseStarter can be embedded to receive the configuration and application.
type BaseStarter struct {
	configuration Configuration
	application   *Application
}

func (b *BaseStarter) SetConfiguration(c Configuration) { b.configuration = c }
func (b *BaseStarter) SetApplication(a *Application)    { b.application = a }

// Configuration returns the configuration bound before Start.
func (b *BaseStarter) Configuration() Configuration { return b.configuration }

// Application returns the application bound before Start.
func (b *BaseStarter) Application() *Application { return b.application }

// run binds starter to the application and runs it, turning a panic into an
// error.
func (app *Application) run(ctx context.Context, starter Starter) (err error) {
	if aware, ok := starter.(ConfigurationAware); ok {
		aware.SetConfiguration(app.configuration)
	}
	if aware, ok := starter.(ApplicationAware); ok {
		aware.SetApplication(app)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrStarterFailed, r)
		}
	}()
	if err := starter.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStarterFailed, err)
	}
	return nil
}
