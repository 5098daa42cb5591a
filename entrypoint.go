package launcher

import (
	"context"

	"github.com/GoCodeAlone/launcher/splash"
)

// EntryPoint describes an updatable application to Launch.
type EntryPoint interface {
	// Name is the application name.
	Name() string

	// UpdateURL is the update manifest URL, or "" to skip updates.
	UpdateURL() string

	// Starter runs the business logic.
	Starter() Starter

	// SplashScreen returns the splash screen factory, or nil for none.
	SplashScreen() splash.Factory

	// DefaultConfiguration returns the default properties.
	DefaultConfiguration() map[string]string
}

// Program is an EntryPoint built from fields.
type Program struct {
	AppName  string
	URL      string
	Run      Starter
	Splash   splash.Factory
	Defaults map[string]string
}

func (p Program) Name() string                            { return p.AppName }
func (p Program) UpdateURL() string                       { return p.URL }
func (p Program) Starter() Starter                        { return p.Run }
func (p Program) SplashScreen() splash.Factory            { return p.Splash }
func (p Program) DefaultConfiguration() map[string]string { return p.Defaults }

// Launch prepares the application described by ep with args, checks for an
// update with DefaultUpdateTimeout and starts it. Extra options are applied
// after the entry point's.
func Launch(ctx context.Context, ep EntryPoint, args []string, opts ...Option) (*Application, error) {
	if ep == nil {
		return nil, ErrNilEntryPoint
	}

	all := []Option{WithConfiguration(args, ep.DefaultConfiguration())}
	if u := ep.UpdateURL(); u != "" {
		all = append(all, WithUpdate(u, DefaultUpdateTimeout))
	}
	if factory := ep.SplashScreen(); factory != nil {
		all = append(all, WithSplashScreen(factory))
	}
	all = append(all, opts...)

	app, err := Prepare(ep.Name(), all...)
	if err != nil {
		return nil, err
	}
	if err := app.StartWith(ctx, ep.Starter()); err != nil {
		return app, err
	}
	return app, nil
}
