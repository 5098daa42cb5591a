package feeders

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// ArgsFeeder reads properties from command line arguments:
//
//	--configuration app.yaml   configuration file to load
//	--set logger.level=DEBUG   property, repeatable
//	logger.level=DEBUG         positional property
//
// Flags it does not know are ignored so applications can define their own.
type ArgsFeeder struct {
	args       []string
	parsed     bool
	configFile string
	values     map[string]string
	order      []string
}

// NewArgsFeeder creates a feeder over args, without the program name.
func NewArgsFeeder(args []string) *ArgsFeeder {
	return &ArgsFeeder{args: args}
}

// Parse reads the arguments once.
func (a *ArgsFeeder) Parse() error {
	if a.parsed {
		return nil
	}

	fs := pflag.NewFlagSet("launcher", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	configFile := fs.StringP("configuration", "c", "", "configuration file")
	sets := fs.StringArray("set", nil, "property as key=value")

	if err := fs.Parse(a.args); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	a.values = make(map[string]string)
	add := func(kv string, strict bool) error {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			if strict {
				return fmt.Errorf("%w: expected key=value, got %q", ErrInvalidArgument, kv)
			}
			return nil
		}
		if _, seen := a.values[key]; !seen {
			a.order = append(a.order, key)
		}
		a.values[key] = value
		return nil
	}
	for _, arg := range fs.Args() {
		if err := add(arg, false); err != nil {
			return err
		}
	}
	for _, kv := range *sets {
		if err := add(kv, true); err != nil {
			return err
		}
	}

	a.configFile = *configFile
	a.parsed = true
	return nil
}

// ConfigurationFile returns the --configuration value, or "".
func (a *ArgsFeeder) ConfigurationFile() (string, error) {
	if err := a.Parse(); err != nil {
		return "", err
	}
	return a.configFile, nil
}

// Feed implements Feeder. --set values override positional ones.
func (a *ArgsFeeder) Feed(props map[string]string) error {
	if err := a.Parse(); err != nil {
		return err
	}
	for _, k := range a.order {
		props[k] = a.values[k]
	}
	return nil
}
