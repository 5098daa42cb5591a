package launcher

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"

	"github.com/GoCodeAlone/launcher/feeders"
	"github.com/GoCodeAlone/launcher/logging"
)

// ConfigurationFileKey names the configuration file to load when no
// --configuration argument is given.
const ConfigurationFileKey = "configuration.file"

// Configuration is the resolved, read-only set of application properties.
type Configuration struct {
	props map[string]string
}

// NewConfiguration copies props into a Configuration.
func NewConfiguration(props map[string]string) Configuration {
	return Configuration{props: maps.Clone(props)}
}

// Lookup returns the value of key and whether it is set.
func (c Configuration) Lookup(key string) (string, bool) {
	v, ok := c.props[key]
	return v, ok
}

// Get returns the value of key, or "".
func (c Configuration) Get(key string) string {
	return c.props[key]
}

// GetOrDefault returns the value of key, or def when key is unset.
func (c Configuration) GetOrDefault(key, def string) string {
	if v, ok := c.props[key]; ok {
		return v
	}
	return def
}

// GetInt converts the value of key to an int.
func (c Configuration) GetInt(key string) (int, error) {
	v, err := c.convert(key, reflect.TypeOf(0))
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// GetBool converts the value of key to a bool.
func (c Configuration) GetBool(key string) (bool, error) {
	v, err := c.convert(key, reflect.TypeOf(false))
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// GetFloat converts the value of key to a float64.
func (c Configuration) GetFloat(key string) (float64, error) {
	v, err := c.convert(key, reflect.TypeOf(float64(0)))
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// GetDuration parses the value of key as a Go duration such as "1m30s".
func (c Configuration) GetDuration(key string) (time.Duration, error) {
	raw, ok := c.props[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPropertyNotFound, key)
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrPropertyInvalid, key, err)
	}
	return d, nil
}

func (c Configuration) convert(key string, t reflect.Type) (any, error) {
	raw, ok := c.props[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, key)
	}
	v, err := cast.FromType(strings.TrimSpace(raw), t)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPropertyInvalid, key, err)
	}
	return v, nil
}

// Keys returns the property names in sorted order.
func (c Configuration) Keys() []string {
	return feeders.Keys(c.props)
}

// Map returns a copy of the properties.
func (c Configuration) Map() map[string]string {
	return maps.Clone(c.props)
}

// Len returns the number of properties.
func (c Configuration) Len() int {
	return len(c.props)
}

// NotFoundBehavior is called with the path of a configuration file that
// does not exist. Startup continues with the remaining sources.
type NotFoundBehavior func(path string)

// configSource gathers what WithConfiguration and friends collected.
type configSource struct {
	args      []string
	defaults  map[string]string
	envPrefix string
	notFound  NotFoundBehavior
}

// resolveConfiguration merges, later sources winning: logger defaults,
// caller defaults, the configuration file, the environment and the
// command line arguments.
func resolveConfiguration(name string, src configSource) (Configuration, string, error) {
	props := logging.DefaultProperties(name)
	if err := feeders.Properties(src.defaults).Feed(props); err != nil {
		return Configuration{}, "", fmt.Errorf("%w: %w", ErrConfigurationLoad, err)
	}

	args := feeders.NewArgsFeeder(src.args)
	path, err := args.ConfigurationFile()
	if err != nil {
		return Configuration{}, "", fmt.Errorf("%w: %w", ErrConfigurationLoad, err)
	}
	if path == "" {
		path = props[ConfigurationFileKey]
	}

	if path != "" {
		err := feeders.NewFileFeeder(path).Feed(props)
		switch {
		case errors.Is(err, feeders.ErrFileNotFound):
			if src.notFound != nil {
				src.notFound(path)
			}
			path = ""
		case err != nil:
			return Configuration{}, "", fmt.Errorf("%w: %w", ErrConfigurationLoad, err)
		}
	}

	if err := feeders.FeedAll(props, feeders.NewEnvFeeder(src.envPrefix), args); err != nil {
		return Configuration{}, "", fmt.Errorf("%w: %w", ErrConfigurationLoad, err)
	}
	return Configuration{props: props}, path, nil
}
