package feeders

import (
	"os"
	"strings"
)

// EnvFeeder reads environment variables starting with Prefix followed by an
// underscore. PREFIX_LOGGER_FILE_OUTPUT becomes logger.file.output.
type EnvFeeder struct {
	Prefix  string
	environ func() []string
}

// NewEnvFeeder creates a feeder for variables named PREFIX_*.
func NewEnvFeeder(prefix string) *EnvFeeder {
	return &EnvFeeder{Prefix: prefix, environ: os.Environ}
}

// Feed implements Feeder. An empty prefix feeds nothing.
func (e *EnvFeeder) Feed(props map[string]string) error {
	if e.Prefix == "" {
		return nil
	}
	prefix := strings.ToUpper(e.Prefix) + "_"
	for _, kv := range e.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(strings.ToUpper(name), prefix) || len(name) == len(prefix) {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(name[len(prefix):], "_", "."))
		props[key] = value
	}
	return nil
}
