package feeders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileFeeder_Formats(t *testing.T) {
	want := map[string]string{
		"logger.level":    "DEBUG",
		"logger.tcp.port": "6000",
		"logger.output":   "CONSOLE,FILE",
		"app.name":        "demo",
	}

	tests := []struct {
		file    string
		content string
	}{
		{
			file: "app.properties",
			content: "# comment\n! other comment\nlogger.level=DEBUG\nlogger.tcp.port: 6000\n" +
				"logger.output = CONSOLE,\\\n    FILE\napp.name=demo\n",
		},
		{
			file:    "app.yaml",
			content: "logger:\n  level: DEBUG\n  tcp:\n    port: 6000\n  output: [CONSOLE, FILE]\napp:\n  name: demo\n",
		},
		{
			file:    "app.toml",
			content: "[logger]\nlevel = \"DEBUG\"\noutput = [\"CONSOLE\", \"FILE\"]\n[logger.tcp]\nport = 6000\n[app]\nname = \"demo\"\n",
		},
		{
			file:    "app.json",
			content: `{"logger":{"level":"DEBUG","tcp":{"port":6000},"output":["CONSOLE","FILE"]},"app":{"name":"demo"}}`,
		},
		{
			file:    "app.env",
			content: "# env\nlogger.level=DEBUG\nexport logger.tcp.port=6000\nlogger.output=\"CONSOLE,FILE\"\napp.name='demo'\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			props := map[string]string{}
			require.NoError(t, NewFileFeeder(writeFile(t, tt.file, tt.content)).Feed(props))
			assert.Equal(t, want, props)
		})
	}
}

func TestFileFeeder_Errors(t *testing.T) {
	props := map[string]string{}

	err := NewFileFeeder(filepath.Join(t.TempDir(), "missing.yaml")).Feed(props)
	assert.ErrorIs(t, err, ErrFileNotFound)

	err = NewFileFeeder(writeFile(t, "app.ini", "a=b")).Feed(props)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	err = NewFileFeeder(writeFile(t, "bad.properties", "novalue\n")).Feed(props)
	assert.ErrorIs(t, err, ErrInvalidLineFormat)

	err = NewFileFeeder(writeFile(t, "nested.yaml", "list:\n  - a: 1\n")).Feed(props)
	assert.ErrorIs(t, err, ErrNestedList)

	err = NewFileFeeder(writeFile(t, "bad.json", "{")).Feed(props)
	assert.Error(t, err)
	assert.Empty(t, props)
}

type debugRecorder struct{ messages []string }

func (d *debugRecorder) Debug(msg string, _ ...any) { d.messages = append(d.messages, msg) }

func TestFileFeeder_VerboseDebug(t *testing.T) {
	rec := &debugRecorder{}
	f := NewFileFeeder(writeFile(t, "a.properties", "a=1\n"))
	f.SetVerboseDebug(true, rec)
	require.NoError(t, f.Feed(map[string]string{}))
	assert.Equal(t, []string{"Verbose file feeder debugging enabled", "FileFeeder: property loaded"}, rec.messages)
}

func TestEnvFeeder(t *testing.T) {
	f := NewEnvFeeder("myapp")
	f.environ = func() []string {
		return []string{
			"MYAPP_LOGGER_LEVEL=WARN",
			"MYAPP_LOGGER_FILE_OUTPUT=/var/log/app.log",
			"MYAPP_=ignored",
			"OTHER_LOGGER_LEVEL=DEBUG",
			"PATH=/usr/bin",
		}
	}
	props := map[string]string{"logger.level": "INFO"}
	require.NoError(t, f.Feed(props))
	assert.Equal(t, map[string]string{
		"logger.level":       "WARN",
		"logger.file.output": "/var/log/app.log",
	}, props)

	empty := map[string]string{}
	require.NoError(t, NewEnvFeeder("").Feed(empty))
	assert.Empty(t, empty)
}

func TestArgsFeeder(t *testing.T) {
	a := NewArgsFeeder([]string{
		"logger.level=DEBUG",
		"--configuration", "app.yaml",
		"--set", "logger.level=TRACE",
		"--set=app.mode=fast",
		"--verbose",
		"positional",
	})

	file, err := a.ConfigurationFile()
	require.NoError(t, err)
	assert.Equal(t, "app.yaml", file)

	props := map[string]string{}
	require.NoError(t, a.Feed(props))
	assert.Equal(t, map[string]string{
		"logger.level": "TRACE",
		"app.mode":     "fast",
	}, props)
}

func TestArgsFeeder_InvalidSet(t *testing.T) {
	err := NewArgsFeeder([]string{"--set", "noequals"}).Feed(map[string]string{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFeedAll(t *testing.T) {
	props := map[string]string{}
	err := FeedAll(props,
		Properties{"a": "1", "b": "1"},
		nil,
		FeederFunc(func(p map[string]string) error {
			p["b"] = "2"
			return nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, props)
	assert.Equal(t, []string{"a", "b"}, Keys(props))
}
