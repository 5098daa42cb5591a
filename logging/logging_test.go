package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProperties(t *testing.T) {
	props := DefaultProperties("test")

	assert.Len(t, props, 8)
	assert.Equal(t, "INFO", props[LevelKey])
	assert.Equal(t, "CONSOLE,FILE", props[OutputKey])
	assert.Equal(t, "logs/test.log", props[FileOutputKey])
	assert.Equal(t, "localhost", props[TCPHostKey])
	assert.Equal(t, "60000", props[TCPPortKey])
	assert.Equal(t, DefaultPattern, props[PatternKey])
}

func TestFromProperties(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		props := DefaultProperties("test")
		props[ConfigurationFileKey] = filepath.Join(t.TempDir(), "missing.yaml")

		cfg, err := FromProperties(props)
		require.NoError(t, err)
		assert.Equal(t, slog.LevelInfo, cfg.Level)
		assert.Equal(t, []Output{OutputConsole, OutputFile}, cfg.Outputs)
		assert.Equal(t, 60000, cfg.TCPPort)
		assert.Empty(t, cfg.Disabled)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := FromProperties(map[string]string{LevelKey: "LOUD"})
		assert.ErrorIs(t, err, ErrInvalidLevel)
	})

	t.Run("invalid output", func(t *testing.T) {
		_, err := FromProperties(map[string]string{OutputKey: "CONSOLE,SYSLOG"})
		assert.ErrorIs(t, err, ErrInvalidOutput)
	})

	t.Run("invalid port", func(t *testing.T) {
		_, err := FromProperties(map[string]string{TCPPortKey: "99999"})
		assert.ErrorIs(t, err, ErrInvalidPort)
	})

	t.Run("override file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "logging.yaml")
		content := "level: debug\noutput: CONSOLE\ndisabled:\n  - noisy\n"
		require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

		props := DefaultProperties("test")
		props[ConfigurationFileKey] = file
		props[DisabledKey] = "chatty"

		cfg, err := FromProperties(props)
		require.NoError(t, err)
		assert.Equal(t, slog.LevelDebug, cfg.Level)
		assert.Equal(t, []Output{OutputConsole}, cfg.Outputs)
		assert.Equal(t, []string{"chatty", "noisy"}, cfg.Disabled)
	})

	t.Run("broken override file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "logging.yaml")
		require.NoError(t, os.WriteFile(file, []byte("level: [\n"), 0o600))

		_, err := FromProperties(map[string]string{ConfigurationFileKey: file})
		assert.ErrorIs(t, err, ErrOverrideFile)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"trace", LevelTrace},
		{"OFF", LevelOff},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPatternHandler(t *testing.T) {
	var buf bytes.Buffer
	h := newPatternHandler(&buf, slog.LevelInfo, DefaultPattern, []string{"muted"})
	logger := slog.New(h)

	logger.With(LoggerKey, "updater").Info("Update skipped", "url", "http://example.com/manifest.json")
	logger.With(LoggerKey, "muted").Info("should not appear")
	logger.Debug("below level")
	logger.Warn("plain warning", "reason", "two words")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], " | INFO | updater | Update skipped url=http://example.com/manifest.json")
	_, err := time.Parse("2006/01/02 15:04:05", strings.SplitN(lines[0], " | ", 2)[0])
	assert.NoError(t, err)

	assert.Contains(t, lines[1], " | WARN | root | plain warning reason=\"two words\"")
}

func TestPatternHandler_GroupsAndLiterals(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPatternHandler(&buf, slog.LevelInfo, "[%level] %msg %unknown", nil))

	logger.WithGroup("http").Info("fetched", "status", 200)

	assert.Equal(t, "[INFO] fetched http.status=200 %unknown\n", buf.String())
}

func TestConfigure(t *testing.T) {
	t.Run("console and file", func(t *testing.T) {
		var console bytes.Buffer
		file := filepath.Join(t.TempDir(), "logs", "app.log")

		sink, err := Configure(Config{
			Level:    slog.LevelInfo,
			Outputs:  []Output{OutputConsole, OutputFile},
			Pattern:  "%level %msg%n",
			FilePath: file,
			Console:  &console,
		})
		require.NoError(t, err)
		sink.Logger.Info("hello")
		require.NoError(t, sink.Close())

		assert.Equal(t, "INFO hello\n", console.String())
		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Equal(t, "INFO hello\n", string(data))
	})

	t.Run("file output without path", func(t *testing.T) {
		_, err := Configure(Config{Outputs: []Output{OutputFile}})
		assert.ErrorIs(t, err, ErrNoFilePath)
	})

	t.Run("unreachable tcp sink is skipped", func(t *testing.T) {
		var console bytes.Buffer
		sink, err := Configure(Config{
			Outputs: []Output{OutputConsole, OutputTCP},
			Pattern: "%level %msg%n",
			TCPHost: "127.0.0.1",
			TCPPort: 1,
			Console: &console,
		})
		require.NoError(t, err)
		assert.Contains(t, console.String(), "WARN TCP log output unavailable")
		assert.NoError(t, sink.Close())
	})
}

func TestInstall(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	assert.ErrorIs(t, Install(nil), ErrNoLogger)

	sink := &Sink{Logger: Discard()}
	require.NoError(t, Install(sink))
	assert.Same(t, sink.Logger, slog.Default())
}
