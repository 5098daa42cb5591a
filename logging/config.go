package logging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Property keys understood by FromProperties.
const (
	LevelKey             = "logger.level"
	OutputKey            = "logger.output"
	PatternKey           = "logger.pattern"
	TCPHostKey           = "logger.tcp.host"
	TCPPortKey           = "logger.tcp.port"
	FileOutputKey        = "logger.file.output"
	ConfigurationFileKey = "logger.configuration.file"
	DisabledKey          = "logger.disabled"
)

// DefaultPattern renders "2024/01/31 10:00:00 | INFO | launcher | message".
const DefaultPattern = "%d{yyyy/MM/dd HH:mm:ss} | %level | %logger | %msg%n"

// LevelOff disables every record.
const LevelOff = slog.Level(16)

// LevelTrace sits below debug.
const LevelTrace = slog.Level(-8)

// Output is a log destination.
type Output string

const (
	OutputConsole Output = "CONSOLE"
	OutputFile    Output = "FILE"
	OutputTCP     Output = "TCP"
)

var (
	ErrInvalidLevel  = errors.New("invalid logger level")
	ErrInvalidOutput = errors.New("invalid logger output")
	ErrInvalidPort   = errors.New("invalid logger tcp port")
	ErrOverrideFile  = errors.New("failed to read logger configuration file")
)

// Config is the resolved logging configuration.
type Config struct {
	Level    slog.Level
	Outputs  []Output
	Pattern  string
	FilePath string
	TCPHost  string
	TCPPort  int
	Disabled []string

	// ConfigurationFile is an optional YAML file whose values override the
	// properties. A missing file is ignored.
	ConfigurationFile string

	// Console receives CONSOLE output; os.Stdout when nil.
	Console io.Writer
}

// DefaultProperties returns the logging defaults for an application.
func DefaultProperties(applicationName string) map[string]string {
	return map[string]string{
		LevelKey:             "INFO",
		OutputKey:            "CONSOLE,FILE",
		PatternKey:           DefaultPattern,
		TCPHostKey:           "localhost",
		TCPPortKey:           "60000",
		FileOutputKey:        "logs/" + applicationName + ".log",
		ConfigurationFileKey: "logging.yaml",
		DisabledKey:          "",
	}
}

type overrideFile struct {
	Level    string   `yaml:"level"`
	Output   string   `yaml:"output"`
	Pattern  string   `yaml:"pattern"`
	File     string   `yaml:"file"`
	Disabled []string `yaml:"disabled"`
}

// FromProperties builds a Config from resolved properties, then applies the
// optional YAML override file named by logger.configuration.file.
func FromProperties(props map[string]string) (Config, error) {
	cfg := Config{
		Pattern:           props[PatternKey],
		FilePath:          props[FileOutputKey],
		TCPHost:           props[TCPHostKey],
		ConfigurationFile: props[ConfigurationFileKey],
		Disabled:          splitList(props[DisabledKey]),
	}
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}

	level, err := ParseLevel(props[LevelKey])
	if err != nil {
		return Config{}, err
	}
	cfg.Level = level

	outputs, err := parseOutputs(props[OutputKey])
	if err != nil {
		return Config{}, err
	}
	cfg.Outputs = outputs

	if p := strings.TrimSpace(props[TCPPortKey]); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("%w: %q", ErrInvalidPort, p)
		}
		cfg.TCPPort = port
	}

	if err := cfg.applyOverrideFile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyOverrideFile() error {
	if c.ConfigurationFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.ConfigurationFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOverrideFile, c.ConfigurationFile, err)
	}

	var o overrideFile
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOverrideFile, c.ConfigurationFile, err)
	}

	if o.Level != "" {
		level, err := ParseLevel(o.Level)
		if err != nil {
			return err
		}
		c.Level = level
	}
	if o.Output != "" {
		outputs, err := parseOutputs(o.Output)
		if err != nil {
			return err
		}
		c.Outputs = outputs
	}
	if o.Pattern != "" {
		c.Pattern = o.Pattern
	}
	if o.File != "" {
		c.FilePath = o.File
	}
	if len(o.Disabled) > 0 {
		c.Disabled = append(c.Disabled, o.Disabled...)
	}
	return nil
}

// ParseLevel accepts the usual level names, case-insensitively, plus TRACE and OFF.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "TRACE", "ALL":
		return LevelTrace, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "OFF":
		return LevelOff, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

func parseOutputs(s string) ([]Output, error) {
	var outputs []Output
	for _, item := range splitList(s) {
		o := Output(strings.ToUpper(item))
		switch o {
		case OutputConsole, OutputFile, OutputTCP:
			outputs = append(outputs, o)
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidOutput, item)
		}
	}
	return outputs, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
