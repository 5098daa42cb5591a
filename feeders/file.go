package feeders

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileFeeder reads one configuration file. The format follows the file
// extension: .properties, .yaml/.yml, .toml, .json or .env.
type FileFeeder struct {
	Path         string
	verboseDebug bool
	logger       debugLogger
}

// NewFileFeeder creates a feeder for path.
func NewFileFeeder(path string) *FileFeeder {
	return &FileFeeder{Path: path}
}

// SetVerboseDebug enables or disables verbose debug logging
func (f *FileFeeder) SetVerboseDebug(enabled bool, logger interface{ Debug(msg string, args ...any) }) {
	f.verboseDebug = enabled
	f.logger = logger
	if enabled && logger != nil {
		f.logger.Debug("Verbose file feeder debugging enabled", "path", f.Path)
	}
}

// Feed implements Feeder. A missing file yields ErrFileNotFound.
func (f *FileFeeder) Feed(props map[string]string) error {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, f.Path)
	}
	if err != nil {
		return fmt.Errorf("failed to read configuration file %s: %w", f.Path, err)
	}

	parsed := make(map[string]string)
	switch ext := strings.ToLower(filepath.Ext(f.Path)); ext {
	case ".properties", "":
		err = parseProperties(data, parsed)
	case ".yaml", ".yml":
		err = parseYAML(data, parsed)
	case ".toml":
		err = parseTOML(data, parsed)
	case ".json":
		err = parseJSON(data, parsed)
	case ".env":
		err = parseDotEnv(data, parsed)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse configuration file %s: %w", f.Path, err)
	}

	for k, v := range parsed {
		if f.verboseDebug && f.logger != nil {
			f.logger.Debug("FileFeeder: property loaded", "path", f.Path, "key", k)
		}
		props[k] = v
	}
	return nil
}

func parseYAML(data []byte, props map[string]string) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to read YAML: %w", err)
	}
	return flatten("", doc, props)
}

func parseTOML(data []byte, props map[string]string) error {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to read toml: %w", err)
	}
	return flatten("", doc, props)
}

func parseJSON(data []byte, props map[string]string) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to read json: %w", err)
	}
	return flatten("", doc, props)
}

// parseProperties reads "key=value" or "key: value" lines. Lines starting
// with '#' or '!' are comments and a trailing backslash continues a value
// on the next line.
func parseProperties(data []byte, props map[string]string) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	var pending strings.Builder
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if pending.Len() == 0 && (line == "" || line[0] == '#' || line[0] == '!') {
			continue
		}
		if strings.HasSuffix(line, `\`) && !strings.HasSuffix(line, `\\`) {
			pending.WriteString(strings.TrimSuffix(line, `\`))
			continue
		}
		pending.WriteString(line)
		entry := pending.String()
		pending.Reset()

		idx := strings.IndexAny(entry, "=:")
		if idx <= 0 {
			return fmt.Errorf("%w at line %d: %s", ErrInvalidLineFormat, lineNum, entry)
		}
		props[strings.TrimSpace(entry[:idx])] = strings.TrimSpace(entry[idx+1:])
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	if pending.Len() > 0 {
		return fmt.Errorf("%w: unterminated continuation at line %d", ErrInvalidLineFormat, lineNum)
	}
	return nil
}

// parseDotEnv reads KEY=VALUE lines, removing matching quotes.
func parseDotEnv(data []byte, props map[string]string) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		idx := strings.Index(line, "=")
		if idx <= 0 {
			return fmt.Errorf("%w at line %d: %s", ErrDotEnvInvalidLineFmt, lineNum, line)
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		props[key] = value
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}
