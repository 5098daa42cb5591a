package logging

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/natefinch/lumberjack.v2"
)

// tcpDialTimeout bounds the connection to a TCP log sink.
const tcpDialTimeout = 2 * time.Second

// Sink owns the writers opened for a configured logger.
type Sink struct {
	Logger  *slog.Logger
	closers []io.Closer
}

// Close releases the file and socket writers.
func (s *Sink) Close() error {
	var result *multierror.Error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}

// Configure builds a logger writing to every configured output. An
// unreachable TCP sink is skipped with a warning rather than failing startup.
func Configure(cfg Config) (*Sink, error) {
	sink := &Sink{}
	var writers []io.Writer
	var tcpErr error

	for _, out := range cfg.Outputs {
		switch out {
		case OutputConsole:
			console := cfg.Console
			if console == nil {
				console = os.Stdout
			}
			writers = append(writers, console)
		case OutputFile:
			if cfg.FilePath == "" {
				_ = sink.Close()
				return nil, ErrNoFilePath
			}
			file := &lumberjack.Logger{
				Filename:   filepath.ToSlash(cfg.FilePath),
				MaxSize:    5, // MB
				MaxBackups: 10,
				MaxAge:     30, // days
				Compress:   true,
			}
			writers = append(writers, file)
			sink.closers = append(sink.closers, file)
		case OutputTCP:
			addr := net.JoinHostPort(cfg.TCPHost, strconv.Itoa(cfg.TCPPort))
			conn, err := net.DialTimeout("tcp", addr, tcpDialTimeout)
			if err != nil {
				tcpErr = err
				continue
			}
			writers = append(writers, conn)
			sink.closers = append(sink.closers, conn)
		}
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	sink.Logger = slog.New(newPatternHandler(w, cfg.Level, cfg.Pattern, cfg.Disabled))
	if tcpErr != nil {
		sink.Logger.Warn("TCP log output unavailable", LoggerKey, "logging", "host", cfg.TCPHost, "port", cfg.TCPPort, "error", tcpErr)
	}
	return sink, nil
}

var (
	ErrNoLogger   = errors.New("sink has no logger")
	ErrNoFilePath = errors.New("FILE output requires logger.file.output")
)

// Install makes the sink's logger the process-wide slog default.
func Install(sink *Sink) error {
	if sink == nil || sink.Logger == nil {
		return ErrNoLogger
	}
	slog.SetDefault(sink.Logger)
	return nil
}
