package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenDate
	tokenLevel
	tokenLogger
	tokenMessage
	tokenNewline
)

type token struct {
	kind  tokenKind
	value string // literal text or Go time layout
}

// javaLayout maps the date tokens used by logback style patterns onto Go
// reference time fields. Longest tokens first.
var javaLayout = strings.NewReplacer(
	"yyyy", "2006",
	"SSS", "000",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

const defaultDateLayout = "2006/01/02 15:04:05"

// parsePattern splits a pattern such as "%d{yyyy/MM/dd} | %level | %msg%n"
// into tokens. Unknown conversions are kept as literal text.
func parsePattern(pattern string) []token {
	var tokens []token
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, token{kind: tokenLiteral, value: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' {
			lit.WriteByte(pattern[i])
			continue
		}
		rest := pattern[i+1:]
		switch {
		case strings.HasPrefix(rest, "d{"):
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				lit.WriteByte('%')
				continue
			}
			flush()
			tokens = append(tokens, token{kind: tokenDate, value: javaLayout.Replace(rest[2:end])})
			i += end + 1
		case strings.HasPrefix(rest, "d"):
			flush()
			tokens = append(tokens, token{kind: tokenDate, value: defaultDateLayout})
			i++
		case strings.HasPrefix(rest, "level"):
			flush()
			tokens = append(tokens, token{kind: tokenLevel})
			i += len("level")
		case strings.HasPrefix(rest, "logger"):
			flush()
			tokens = append(tokens, token{kind: tokenLogger})
			i += len("logger")
		case strings.HasPrefix(rest, "msg"):
			flush()
			tokens = append(tokens, token{kind: tokenMessage})
			i += len("msg")
		case strings.HasPrefix(rest, "n"):
			flush()
			tokens = append(tokens, token{kind: tokenNewline})
			i++
		default:
			lit.WriteByte('%')
		}
	}
	flush()
	return tokens
}

// patternHandler is a slog.Handler rendering records with a logback style
// pattern. Records whose logger attribute is disabled are dropped.
type patternHandler struct {
	mu       *sync.Mutex
	w        io.Writer
	level    slog.Leveler
	tokens   []token
	disabled map[string]bool
	name     string
	attrs    []slog.Attr
	group    string
}

func newPatternHandler(w io.Writer, level slog.Leveler, pattern string, disabled []string) *patternHandler {
	d := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		d[name] = true
	}
	tokens := parsePattern(pattern)
	if len(tokens) == 0 || tokens[len(tokens)-1].kind != tokenNewline {
		tokens = append(tokens, token{kind: tokenNewline})
	}
	return &patternHandler{
		mu:       &sync.Mutex{},
		w:        w,
		level:    level,
		tokens:   tokens,
		disabled: d,
	}
}

func (h *patternHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level() && !h.disabled[h.name]
}

func (h *patternHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == LoggerKey && h.group == "" {
			clone.name = a.Value.String()
			continue
		}
		clone.attrs = append(clone.attrs, h.qualify(a))
	}
	return &clone
}

func (h *patternHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group == "" {
		clone.group = name
	} else {
		clone.group = h.group + "." + name
	}
	return &clone
}

func (h *patternHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

func (h *patternHandler) Handle(_ context.Context, r slog.Record) error {
	name := h.name
	var attrs []slog.Attr
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == LoggerKey && h.group == "" {
			name = a.Value.String()
			return true
		}
		attrs = append(attrs, h.qualify(a))
		return true
	})
	if h.disabled[name] {
		return nil
	}
	if name == "" {
		name = "root"
	}

	var buf bytes.Buffer
	for _, t := range h.tokens {
		switch t.kind {
		case tokenLiteral:
			buf.WriteString(t.value)
		case tokenDate:
			ts := r.Time
			if ts.IsZero() {
				ts = time.Now()
			}
			buf.WriteString(ts.Format(t.value))
		case tokenLevel:
			buf.WriteString(levelName(r.Level))
		case tokenLogger:
			buf.WriteString(name)
		case tokenMessage:
			buf.WriteString(r.Message)
			for _, a := range attrs {
				writeAttr(&buf, a)
			}
		case tokenNewline:
			buf.WriteByte('\n')
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			g.Key = a.Key + "." + g.Key
			writeAttr(buf, g)
		}
		return
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\"") {
		val = fmt.Sprintf("%q", val)
	}
	buf.WriteByte(' ')
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(val)
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
