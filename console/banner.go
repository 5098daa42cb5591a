// Package console prints the startup banner and elapsed-time measurements
// to the terminal.
package console

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const lineLength = 80

var (
	borderLine = strings.Repeat("*", lineLength)
	sideLine   = "*" + strings.Repeat(" ", lineLength-2) + "*"
)

const (
	DefaultPoweredBy = "GoCodeAlone Launcher"
	DefaultURL       = "https://github.com/GoCodeAlone/launcher"
)

// Line is an extra banner line rendered after the header.
type Line interface {
	Print() string
}

// Text is a Line printed as is.
type Text string

func (t Text) Print() string { return string(t) }

// Framed is a Line padded to the banner width between two borders.
type Framed string

func (f Framed) Print() string { return frame("*   " + string(f)) }

// Banner is the framed header displayed when an application starts.
type Banner struct {
	name      string
	poweredBy string
	url       string
	lines     []string
	added     []Line
}

// BannerOption configures a Banner.
type BannerOption func(*Banner)

// WithPoweredBy replaces the engine name on the "Powered by" line.
func WithPoweredBy(name string) BannerOption {
	return func(b *Banner) { b.poweredBy = name }
}

// WithURL replaces the right-aligned URL line.
func WithURL(url string) BannerOption {
	return func(b *Banner) { b.url = url }
}

// NewBanner creates a banner for the application name.
func NewBanner(name string, opts ...BannerOption) *Banner {
	b := &Banner{name: name, poweredBy: DefaultPoweredBy, url: DefaultURL}
	for _, opt := range opts {
		opt(b)
	}
	b.lines = b.header()
	return b
}

// Name returns the application name shown in the banner.
func (b *Banner) Name() string {
	return b.name
}

// AddLine appends a line printed after the header.
func (b *Banner) AddLine(l Line) {
	if l != nil {
		b.added = append(b.added, l)
	}
}

// FromFile replaces the header with the lines of path. When the file cannot
// be read the default header is kept and an error line is appended.
func (b *Banner) FromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		b.lines = append(b.header(), "*-- ERROR reading file: "+path)
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		b.lines = append(b.header(), "*-- ERROR reading file: "+path)
		return err
	}
	b.lines = lines
	return nil
}

// Display writes the banner to w.
func (b *Banner) Display(w io.Writer) error {
	var sb strings.Builder
	for _, l := range b.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	for _, l := range b.added {
		sb.WriteString(l.Print())
		sb.WriteByte('\n')
	}
	sb.WriteString(sideLine)
	sb.WriteByte('\n')
	sb.WriteString(borderLine)
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

// String returns the rendered banner.
func (b *Banner) String() string {
	var sb strings.Builder
	_ = b.Display(&sb)
	return sb.String()
}

func (b *Banner) header() []string {
	name := b.name
	if len(name) > lineLength-2 {
		name = name[:lineLength-2]
	}
	start := ((lineLength - 2) - len(name)) >> 1

	url := b.url + "   *"
	pad := max(lineLength-len(url)-1, 0)

	return []string{
		borderLine,
		sideLine,
		frame("*" + strings.Repeat(" ", start) + name),
		sideLine,
		frame("*   Powered by " + b.poweredBy),
		"*" + strings.Repeat(" ", pad) + url,
	}
}

// frame pads s with spaces and closes it with the right border.
func frame(s string) string {
	if len(s) >= lineLength-1 {
		return s[:lineLength-1] + "*"
	}
	return s + strings.Repeat(" ", lineLength-len(s)-1) + "*"
}

var (
	_ Line = Text("")
	_ Line = Framed("")
)
