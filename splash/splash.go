// Package splash defines the screen shown while an application starts and
// adapts it to update progress events.
package splash

import (
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/GoCodeAlone/launcher/updater"
)

// Screen is a startup progress display.
type Screen interface {
	Display()
	Close()
	SetName(name string)
	SetProgress(percent int)
	SetCurrentLoading(name string)
}

// Factory builds the screen for one startup sequence.
type Factory func() Screen

// Empty displays nothing.
type Empty struct{}

func (Empty) Display()                 {}
func (Empty) Close()                   {}
func (Empty) SetName(string)           {}
func (Empty) SetProgress(int)          {}
func (Empty) SetCurrentLoading(string) {}

// EmptyFactory returns Empty screens.
func EmptyFactory() Screen { return Empty{} }

// UpdateAdapter forwards update progress to a Screen: the batch progress to
// SetProgress, the file being downloaded to SetCurrentLoading, and closes
// the screen when the update completes.
type UpdateAdapter struct {
	updater.NopListener
	screen Screen
}

// NewUpdateAdapter wraps screen.
func NewUpdateAdapter(screen Screen) *UpdateAdapter {
	return &UpdateAdapter{screen: screen}
}

func (a *UpdateAdapter) DownloadUpdated(percent int) {
	a.screen.SetProgress(percent)
}

func (a *UpdateAdapter) StartDownloadFile(file string) {
	a.screen.SetCurrentLoading(path.Base(file))
}

func (a *UpdateAdapter) Completed() {
	a.screen.Close()
}

// Console renders the screen as text lines on a writer.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	name     string
	progress int
	visible  bool
}

// NewConsole creates a console screen writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, progress: -1}
}

// ConsoleFactory returns a Factory of console screens writing to out.
func ConsoleFactory(out io.Writer) Factory {
	return func() Screen { return NewConsole(out) }
}

func (c *Console) Display() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visible {
		return
	}
	c.visible = true
	fmt.Fprintf(c.out, "Loading %s...\n", c.name)
}

func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.visible {
		return
	}
	c.visible = false
	fmt.Fprintf(c.out, "%s ready.\n", c.name)
}

func (c *Console) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// SetProgress draws a bar only when the percentage changes.
func (c *Console) SetProgress(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	percent = min(max(percent, 0), 100)
	if !c.visible || percent == c.progress {
		return
	}
	c.progress = percent
	filled := percent / 5
	fmt.Fprintf(c.out, "[%s%s] %3d%%\n", strings.Repeat("#", filled), strings.Repeat(" ", 20-filled), percent)
}

func (c *Console) SetCurrentLoading(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.visible {
		return
	}
	fmt.Fprintf(c.out, "Loading %s\n", name)
}

var (
	_ Screen                   = Empty{}
	_ Screen                   = (*Console)(nil)
	_ updater.DownloadListener = (*UpdateAdapter)(nil)
)
