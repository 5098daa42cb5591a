package splash

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingScreen struct {
	calls []string
}

func (r *recordingScreen) Display()                   { r.calls = append(r.calls, "display") }
func (r *recordingScreen) Close()                     { r.calls = append(r.calls, "close") }
func (r *recordingScreen) SetName(n string)           { r.calls = append(r.calls, "name "+n) }
func (r *recordingScreen) SetProgress(p int)          { r.calls = append(r.calls, "progress "+strconv.Itoa(p)) }
func (r *recordingScreen) SetCurrentLoading(n string) { r.calls = append(r.calls, "loading "+n) }

func TestUpdateAdapter(t *testing.T) {
	screen := &recordingScreen{}
	a := NewUpdateAdapter(screen)

	a.StartDownloads()
	a.StartDownloadFile("lib/core/app.jar")
	a.FileUpdated("lib/core/app.jar", 50)
	a.DownloadUpdated(50)
	a.DownloadUpdated(100)
	a.DoneDownloads()
	a.Completed()

	assert.Equal(t, []string{"loading app.jar", "progress 50", "progress 100", "close"}, screen.calls)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := ConsoleFactory(&buf)()

	c.SetProgress(10)
	c.SetName("demo")
	c.Display()
	c.Display()
	c.SetCurrentLoading("app.jar")
	c.SetProgress(50)
	c.SetProgress(50)
	c.SetProgress(150)
	c.Close()
	c.Close()

	want := "Loading demo...\n" +
		"Loading app.jar\n" +
		"[##########          ]  50%\n" +
		"[####################] 100%\n" +
		"demo ready.\n"
	assert.Equal(t, want, buf.String())
}

func TestEmpty(t *testing.T) {
	s := EmptyFactory()
	assert.NotPanics(t, func() {
		s.SetName("x")
		s.Display()
		s.SetProgress(10)
		s.SetCurrentLoading("y")
		s.Close()
	})
}
