package updater

import (
	"fmt"

	"github.com/GoCodeAlone/launcher/logging"
)

// DownloadListener receives the progress of an update attempt.
//
// For one attempt the engine emits StartDownloads before any per-file event,
// DoneDownloads and Completed after every per-file event of a successful run,
// and DownloadFailure instead of Completed when the attempt fails. When the
// manifest requires nothing, only FileUpToDate is emitted.
//
// Embed NopListener to implement only the events of interest.
type DownloadListener interface {
	// FileUpToDate is called when the manifest check found nothing to do.
	FileUpToDate()

	// StartDownloads is called once before the first file transfer.
	StartDownloads()

	// StartDownloadFile is called when the transfer of path begins.
	StartDownloadFile(path string)

	// FileUpdated reports the progress of path in percent (0-100).
	FileUpdated(path string, percent int)

	// FileCompletedSuccessfully is called when path has been fully received.
	FileCompletedSuccessfully(path string)

	// DownloadUpdated reports the progress of the whole batch in percent (0-100).
	DownloadUpdated(percent int)

	// DoneDownloads is called once after the last file transfer.
	DoneDownloads()

	// Completed is called when the attempt, install included, finished.
	Completed()

	// DownloadFailure is the terminal event of a failed attempt.
	DownloadFailure(err error)
}

// NopListener implements every DownloadListener event as a no-op.
type NopListener struct{}

func (NopListener) FileUpToDate()                    {}
func (NopListener) StartDownloads()                  {}
func (NopListener) StartDownloadFile(string)         {}
func (NopListener) FileUpdated(string, int)          {}
func (NopListener) FileCompletedSuccessfully(string) {}
func (NopListener) DownloadUpdated(int)              {}
func (NopListener) DoneDownloads()                   {}
func (NopListener) Completed()                       {}
func (NopListener) DownloadFailure(error)            {}

// Listeners fans every event out to its members in registration order, on
// the calling goroutine. A panicking listener is logged and skipped.
type Listeners struct {
	members []DownloadListener
	logger  logging.Logger
}

// NewListeners returns a fan-out over the non-nil listeners.
func NewListeners(logger logging.Logger, listeners ...DownloadListener) *Listeners {
	if logger == nil {
		logger = logging.Discard()
	}
	l := &Listeners{logger: logger}
	for _, m := range listeners {
		if m != nil {
			l.members = append(l.members, m)
		}
	}
	return l
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	return len(l.members)
}

func (l *Listeners) each(event string, fn func(DownloadListener)) {
	for i, m := range l.members {
		l.call(i, event, m, fn)
	}
}

func (l *Listeners) call(i int, event string, m DownloadListener, fn func(DownloadListener)) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Download listener panicked", "listener", fmt.Sprintf("%d:%T", i, m), "event", event, "panic", r)
		}
	}()
	fn(m)
}

func (l *Listeners) FileUpToDate() {
	l.each("fileUpToDate", func(m DownloadListener) { m.FileUpToDate() })
}

func (l *Listeners) StartDownloads() {
	l.each("startDownloads", func(m DownloadListener) { m.StartDownloads() })
}

func (l *Listeners) StartDownloadFile(path string) {
	l.each("startDownloadFile", func(m DownloadListener) { m.StartDownloadFile(path) })
}

func (l *Listeners) FileUpdated(path string, percent int) {
	l.each("fileUpdated", func(m DownloadListener) { m.FileUpdated(path, percent) })
}

func (l *Listeners) FileCompletedSuccessfully(path string) {
	l.each("fileCompletedSuccessfully", func(m DownloadListener) { m.FileCompletedSuccessfully(path) })
}

func (l *Listeners) DownloadUpdated(percent int) {
	l.each("downloadUpdated", func(m DownloadListener) { m.DownloadUpdated(percent) })
}

func (l *Listeners) DoneDownloads() {
	l.each("doneDownloads", func(m DownloadListener) { m.DoneDownloads() })
}

func (l *Listeners) Completed() {
	l.each("completed", func(m DownloadListener) { m.Completed() })
}

func (l *Listeners) DownloadFailure(err error) {
	l.each("downloadFailure", func(m DownloadListener) { m.DownloadFailure(err) })
}

var _ DownloadListener = (*Listeners)(nil)
