package launcher

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/GoCodeAlone/launcher/updater"
)

// observerRegistration holds information about a registered observer
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool // empty means every event
	registeredAt time.Time
}

func (r *observerRegistration) wants(eventType string) bool {
	return len(r.eventTypes) == 0 || r.eventTypes[eventType]
}

// observers keeps registrations in registration order.
type observers struct {
	mu   sync.RWMutex
	regs []*observerRegistration
}

// RegisterObserver adds an observer to receive notifications from the
// application. If eventTypes is empty, the observer receives all events.
// Registering an ID again replaces the earlier registration.
func (app *Application) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrNilObserver
	}

	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}
	reg := &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}

	app.observers.mu.Lock()
	defer app.observers.mu.Unlock()
	if i := app.observers.index(observer.ObserverID()); i >= 0 {
		app.observers.regs[i] = reg
	} else {
		app.observers.regs = append(app.observers.regs, reg)
	}

	app.log().Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. Unknown observers are ignored.
func (app *Application) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrNilObserver
	}

	app.observers.mu.Lock()
	defer app.observers.mu.Unlock()
	if i := app.observers.index(observer.ObserverID()); i >= 0 {
		app.observers.regs = slices.Delete(app.observers.regs, i, i+1)
		app.log().Debug("Observer unregistered", "observerID", observer.ObserverID())
	}
	return nil
}

func (o *observers) index(id string) int {
	return slices.IndexFunc(o.regs, func(r *observerRegistration) bool {
		return r.observer.ObserverID() == id
	})
}

// NotifyObservers delivers event to every interested observer in
// registration order. Observer errors and panics are logged and never
// interrupt the delivery to the remaining observers; they are returned
// together once every observer has run.
func (app *Application) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	app.observers.mu.RLock()
	regs := slices.Clone(app.observers.regs)
	app.observers.mu.RUnlock()

	var result *multierror.Error
	for _, reg := range regs {
		if !reg.wants(event.Type()) {
			continue
		}
		if err := app.deliver(ctx, reg.observer, event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (app *Application) deliver(ctx context.Context, observer Observer, event cloudevents.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			app.log().Error("Observer panicked", "observerID", observer.ObserverID(), "event", event.Type(), "panic", r)
			err = fmt.Errorf("observer %s panicked: %v", observer.ObserverID(), r)
		}
	}()

	if err := observer.OnEvent(ctx, event); err != nil {
		app.log().Error("Observer error", "observerID", observer.ObserverID(), "event", event.Type(), "error", err)
		return fmt.Errorf("observer %s: %w", observer.ObserverID(), err)
	}
	return nil
}

// GetObservers returns information about currently registered observers.
func (app *Application) GetObservers() []ObserverInfo {
	app.observers.mu.RLock()
	defer app.observers.mu.RUnlock()

	info := make([]ObserverInfo, 0, len(app.observers.regs))
	for _, reg := range app.observers.regs {
		eventTypes := make([]string, 0, len(reg.eventTypes))
		for eventType := range reg.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		slices.Sort(eventTypes)
		info = append(info, ObserverInfo{
			ID:           reg.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: reg.registeredAt,
		})
	}
	return info
}

// emit builds an application event and notifies the observers. Observer
// failures are already logged by deliver.
func (app *Application) emit(ctx context.Context, eventType string, data map[string]any) {
	event := NewCloudEvent(eventType, eventSource(app.name), data, nil)
	_ = app.NotifyObservers(ctx, event)
}

// updateEvents publishes the progress of an update attempt as CloudEvents.
// Batch progress is published only when the percentage changes.
type updateEvents struct {
	updater.NopListener
	ctx  context.Context
	app  *Application
	url  string
	last int
}

func (app *Application) updateEvents(ctx context.Context, manifestURL string) *updateEvents {
	return &updateEvents{ctx: ctx, app: app, url: manifestURL, last: -1}
}

func (u *updateEvents) send(eventType string, data map[string]any) {
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["url"] = u.url
	u.app.emit(u.ctx, eventType, data)
}

func (u *updateEvents) FileUpToDate() {
	u.send(EventTypeUpdateUpToDate, nil)
}

func (u *updateEvents) StartDownloads() {
	u.last = -1
	u.send(EventTypeUpdateStarted, nil)
}

func (u *updateEvents) StartDownloadFile(path string) {
	u.send(EventTypeUpdateFileStarted, map[string]any{"path": path})
}

func (u *updateEvents) FileCompletedSuccessfully(path string) {
	u.send(EventTypeUpdateFileCompleted, map[string]any{"path": path})
}

func (u *updateEvents) DownloadUpdated(percent int) {
	if percent == u.last {
		return
	}
	u.last = percent
	u.send(EventTypeUpdateProgress, map[string]any{"percent": percent})
}

func (u *updateEvents) DoneDownloads() {
	u.send(EventTypeUpdateDownloaded, nil)
}

func (u *updateEvents) Completed() {
	u.send(EventTypeUpdateCompleted, nil)
}

func (u *updateEvents) DownloadFailure(err error) {
	u.send(EventTypeUpdateFailed, map[string]any{"error": err.Error()})
}
