package launcher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Observer defines the interface for objects that want to be notified of
// application events. Events use the CloudEvents specification.
type Observer interface {
	// OnEvent is called synchronously on the goroutine that emitted the
	// event, so observers should return quickly.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// ObserverInfo provides information about a registered observer.
type ObserverInfo struct {
	// ID is the unique identifier of the observer
	ID string `json:"id"`

	// EventTypes are the event types this observer is subscribed to.
	// Empty slice means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered
	RegisteredAt time.Time `json:"registeredAt"`
}

// EventType constants for the events emitted by an Application.
// Following CloudEvents specification, these use reverse domain notation.
const (
	// Application lifecycle events
	EventTypeApplicationStarting = "com.launcher.application.starting"
	EventTypeApplicationStarted  = "com.launcher.application.started"
	EventTypeApplicationFailed   = "com.launcher.application.failed"
	EventTypeApplicationStopped  = "com.launcher.application.stopped"

	// Configuration events
	EventTypeConfigLoaded = "com.launcher.config.loaded"

	// Update events
	EventTypeUpdateUpToDate      = "com.launcher.update.uptodate"
	EventTypeUpdateStarted       = "com.launcher.update.started"
	EventTypeUpdateFileStarted   = "com.launcher.update.file.started"
	EventTypeUpdateFileCompleted = "com.launcher.update.file.completed"
	EventTypeUpdateProgress      = "com.launcher.update.progress"
	EventTypeUpdateDownloaded    = "com.launcher.update.downloaded"
	EventTypeUpdateCompleted     = "com.launcher.update.completed"
	EventTypeUpdateFailed        = "com.launcher.update.failed"
)

// FunctionalObserver provides a simple way to create observers using functions.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided function
// to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

// CloudEvent is an alias for the CloudEvents Event type for convenience
type CloudEvent = cloudevents.Event

// NewCloudEvent creates a new CloudEvent with the specified parameters.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()

	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}

	for key, value := range metadata {
		event.SetExtension(key, value)
	}

	return event
}

// generateEventID generates a time-ordered UUIDv7 event identifier.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails for any reason
		id = uuid.New()
	}
	return id.String()
}

// ValidateCloudEvent validates that a CloudEvent conforms to the specification.
func ValidateCloudEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}
	return nil
}

// eventSource is the CloudEvents source of an application's events.
func eventSource(name string) string {
	return "launcher/" + url.PathEscape(name)
}
