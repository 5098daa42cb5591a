package launcher

import (
	"context"
	"errors"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCloudEvent(t *testing.T) {
	event := NewCloudEvent(EventTypeApplicationStarted, eventSource("my app"), map[string]any{"durationMs": 12}, map[string]any{"attempt": "1"})

	require.NoError(t, ValidateCloudEvent(event))
	assert.Equal(t, EventTypeApplicationStarted, event.Type())
	assert.Equal(t, "launcher/my%20app", event.Source())
	assert.Equal(t, cloudevents.VersionV1, event.SpecVersion())
	assert.Equal(t, "1", event.Extensions()["attempt"])

	id, err := uuid.Parse(event.ID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	var data map[string]any
	require.NoError(t, event.DataAs(&data))
	assert.InDelta(t, 12, data["durationMs"], 0)
}

func TestValidateCloudEvent_Invalid(t *testing.T) {
	assert.Error(t, ValidateCloudEvent(cloudevents.NewEvent()))
}

func TestNotifyObservers_OrderFilterAndRecovery(t *testing.T) {
	app, err := Prepare("demo")
	require.NoError(t, err)

	var got []string
	record := func(id string) Observer {
		return NewFunctionalObserver(id, func(_ context.Context, e cloudevents.Event) error {
			got = append(got, id+":"+e.Type())
			return nil
		})
	}

	require.NoError(t, app.RegisterObserver(record("first")))
	require.NoError(t, app.RegisterObserver(NewFunctionalObserver("panics", func(context.Context, cloudevents.Event) error {
		panic("observer bug")
	})))
	require.NoError(t, app.RegisterObserver(NewFunctionalObserver("fails", func(context.Context, cloudevents.Event) error {
		return errors.New("observer failed")
	})))
	require.NoError(t, app.RegisterObserver(record("started-only"), EventTypeApplicationStarted))
	require.NoError(t, app.RegisterObserver(record("last")))

	app.emit(context.Background(), EventTypeApplicationStarting, nil)
	app.emit(context.Background(), EventTypeApplicationStarted, nil)

	assert.Equal(t, []string{
		"first:" + EventTypeApplicationStarting,
		"last:" + EventTypeApplicationStarting,
		"first:" + EventTypeApplicationStarted,
		"started-only:" + EventTypeApplicationStarted,
		"last:" + EventTypeApplicationStarted,
	}, got)
}

func TestNotifyObservers_ReturnsFailures(t *testing.T) {
	app, err := Prepare("demo")
	require.NoError(t, err)

	errFailed := errors.New("observer failed")
	var delivered int
	require.NoError(t, app.RegisterObserver(NewFunctionalObserver("fails", func(context.Context, cloudevents.Event) error {
		return errFailed
	})))
	require.NoError(t, app.RegisterObserver(NewFunctionalObserver("panics", func(context.Context, cloudevents.Event) error {
		panic("observer bug")
	})))
	require.NoError(t, app.RegisterObserver(NewFunctionalObserver("counts", func(context.Context, cloudevents.Event) error {
		delivered++
		return nil
	})))

	event := NewCloudEvent(EventTypeApplicationStarted, eventSource("demo"), nil, nil)
	err = app.NotifyObservers(context.Background(), event)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, err.Error(), "observer panics panicked: observer bug")
	assert.Equal(t, 1, delivered)

	require.NoError(t, app.UnregisterObserver(NewFunctionalObserver("fails", nil)))
	require.NoError(t, app.UnregisterObserver(NewFunctionalObserver("panics", nil)))
	assert.NoError(t, app.NotifyObservers(context.Background(), event))
	assert.Equal(t, 2, delivered)
}

func TestRegisterObserver_ReplaceAndUnregister(t *testing.T) {
	app, err := Prepare("demo")
	require.NoError(t, err)

	noop := func(context.Context, cloudevents.Event) error { return nil }
	a := NewFunctionalObserver("a", noop)
	b := NewFunctionalObserver("b", noop)

	require.NoError(t, app.RegisterObserver(a, EventTypeUpdateFailed, EventTypeUpdateCompleted))
	require.NoError(t, app.RegisterObserver(b))
	require.NoError(t, app.RegisterObserver(NewFunctionalObserver("a", noop)))

	infos := app.GetObservers()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].ID)
	assert.Empty(t, infos[0].EventTypes)
	assert.Equal(t, "b", infos[1].ID)

	require.NoError(t, app.RegisterObserver(b, EventTypeUpdateFailed, EventTypeUpdateCompleted))
	assert.Equal(t, []string{EventTypeUpdateCompleted, EventTypeUpdateFailed}, app.GetObservers()[1].EventTypes)

	require.NoError(t, app.UnregisterObserver(a))
	require.NoError(t, app.UnregisterObserver(a))
	infos = app.GetObservers()
	require.Len(t, infos, 1)
	assert.Equal(t, "b", infos[0].ID)

	assert.ErrorIs(t, app.UnregisterObserver(nil), ErrNilObserver)
}

func TestUpdateEvents_ProgressOnlyOnChange(t *testing.T) {
	app, err := Prepare("demo")
	require.NoError(t, err)

	var percents []any
	require.NoError(t, app.RegisterObserver(NewFunctionalObserver("progress", func(_ context.Context, e cloudevents.Event) error {
		var data map[string]any
		if err := e.DataAs(&data); err != nil {
			return err
		}
		percents = append(percents, data["percent"])
		return nil
	}), EventTypeUpdateProgress))

	bridge := app.updateEvents(context.Background(), "http://updates.test/m.json")
	bridge.StartDownloads()
	for _, p := range []int{0, 0, 50, 50, 100} {
		bridge.DownloadUpdated(p)
	}

	assert.Equal(t, []any{float64(0), float64(50), float64(100)}, percents)
}
