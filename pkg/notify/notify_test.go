package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/provisioning-sdk/pkg/eventbus"
)

func TestQueue_DrainReturnsOldestFirst(t *testing.T) {
	t.Parallel()

	q := NewQueue(10)
	q.Notify(context.Background(), Success("a", "first"))
	q.Notify(context.Background(), Error("b", "second"))

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, VariantError, got[1].Variant)
	assert.Empty(t, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DropsOldestBeyondCapacity(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	for _, msg := range []string{"1", "2", "3"} {
		q.Notify(context.Background(), Success("t", msg))
	}

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Message)
	assert.Equal(t, "3", got[1].Message)
}

func TestMulti_SkipsNilAndFansOut(t *testing.T) {
	t.Parallel()

	a, b := NewQueue(5), NewQueue(5)
	Multi(a, nil, b).Notify(context.Background(), Success("t", "m"))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}

func TestLogNotifier_ErrorsLogAtWarn(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.WarnLevel)

	n := NewLogNotifier(logrus.NewEntry(logger))
	n.Notify(context.Background(), Success("Success", "quiet"))
	n.Notify(context.Background(), Error("Access Denied", "loud"))

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "Access Denied")
}

func TestConstructors_UseDismissableMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ModeDismissable, Success("a", "b").Mode)
	assert.Equal(t, ModeDismissable, Error("a", "b").Mode)
}

func TestBusNotifier_PublishesRaisedEvents(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewEventPublisher(logrus.New())
	var got []Notification
	bus.Subscribe(func(e *Raised) {
		got = append(got, e.Notification)
	})

	n := NewBusNotifier(bus)
	n.Notify(context.Background(), Success("Success", "saved"))

	require.Len(t, got, 1)
	assert.Equal(t, "saved", got[0].Message)
}
