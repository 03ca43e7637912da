// Package notify is the user facing notification sink (the toast of a web UI).
package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/pkg/eventbus"
)

type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
)

const ModeDismissable = "dismissable"

type Notification struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Variant Variant `json:"variant"`
	Mode    string  `json:"mode"`
}

func Success(title, message string) Notification {
	return Notification{Title: title, Message: message, Variant: VariantSuccess, Mode: ModeDismissable}
}

func Error(title, message string) Notification {
	return Notification{Title: title, Message: message, Variant: VariantError, Mode: ModeDismissable}
}

// Notifier is fire-and-forget: implementations must not block on slow consumers or panic.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

type discard struct{}

func (discard) Notify(context.Context, Notification) {}

// Discard drops every notification.
var Discard Notifier = discard{}

type multi []Notifier

func (m multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}

// Multi fans a notification out to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type logNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier writes notifications to the log; errors at warn level, the rest at info.
func NewLogNotifier(log *logrus.Entry) Notifier {
	return &logNotifier{log: log}
}

func (l *logNotifier) Notify(_ context.Context, n Notification) {
	entry := l.log.WithFields(logrus.Fields{
		"title":   n.Title,
		"variant": n.Variant,
	})
	if n.Variant == VariantError {
		entry.Warn(n.Message)
		return
	}
	entry.Info(n.Message)
}

// Raised is published by the bus notifier for every notification.
type Raised struct {
	Notification Notification
}

type busNotifier struct {
	bus eventbus.EventBus
}

// NewBusNotifier republishes notifications on bus as *Raised events.
func NewBusNotifier(bus eventbus.EventBus) Notifier {
	return &busNotifier{bus: bus}
}

func (b *busNotifier) Notify(_ context.Context, n Notification) {
	b.bus.Publish(&Raised{Notification: n})
}

// Queue buffers notifications until a reader drains them. Oldest entries are
// dropped once the queue holds max items.
type Queue struct {
	mu    sync.Mutex
	max   int
	items []Notification
}

func NewQueue(max int) *Queue {
	if max <= 0 {
		max = 50
	}
	return &Queue{max: max}
}

func (q *Queue) Notify(_ context.Context, n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	if len(q.items) > q.max {
		q.items = q.items[len(q.items)-q.max:]
	}
}

// Drain returns the buffered notifications oldest first and empties the queue.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

// Peek returns a copy of the buffered notifications without draining them.
func (q *Queue) Peek() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification{}, q.items...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
