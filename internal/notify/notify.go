// Package notify delivers user-visible alerts. Delivery is fire-and-forget:
// sinks never report failure back to the component that raised the alert.
package notify

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DefaultIcon is the icon reference attached to every alert.
const DefaultIcon = "icons/icon128.png"

// Kind groups notifications for clients that style them differently.
type Kind string

const (
	KindThreshold Kind = "threshold"
	KindPomodoro  Kind = "pomodoro"
	KindReminder  Kind = "reminder"
)

// Notification is one alert.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Icon      string    `json:"icon"`
	Priority  int       `json:"priority,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// New fills in the ID, icon and timestamp of a notification.
func New(kind Kind, title, body string, now time.Time) Notification {
	return Notification{
		ID:        newID(now),
		Kind:      kind,
		Title:     title,
		Body:      body,
		Icon:      DefaultIcon,
		CreatedAt: now,
	}
}

func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0)).String()
}

// Multi fans a notification out to every sink.
type Multi []Sink

// Notify delivers n to each sink in order.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	Log *zap.Logger
}

// Notify logs n at info level.
func (s LogSink) Notify(_ context.Context, n Notification) {
	s.Log.Info("notification",
		zap.String("id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
		zap.String("body", n.Body),
	)
}

// Recorder keeps every notification it receives. Tests and the CLI's
// dry-run paths use it.
type Recorder struct {
	Items []Notification
}

// Notify appends n.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.Items = append(r.Items, n)
}
