// Package alarms persists one-shot reminders and fires them on time, also
// across daemon restarts.
//
// A Scheduler is owned by the event loop; its clock must deliver callbacks there.
package alarms

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/domains"
	"github.com/hpungsan/will/internal/errors"
	"github.com/hpungsan/will/internal/notify"
)

// NameGrantExpired labels the reminder created with a temporary access grant.
const NameGrantExpired = "fiveMinTimer"

// Scheduler arms persisted alarms on a clock.
type Scheduler struct {
	db    *sql.DB
	clock clock.Clock
	sink  notify.Sink
	log   *zap.Logger

	armed map[string]clock.Timer
}

// New creates a scheduler with nothing armed.
func New(database *sql.DB, c clock.Clock, sink notify.Sink, log *zap.Logger) *Scheduler {
	return &Scheduler{
		db:    database,
		clock: c,
		sink:  sink,
		log:   log,
		armed: make(map[string]clock.Timer),
	}
}

// Schedule stores a new alarm and arms it.
func (s *Scheduler) Schedule(ctx context.Context, name, url string, at time.Time) (*db.Alarm, error) {
	now := s.clock.Now()
	a := &db.Alarm{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0)).String(),
		Name:      name,
		URL:       url,
		FireAt:    at.UnixMilli(),
		CreatedAt: now.UnixMilli(),
	}
	if err := db.InsertAlarm(ctx, s.db, a); err != nil {
		return nil, err
	}
	s.arm(*a)
	return a, nil
}

// Restore arms every stored alarm. Alarms that came due while the daemon was
// down fire on the next loop turn.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	list, err := db.ListAlarms(ctx, s.db)
	if err != nil {
		return 0, err
	}
	for _, a := range list {
		if _, ok := s.armed[a.ID]; ok {
			continue
		}
		s.arm(a)
	}
	return len(list), nil
}

// Pending lists stored alarms, earliest first.
func (s *Scheduler) Pending(ctx context.Context) ([]db.Alarm, error) {
	return db.ListAlarms(ctx, s.db)
}

// Cancel disarms and deletes an alarm.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	if t, ok := s.armed[id]; ok {
		t.Stop()
		delete(s.armed, id)
	}
	return db.DeleteAlarm(ctx, s.db, id)
}

// Close disarms every alarm without deleting it.
func (s *Scheduler) Close() {
	for id, t := range s.armed {
		t.Stop()
		delete(s.armed, id)
	}
}

func (s *Scheduler) arm(a db.Alarm) {
	delay := time.UnixMilli(a.FireAt).Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.armed[a.ID] = s.clock.AfterFunc(delay, func() { s.fire(a) })
}

func (s *Scheduler) fire(a db.Alarm) {
	delete(s.armed, a.ID)
	ctx := context.Background()

	if err := db.DeleteAlarm(ctx, s.db, a.ID); err != nil && !errors.Is(err, errors.ErrNotFound) {
		s.log.Warn("delete fired alarm", zap.String("id", a.ID), zap.Error(err))
	}

	title, body := reminderText(a)
	s.sink.Notify(ctx, notify.New(notify.KindReminder, title, body, s.clock.Now()))
	s.log.Debug("alarm fired", zap.String("id", a.ID), zap.String("name", a.Name))
}

func reminderText(a db.Alarm) (title, body string) {
	if a.Name != NameGrantExpired {
		return "Reminder", a.Name
	}
	site := "this site"
	if host, ok := domains.Hostname(a.URL); ok {
		site = host
	}
	return "Time's Up!", fmt.Sprintf("Your extra time on %s is over. Back to focus!", site)
}
