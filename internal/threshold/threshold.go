// Package threshold raises the escalating dwell-time alerts.
package threshold

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/messages"
	"github.com/hpungsan/will/internal/notify"
)

// Title is the heading of every dwell-time alert.
const Title = "Procrastination Alert"

// Counters is the slice of the counter store the notifier needs.
type Counters interface {
	Elapsed(host string) int64
	IsNotified(host string, minutes int) bool
	MarkNotified(host string, minutes int)
}

// Notifier fires at most one alert per call for a host.
type Notifier struct {
	counters Counters
	table    *messages.Table
	sink     notify.Sink
	clock    clock.Clock
	rng      *rand.Rand
	log      *zap.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRand fixes the random source used to pick messages.
func WithRand(r *rand.Rand) Option {
	return func(n *Notifier) { n.rng = r }
}

// New creates a notifier.
func New(counters Counters, table *messages.Table, sink notify.Sink, c clock.Clock, log *zap.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		counters: counters,
		table:    table,
		sink:     sink,
		clock:    c,
		log:      log,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewPCG(uint64(c.Now().UnixNano()), 0x5eed))
	}
	return n
}

// Check scans thresholds from highest to lowest and acts on the first one
// that host has crossed but not yet been alerted for. Every lower threshold
// is marked along with it, so a large jump never fires the lower alerts on
// later calls. It returns the threshold that fired, or 0.
func (n *Notifier) Check(ctx context.Context, host string) int {
	elapsed := n.counters.Elapsed(host)
	thresholds := n.table.Thresholds()

	for i := len(thresholds) - 1; i >= 0; i-- {
		minutes := thresholds[i]
		if elapsed < (time.Duration(minutes) * time.Minute).Milliseconds() {
			continue
		}
		if n.counters.IsNotified(host, minutes) {
			continue
		}

		body := n.pick(minutes)
		note := notify.New(notify.KindThreshold, Title, body, n.clock.Now())
		note.Priority = 2
		n.sink.Notify(ctx, note)

		for _, lower := range thresholds[:i+1] {
			n.counters.MarkNotified(host, lower)
		}
		n.log.Debug("threshold crossed",
			zap.String("host", host),
			zap.Int("minutes", minutes),
			zap.Int64("elapsed_ms", elapsed),
		)
		return minutes
	}
	return 0
}

func (n *Notifier) pick(minutes int) string {
	pool := n.table.Messages(minutes)
	if len(pool) == 0 {
		return ""
	}
	return pool[n.rng.IntN(len(pool))]
}
