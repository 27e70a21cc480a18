// Package timers holds the per-host distraction counters. The in-memory
// cache is authoritative; durable write-back is coalesced and asynchronous.
//
// A Store is owned by the event loop: every method except Wait and Flush
// must be called from the goroutine that runs the loop.
package timers

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/domains"
)

// Backend persists the serialized counter map.
type Backend interface {
	SiteTimers(ctx context.Context) ([]byte, bool, error)
	PutSiteTimers(ctx context.Context, blob []byte) error
}

// Entry is the streak counter of one host.
type Entry struct {
	ElapsedMs int64        `json:"elapsed_ms"`
	Notified  map[int]bool `json:"notified,omitempty"`
}

func (e Entry) clone() Entry {
	out := Entry{ElapsedMs: e.ElapsedMs}
	if len(e.Notified) > 0 {
		out.Notified = maps.Clone(e.Notified)
	}
	return out
}

// Store is the counter cache plus its debounced write-back.
type Store struct {
	backend  Backend
	clock    clock.Clock
	debounce time.Duration
	log      *zap.Logger

	cache   map[string]*Entry
	pending clock.Timer
	gen     uint64

	writeMu sync.Mutex
	written uint64
	writes  sync.WaitGroup
}

// New creates an empty store. Callbacks scheduled on c must run on the
// goroutine that owns the store.
func New(backend Backend, c clock.Clock, debounce time.Duration, log *zap.Logger) *Store {
	return &Store{
		backend:  backend,
		clock:    c,
		debounce: debounce,
		log:      log,
		cache:    make(map[string]*Entry),
	}
}

// Hydrate replaces the cache with the persisted snapshot. A missing blob
// leaves the cache empty. A corrupt blob leaves it empty and returns an error.
func (s *Store) Hydrate(ctx context.Context) error {
	s.cache = make(map[string]*Entry)

	blob, ok, err := s.backend.SiteTimers(ctx)
	if err != nil {
		return fmt.Errorf("read site timers: %w", err)
	}
	if !ok {
		return nil
	}
	cache, err := decode(blob)
	if err != nil {
		return fmt.Errorf("decode site timers: %w", err)
	}
	s.cache = cache
	return nil
}

// Snapshot returns a deep copy of every entry.
func (s *Store) Snapshot() map[string]Entry {
	out := make(map[string]Entry, len(s.cache))
	for host, e := range s.cache {
		out[host] = e.clone()
	}
	return out
}

// Hosts returns the tracked hosts in sorted order.
func (s *Store) Hosts() []string {
	hosts := make([]string, 0, len(s.cache))
	for host := range s.cache {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// Elapsed returns the accumulated streak duration for host in milliseconds.
func (s *Store) Elapsed(host string) int64 {
	if e, ok := s.cache[host]; ok {
		return e.ElapsedMs
	}
	return 0
}

// Increment adds deltaMs to host. Negative deltas are ignored.
func (s *Store) Increment(host string, deltaMs int64) {
	if deltaMs < 0 {
		return
	}
	s.entry(host).ElapsedMs += deltaMs
	s.scheduleFlush()
}

// ClearAll ends every streak: all durations and notification flags are dropped.
func (s *Store) ClearAll() {
	if len(s.cache) == 0 {
		return
	}
	clear(s.cache)
	s.scheduleFlush()
}

// MarkNotified records that the threshold has fired for host's current streak.
func (s *Store) MarkNotified(host string, minutes int) {
	e := s.entry(host)
	if e.Notified == nil {
		e.Notified = make(map[int]bool)
	}
	if e.Notified[minutes] {
		return
	}
	e.Notified[minutes] = true
	s.scheduleFlush()
}

// IsNotified reports whether the threshold already fired for host's streak.
func (s *Store) IsNotified(host string, minutes int) bool {
	e, ok := s.cache[host]
	return ok && e.Notified[minutes]
}

func (s *Store) entry(host string) *Entry {
	e, ok := s.cache[host]
	if !ok {
		e = &Entry{}
		s.cache[host] = e
	}
	return e
}

// scheduleFlush arms at most one write per debounce window.
func (s *Store) scheduleFlush() {
	if s.pending != nil {
		return
	}
	s.pending = s.clock.AfterFunc(s.debounce, s.flush)
}

// flush serializes the cache on the owning goroutine and hands the bytes to
// a writer goroutine so the next tick is never blocked on storage.
func (s *Store) flush() {
	s.pending = nil
	blob, gen, err := s.encodeNext()
	if err != nil {
		s.log.Error("encode site timers", zap.Error(err))
		return
	}
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		s.write(context.Background(), blob, gen)
	}()
}

// Flush cancels any pending write-back and persists the cache synchronously.
// It is used at shutdown, after the event loop has stopped.
func (s *Store) Flush(ctx context.Context) error {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	blob, gen, err := s.encodeNext()
	if err != nil {
		return err
	}
	s.writes.Wait()
	return s.write(ctx, blob, gen)
}

// Wait blocks until every in-flight asynchronous write has finished.
func (s *Store) Wait() {
	s.writes.Wait()
}

func (s *Store) encodeNext() ([]byte, uint64, error) {
	blob, err := json.Marshal(s.cache)
	if err != nil {
		return nil, 0, err
	}
	s.gen++
	return blob, s.gen, nil
}

// write persists blob unless a newer snapshot already landed. Failures are
// logged and not retried; the cache stays authoritative.
func (s *Store) write(ctx context.Context, blob []byte, gen uint64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if gen <= s.written {
		return nil
	}
	if err := s.backend.PutSiteTimers(ctx, blob); err != nil {
		s.log.Warn("persist site timers", zap.Error(err), zap.Uint64("generation", gen))
		return err
	}
	s.written = gen
	return nil
}

// legacyFlag matches the flat "<host>_notified_<minutes>" flag keys.
var legacyFlag = regexp.MustCompile(`^(.+)_notified_(\d+)$`)

// decode accepts the nested format written by this package and the older
// flat format where durations and flags share one namespace. Entries whose
// key normalizes to an empty host are dropped.
func decode(blob []byte) (map[string]*Entry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}

	cache := make(map[string]*Entry, len(raw))
	// Older snapshots stored raw hostnames; keys are normalized and merged
	// so every entry stays reachable by the tracker.
	get := func(host string) *Entry {
		host = domains.NormalizeHost(host)
		e, ok := cache[host]
		if !ok {
			e = &Entry{}
			cache[host] = e
		}
		return e
	}

	for key, value := range raw {
		if len(value) == 0 {
			continue
		}
		switch value[0] {
		case '{':
			var e Entry
			if err := json.Unmarshal(value, &e); err != nil {
				return nil, fmt.Errorf("entry %q: %w", key, err)
			}
			cur := get(key)
			cur.ElapsedMs += e.ElapsedMs
			for m, v := range e.Notified {
				if v {
					markFlag(cur, m)
				}
			}
		case 't', 'f':
			m := legacyFlag.FindStringSubmatch(key)
			if m == nil {
				continue
			}
			var set bool
			if err := json.Unmarshal(value, &set); err != nil {
				return nil, fmt.Errorf("flag %q: %w", key, err)
			}
			minutes, err := strconv.Atoi(m[2])
			if err != nil || !set {
				continue
			}
			markFlag(get(m[1]), minutes)
		case 'n':
			// null
		default:
			var ms float64
			if err := json.Unmarshal(value, &ms); err != nil {
				return nil, fmt.Errorf("duration %q: %w", key, err)
			}
			if ms > 0 {
				get(key).ElapsedMs += int64(ms)
			}
		}
	}
	delete(cache, "")
	return cache, nil
}

func markFlag(e *Entry, minutes int) {
	if e.Notified == nil {
		e.Notified = make(map[int]bool)
	}
	e.Notified[minutes] = true
}
