// Package cache memoizes server-owned collections keyed by entity kind and
// scope, coalescing concurrent fetches and honouring per-kind freshness windows.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"chat-client/internal/observability"
)

// State is the lifecycle position of a cache entry.
type State string

const (
	StateAbsent  State = "absent"
	StateLoading State = "loading"
	StateFresh   State = "fresh"
	StateStale   State = "stale"
	StateError   State = "error"
)

// Entry is a point-in-time copy of a cache entry.
type Entry struct {
	Key       Key
	Value     any
	FetchedAt time.Time
	State     State
}

// Fetcher loads the value of one key from the backend.
type Fetcher func(ctx context.Context) (any, error)

// InvalidationFunc is called after a key has been invalidated.
type InvalidationFunc func(Key)

// ReadOutcome describes how a read was served.
type ReadOutcome string

const (
	OutcomeHit       ReadOutcome = "hit"
	OutcomeMiss      ReadOutcome = "miss"
	OutcomeCoalesced ReadOutcome = "coalesced"
	// OutcomeWait means the read is waiting for a fetch that was started
	// before an invalidation and will fetch again afterwards.
	OutcomeWait ReadOutcome = "wait"
)

type flight struct {
	// id keys the singleflight call so a new flight never joins one that
	// already completed the entry.
	id   uint64
	gen  uint64
	done chan struct{}
}

type entry struct {
	value     any
	fetchedAt time.Time
	state     State
	// gen changes on every invalidation; a flight started under an older
	// generation cannot make the entry fresh.
	gen    uint64
	flight *flight
}

// Cache is the in-memory entity cache. The zero value is not usable; use New.
type Cache struct {
	policy Policy
	now    func() time.Time
	logger logrus.FieldLogger
	tracer trace.Tracer
	hook   func(Key, ReadOutcome)
	group  singleflight.Group

	mu        sync.Mutex
	entries   map[Key]*entry
	seq       uint64
	listeners []InvalidationFunc
}

// Option customizes a Cache.
type Option func(*Cache)

// WithPolicy sets the freshness policy.
func WithPolicy(policy Policy) Option {
	return func(c *Cache) { c.policy = policy }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithReadHook registers fn to observe every read before it blocks.
func WithReadHook(fn func(Key, ReadOutcome)) Option {
	return func(c *Cache) { c.hook = fn }
}

// New creates an empty cache with DefaultPolicy(DefaultChatsWindow).
func New(opts ...Option) *Cache {
	c := &Cache{
		policy:  DefaultPolicy(DefaultChatsWindow),
		now:     time.Now,
		logger:  logrus.StandardLogger(),
		tracer:  otel.Tracer("chat-client/cache"),
		entries: make(map[Key]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the value for key, calling fetch only when the entry is not
// fresh. Concurrent readers share a single in-flight fetch. If ctx ends first
// the reader gets ctx.Err() while the fetch still completes for later readers.
func (c *Cache) Read(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	for {
		c.mu.Lock()
		e := c.entryLocked(key)

		if c.freshLocked(key, e) {
			value := e.value
			c.mu.Unlock()
			c.observe(key, OutcomeHit)
			return value, nil
		}

		if f := e.flight; f != nil && f.gen != e.gen {
			// Invalidated while in flight: that result can't serve us. Wait
			// for it to land, then fetch again.
			c.mu.Unlock()
			c.observe(key, OutcomeWait)
			select {
			case <-f.done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		outcome := OutcomeCoalesced
		if e.flight == nil {
			e.flight = &flight{id: c.nextGenLocked(), gen: e.gen, done: make(chan struct{})}
			e.state = StateLoading
			outcome = OutcomeMiss
		}
		f := e.flight
		fetchCtx := context.WithoutCancel(ctx)
		ch := c.group.DoChan(flightKey(key, f.id), func() (any, error) {
			return c.run(fetchCtx, key, f, fetch)
		})
		c.mu.Unlock()
		c.observe(key, outcome)

		select {
		case res := <-ch:
			return res.Val, res.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Invalidate marks key stale so the next read refetches, whatever the
// entry's current state. A fetch already in flight still stores its result,
// but the entry stays stale afterwards.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.state = StateStale
		e.gen = c.nextGenLocked()
	}
	listeners := append([]InvalidationFunc(nil), c.listeners...)
	c.mu.Unlock()

	observability.IncCacheInvalidation(string(key.Kind))
	c.logger.WithField("key", key.String()).Debug("cache key invalidated")
	for _, fn := range listeners {
		fn(key)
	}
}

// Subscribe registers fn to be called after every invalidation.
func (c *Cache) Subscribe(fn InvalidationFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Snapshot returns a copy of the entry for key. Fresh entries whose window
// has passed are reported as stale.
func (c *Cache) Snapshot(key Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{Key: key, State: StateAbsent}
	}
	state := e.state
	if state == StateFresh && !c.freshLocked(key, e) {
		state = StateStale
	}
	return Entry{Key: key, Value: e.value, FetchedAt: e.fetchedAt, State: state}
}

// Purge drops every entry. Fetches in flight complete but are not stored.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[Key]*entry)
	c.mu.Unlock()
	c.logger.Debug("cache purged")
}

func (c *Cache) observe(key Key, outcome ReadOutcome) {
	observability.ObserveCacheRead(string(key.Kind), string(outcome))
	if c.hook != nil {
		c.hook(key, outcome)
	}
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{state: StateAbsent, gen: c.nextGenLocked()}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) nextGenLocked() uint64 {
	c.seq++
	return c.seq
}

func (c *Cache) freshLocked(key Key, e *entry) bool {
	if e.state != StateFresh {
		return false
	}
	window := c.policy(key.Kind)
	return window > 0 && c.now().Sub(e.fetchedAt) < window
}

func (c *Cache) run(ctx context.Context, key Key, f *flight, fetch Fetcher) (any, error) {
	ctx, span := c.tracer.Start(ctx, "cache.fetch", trace.WithAttributes(attribute.String("cache.key", key.String())))
	defer span.End()

	value, err := invoke(ctx, fetch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.IncCacheFetchError(string(key.Kind))
		c.logger.WithError(err).WithField("key", key.String()).Warn("cache fetch failed")
	}
	c.complete(key, f, value, err)
	return value, err
}

func (c *Cache) complete(key Key, f *flight, value any, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.flight == f {
		e.flight = nil
		current := e.gen == f.gen
		switch {
		case err == nil:
			e.value = value
			e.fetchedAt = c.now()
			e.state = StateFresh
			if !current {
				e.state = StateStale
			}
		case current:
			e.state = StateError
		default:
			e.state = StateStale
		}
	}
	c.mu.Unlock()
	close(f.done)
}

func invoke(ctx context.Context, fetch Fetcher) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value, err = nil, errors.Errorf("cache fetch panicked: %v", rec)
		}
	}()
	return fetch(ctx)
}

func flightKey(key Key, id uint64) string {
	return key.String() + "#" + strconv.FormatUint(id, 10)
}
