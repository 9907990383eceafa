package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/rs/zerolog"
)

// ErrStopped is returned when submitting to a feed that is no longer running
var ErrStopped = errors.New("feed stopped")

// Source names used in logs and metrics
const (
	SourceSessions    = "sessions"
	SourceAgents      = "agents"
	SourceDepartments = "departments"
)

// Subscriber receives every change after it has been applied to the stores.
// Callbacks run on the feed goroutine, one at a time.
type Subscriber interface {
	OnSession(c types.SessionChange)
	OnAgent(c types.AgentChange)
	OnDepartment(c types.DepartmentChange)
}

// SessionStore is the session collection the feed keeps current
type SessionStore interface {
	Apply(c types.SessionChange) types.SessionChange
	Sessions() []types.Session
}

// AgentStore is the agent collection the feed keeps current
type AgentStore interface {
	Apply(c types.AgentChange) types.AgentChange
	Agents() []types.Agent
}

// DepartmentStore is the department collection the feed keeps current
type DepartmentStore interface {
	Apply(c types.DepartmentChange) types.DepartmentChange
	Departments() []types.Department
}

// Stores bundles the three collections
type Stores struct {
	Sessions    SessionStore
	Agents      AgentStore
	Departments DepartmentStore
}

// Stats describes the feed for the stats endpoint
type Stats struct {
	Processed   int64     `json:"processed"`
	Failed      int64     `json:"failed"`
	Depth       int       `json:"depth"`
	Subscribers int       `json:"subscribers"`
	LastEvent   time.Time `json:"last_event"`
}

// Feed serializes every change and every subscriber callback onto a single
// goroutine. Stores are updated before subscribers are notified, so a
// subscriber always reads a snapshot that includes the change it is handling.
type Feed struct {
	stores Stores
	events chan func()
	done   chan struct{}
	once   sync.Once

	// owned by the Run goroutine
	subs  map[*Subscription]Subscriber
	nsubs atomic.Int32

	processed atomic.Int64
	failed    atomic.Int64
	lastEvent atomic.Int64
	logger    zerolog.Logger
}

// Subscription is a registered subscriber
type Subscription struct {
	feed *Feed
}

// NewFeed creates a feed with room for buffer pending events
func NewFeed(stores Stores, buffer int, logger zerolog.Logger) *Feed {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Feed{
		stores: stores,
		events: make(chan func(), buffer),
		done:   make(chan struct{}),
		subs:   make(map[*Subscription]Subscriber),
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

// Run processes events until ctx is cancelled. Events still queued when ctx
// ends are dropped.
func (f *Feed) Run(ctx context.Context) error {
	defer f.once.Do(func() { close(f.done) })

	f.logger.Info().Int("buffer", cap(f.events)).Msg("feed started")

	m := metrics.Get()
	for {
		select {
		case <-ctx.Done():
			f.logger.Info().
				Int64("processed", f.processed.Load()).
				Int("dropped", len(f.events)).
				Msg("feed stopped")
			return nil

		case fn := <-f.events:
			start := time.Now()
			f.dispatch(fn)
			m.ObserveDispatch(time.Since(start))
			m.SetFeedDepth(len(f.events))
		}
	}
}

// dispatch runs one event, recovering subscriber panics so the loop survives
func (f *Feed) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.failed.Add(1)
			f.logger.Error().Interface("panic", r).Msg("feed event panicked")
		}
	}()
	fn()
	f.processed.Add(1)
	f.lastEvent.Store(time.Now().UnixNano())
}

// Submit queues fn to run on the feed goroutine. It blocks while the queue is
// full and fails once the feed has stopped.
func (f *Feed) Submit(fn func()) error {
	select {
	case <-f.done:
		return ErrStopped
	default:
	}

	select {
	case f.events <- fn:
		return nil
	case <-f.done:
		return ErrStopped
	}
}

// PublishSession applies a session change and notifies subscribers
func (f *Feed) PublishSession(c types.SessionChange) error {
	metrics.Get().RecordChange(SourceSessions, c.Kind)
	return f.Submit(func() {
		delivered := f.stores.Sessions.Apply(c)
		for _, sub := range f.subs {
			sub.OnSession(delivered)
		}
	})
}

// PublishAgent applies an agent change and notifies subscribers
func (f *Feed) PublishAgent(c types.AgentChange) error {
	metrics.Get().RecordChange(SourceAgents, c.Kind)
	return f.Submit(func() {
		delivered := f.stores.Agents.Apply(c)
		for _, sub := range f.subs {
			sub.OnAgent(delivered)
		}
	})
}

// PublishDepartment applies a department change and notifies subscribers
func (f *Feed) PublishDepartment(c types.DepartmentChange) error {
	metrics.Get().RecordChange(SourceDepartments, c.Kind)
	return f.Submit(func() {
		delivered := f.stores.Departments.Apply(c)
		for _, sub := range f.subs {
			sub.OnDepartment(delivered)
		}
	})
}

// Subscribe registers sub. The records already in the stores are replayed to
// it as additions, departments first, before it sees any later change.
func (f *Feed) Subscribe(sub Subscriber) (*Subscription, error) {
	s := &Subscription{feed: f}
	err := f.Submit(func() {
		f.subs[s] = sub
		f.nsubs.Store(int32(len(f.subs)))
		f.replay(sub)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (f *Feed) replay(sub Subscriber) {
	depts := f.stores.Departments.Departments()
	for _, d := range depts {
		sub.OnDepartment(types.DepartmentChange{Kind: types.ChangeAdded, ID: d.ID, Fields: types.DepartmentFieldsOf(d)})
	}
	agents := f.stores.Agents.Agents()
	for _, a := range agents {
		sub.OnAgent(types.AgentChange{Kind: types.ChangeAdded, ID: a.ID, Fields: types.AgentFieldsOf(a)})
	}
	sessions := f.stores.Sessions.Sessions()
	for _, s := range sessions {
		sub.OnSession(types.SessionChange{Kind: types.ChangeAdded, ID: s.ID, Fields: types.SessionFieldsOf(s)})
	}

	f.logger.Debug().
		Int("departments", len(depts)).
		Int("agents", len(agents)).
		Int("sessions", len(sessions)).
		Msg("replayed snapshot to subscriber")
}

// Close unregisters the subscription. Callbacks already queued may still run.
func (s *Subscription) Close() error {
	return s.feed.Submit(func() {
		delete(s.feed.subs, s)
		s.feed.nsubs.Store(int32(len(s.feed.subs)))
	})
}

// Stats returns a point in time view of the feed
func (f *Feed) Stats() Stats {
	stats := Stats{
		Processed:   f.processed.Load(),
		Failed:      f.failed.Load(),
		Depth:       len(f.events),
		Subscribers: int(f.nsubs.Load()),
	}
	if ns := f.lastEvent.Load(); ns > 0 {
		stats.LastEvent = time.Unix(0, ns)
	}
	return stats
}
