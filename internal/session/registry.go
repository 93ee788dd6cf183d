// Package session keeps the transient, in-memory submission state of each
// client. Nothing here is persisted.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aimint/internal/domain"
	"aimint/internal/infra"
	"aimint/internal/pipeline"
)

// Runner executes one submit cycle.
type Runner interface {
	Run(ctx context.Context, form pipeline.Form, observe pipeline.Observer) (pipeline.State, error)
}

// Session is a copy of one client's submission state.
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	State     pipeline.State
}

type entry struct {
	session Session
	running bool
	// cycle numbers submits so a finished run cannot overwrite a newer one.
	cycle uint64
}

// Options configures a Registry.
type Options struct {
	Runner Runner

	// TTL bounds how long an idle session survives without activity.
	TTL time.Duration

	// Ready is consulted before a cycle starts; a non-nil error refuses it.
	Ready func() error

	// BaseContext is the parent of every cycle. Defaults to context.Background.
	BaseContext context.Context
	Logger      *infra.Logger
}

// Registry holds sessions keyed by id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	runner   Runner
	ttl      time.Duration
	ready    func() error
	base     context.Context
	logger   zerolog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewRegistry builds an empty registry.
func NewRegistry(opts Options) *Registry {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{
		sessions: make(map[string]*entry),
		runner:   opts.Runner,
		ttl:      ttl,
		ready:    opts.Ready,
		base:     base,
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a fresh idle session.
func (r *Registry) Create() Session {
	now := r.now()
	s := Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		State:     pipeline.Idle(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = &entry{session: s}
	r.mu.Unlock()
	return s
}

// Get returns a snapshot of the session or domain.ErrNotFound.
func (r *Registry) Get(id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return Session{}, domain.ErrNotFound
	}
	return e.session, nil
}

// Submit validates form and starts a cycle in the background. It returns
// domain.ErrInvalidPrompt without touching the runner when a field is empty,
// and domain.ErrBusy while a previous cycle is still running.
func (r *Registry) Submit(id string, form pipeline.Form) (Session, error) {
	form = form.Normalize()

	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return Session{}, domain.ErrNotFound
	}
	if e.running {
		r.mu.Unlock()
		return e.session, domain.ErrBusy
	}
	if err := form.Validate(); err != nil {
		r.mu.Unlock()
		return e.session, err
	}
	if r.ready != nil {
		if err := r.ready(); err != nil {
			r.mu.Unlock()
			return e.session, err
		}
	}
	e.running = true
	e.cycle++
	cycle := e.cycle
	e.session.State = pipeline.State{Stage: pipeline.StageValidating, Busy: true, Form: form}
	e.session.UpdatedAt = r.now()
	snapshot := e.session
	r.mu.Unlock()

	logger := r.logger.With().Str("session_id", id).Logger()
	ctx := logger.WithContext(r.base)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		final, err := r.runner.Run(ctx, form, func(s pipeline.State) { r.record(id, cycle, s, false) })
		if err != nil {
			logger.Warn().Err(err).Msg("session: submit failed")
		}
		r.record(id, cycle, final, true)
	}()

	return snapshot, nil
}

// record stores an observed state of the given cycle. The terminal idle
// snapshot releases the session in the same step, so a client that reads
// busy=false can submit again at once.
func (r *Registry) record(id string, cycle uint64, s pipeline.State, done bool) {
	// The placeholder stored by Submit already covers validation.
	if !done && s.Stage == pipeline.StageValidating {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.cycle != cycle {
		return
	}
	e.session.State = s
	e.session.UpdatedAt = r.now()
	if done || (s.Stage == pipeline.StageIdle && !s.Busy) {
		e.running = false
	}
}

// Prune drops idle sessions whose last activity is older than the TTL and
// reports how many were removed.
func (r *Registry) Prune() int {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.sessions {
		if e.running || e.session.UpdatedAt.After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	return removed
}

// Janitor prunes on every tick until ctx is done.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(); n > 0 {
				r.logger.Debug().Int("removed", n).Msg("session: pruned idle sessions")
			}
		}
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Wait blocks until every running cycle has finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}
