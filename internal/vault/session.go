package vault

import (
	"context"
	"sync"
	"time"

	"iiifvault/pkg/iiif"
)

// Session owns one vault timeline: the current snapshot, the undo/redo
// history and the wiring to logging, metrics, tracing, integrity rules and
// optional snapshot persistence. Reads take the shared lock; every mutation
// takes the exclusive lock, so a session is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	state    *State
	history  *History
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	engine   *RulesEngine
	store    SnapshotStore
	observer func(HistoryEntry)
	nowFn    func() time.Time
}

// Option customizes a Session at construction time.
type Option func(*Session)

// WithLogger wires a structured logger; *slog.Logger qualifies.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder wires an operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Session) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer wires an operation tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Session) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithHistoryLimit bounds the undo stack; non-positive selects the default.
func WithHistoryLimit(limit int) Option {
	return func(s *Session) {
		s.history = NewHistory(limit)
	}
}

// WithIntegrityRules evaluates the engine after every mutation and rejects
// snapshots with blocking violations. Intended for development and tests;
// production sessions normally run without it.
func WithIntegrityRules(engine *RulesEngine) Option {
	return func(s *Session) {
		s.engine = engine
	}
}

// WithSnapshotStore persists the snapshot after every committed mutation.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithChangeObserver registers a callback invoked after each committed
// action, undo and redo, in commit order while the session lock is held.
func WithChangeObserver(observer func(HistoryEntry)) Option {
	return func(s *Session) {
		s.observer = observer
	}
}

// withNow overrides the clock, for tests.
func withNow(now func() time.Time) Option {
	return func(s *Session) {
		s.nowFn = now
	}
}

// NewSession opens a session over an empty vault.
func NewSession(opts ...Option) *Session {
	s := &Session{
		state:   NewState(),
		history: NewHistory(0),
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSessionFromTree opens a session over the normalized form of root.
func NewSessionFromTree(root iiif.Entity, opts ...Option) (*Session, error) {
	s := NewSession(opts...)
	state, err := Normalize(root)
	if err != nil {
		return nil, err
	}
	s.state = state
	return s, nil
}

// OpenSession opens a session backed by a snapshot store, restoring the
// stored snapshot when one exists.
func OpenSession(ctx context.Context, store SnapshotStore, opts ...Option) (*Session, error) {
	s := NewSession(append(opts, WithSnapshotStore(store))...)
	snap, ok, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		state, err := ImportSnapshot(snap)
		if err != nil {
			return nil, err
		}
		s.state = state
	}
	return s, nil
}

// instrument runs op inside a trace span and records its outcome.
func (s *Session) instrument(ctx context.Context, operation string, op func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	start := s.nowFn()
	err := op(ctx)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, s.nowFn().Sub(start))
	return err
}

// commit installs next as the current snapshot: integrity rules first, then
// persistence, then history and the change observer. Any failure leaves the
// session on its previous snapshot.
func (s *Session) commit(ctx context.Context, action Action, next *State) error {
	if s.engine != nil {
		result, err := s.engine.Evaluate(ctx, next)
		if err != nil {
			return err
		}
		if result.HasBlocking() {
			for _, v := range result.Violations {
				s.logger.Error("integrity violation", "rule", v.Rule, "entity", v.EntityID, "message", v.Message)
			}
			return IntegrityError{Result: result}
		}
	}
	if s.store != nil {
		if err := s.store.Persist(ctx, ExportSnapshot(next)); err != nil {
			return err
		}
	}
	entry := HistoryEntry{Action: action, Before: s.state, After: next}
	s.history.Push(entry)
	s.state = next
	if s.observer != nil {
		s.observer(entry)
	}
	return nil
}

// Dispatch validates and applies one action, committing the resulting
// snapshot to the timeline. The session state is unchanged on error.
func (s *Session) Dispatch(ctx context.Context, action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrument(ctx, "dispatch", func(ctx context.Context) error {
		next, err := dispatch(s.state, action, s.logger)
		if err != nil {
			s.logger.Warn("action rejected", "action", string(action.Type), "target", action.TargetID, "error", err.Error())
			return err
		}
		if next == s.state {
			s.logger.Debug("action was a no-op", "action", string(action.Type), "target", action.TargetID)
			return nil
		}
		if err := s.commit(ctx, action, next); err != nil {
			return err
		}
		s.logger.Debug("action committed", "action", string(action.Type), "target", action.TargetID, "entities", next.Len())
		return nil
	})
}

// Undo steps the timeline back one committed action. It reports false when
// there is nothing to undo.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var undone bool
	err := s.instrument(ctx, "undo", func(ctx context.Context) error {
		before, ok := s.history.Undo()
		if !ok {
			return nil
		}
		if s.store != nil {
			if err := s.store.Persist(ctx, ExportSnapshot(before)); err != nil {
				s.history.Redo() // put the entry back
				return err
			}
		}
		s.state = before
		undone = true
		return nil
	})
	return undone, err
}

// Redo re-applies the most recently undone action. It reports false when
// there is nothing to redo.
func (s *Session) Redo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var redone bool
	err := s.instrument(ctx, "redo", func(ctx context.Context) error {
		after, ok := s.history.Redo()
		if !ok {
			return nil
		}
		if s.store != nil {
			if err := s.store.Persist(ctx, ExportSnapshot(after)); err != nil {
				s.history.Undo()
				return err
			}
		}
		s.state = after
		redone = true
		return nil
	})
	return redone, err
}

// CanUndo reports whether Undo would step back.
func (s *Session) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would step forward.
func (s *Session) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanRedo()
}

// State returns the current snapshot. Snapshots are immutable, so the caller
// may hold and read it without further locking.
func (s *Session) State() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// GetEntity returns a detached copy of the entity, nil when absent.
func (s *Session) GetEntity(id string) iiif.Entity {
	return s.State().GetEntity(id)
}

// ExportTree denormalizes the current snapshot back into a tree.
func (s *Session) ExportTree() (iiif.Entity, error) {
	return Denormalize(s.State())
}

// CheckIntegrity evaluates the structural rules against the current snapshot.
func (s *Session) CheckIntegrity(ctx context.Context) (Result, error) {
	engine := s.engine
	if engine == nil {
		engine = DefaultRulesEngine()
	}
	return engine.Evaluate(ctx, s.State())
}

// Trash and restore are session-level operations, not dispatchable actions;
// these tags only label their history entries for observers.
const (
	actionTrashEntity   ActionType = "TRASH_ENTITY"
	actionRestoreEntity ActionType = "RESTORE_ENTITY"
)

// Trash soft-deletes an entity, keeping a restorable record.
func (s *Session) Trash(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrument(ctx, "trash", func(ctx context.Context) error {
		next, err := TrashEntity(s.state, id, s.nowFn())
		if err != nil {
			return err
		}
		return s.commit(ctx, Action{Type: actionTrashEntity, TargetID: id}, next)
	})
}

// Restore returns a trashed entity to the live graph.
func (s *Session) Restore(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrument(ctx, "restore", func(ctx context.Context) error {
		next, err := RestoreEntity(s.state, id)
		if err != nil {
			return err
		}
		return s.commit(ctx, Action{Type: actionRestoreEntity, TargetID: id}, next)
	})
}

// Close releases the snapshot store, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
