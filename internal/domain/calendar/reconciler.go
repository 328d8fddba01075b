package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	bannerUnavailable = "Calendar service is unavailable. Showing sample and unsynced events."
	bannerLocalOnly   = "Some events are saved on this device only and have not synced yet."

	maxCachedViewEvents = 5000
)

// ReconcilerConfig controls degradation behaviour.
type ReconcilerConfig struct {
	// FallbackAllowed enables placeholder events and local-only writes when
	// the repository is empty or unreachable.
	FallbackAllowed bool
	// DemoMode skips the repository for writes entirely.
	DemoMode bool
}

// ListRequest selects a merged event list.
type ListRequest struct {
	Scope Scope
	Range Range
}

// ListResult is the merged event list for a range.
type ListResult struct {
	Events   []Event `json:"events"`
	Degraded bool    `json:"degraded"`
	Mocked   bool    `json:"mocked"`
	Banner   string  `json:"banner,omitempty"`
}

type pendingWrite struct {
	businessID string
	eventID    string
	mutation   *Mutation
	patch    Patch
	deleted  bool
}

// Reconciler merges repository events, placeholder events, overrides and the
// local creation log. It is the only writer of SessionState.
type Reconciler struct {
	repo   Repository
	store  SessionStore
	synth  *Synthesizer
	cfg    ReconcilerConfig
	logger *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]*pendingWrite

	viewsMu sync.RWMutex
	views   map[string]map[string]Event
}

func NewReconciler(repo Repository, store SessionStore, synth *Synthesizer, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if synth == nil {
		synth = NewSynthesizer(nil, nil)
	}
	return &Reconciler{
		repo:    repo,
		store:   store,
		synth:   synth,
		cfg:     cfg,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
		pending: make(map[string]*pendingWrite),
		views:   make(map[string]map[string]Event),
	}
}

// List returns the merged, deduplicated and sorted events for a range.
// Repository failures degrade to placeholder and local events when fallback
// is allowed.
func (r *Reconciler) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if err := req.Scope.Validate(); err != nil {
		return nil, err
	}
	result := &ListResult{}

	state, err := r.loadState(ctx, req.Scope)
	if err != nil {
		r.logger.Warn("Failed to load calendar session state",
			zap.String("scope", req.Scope.Key()), zap.Error(err))
		state = NewSessionState()
		result.Degraded = true
	}

	persisted, err := r.repo.ListEvents(ctx, ListQuery{
		BusinessID: req.Scope.BusinessID,
		From:       req.Range.From,
		To:         req.Range.To,
		Module:     req.Scope.Module,
	})
	if err != nil {
		if !errors.Is(err, ErrNetwork) {
			err = NetworkError("list events", err)
		}
		if !r.cfg.FallbackAllowed {
			return nil, err
		}
		r.logger.Warn("Event repository unavailable, degrading to local data",
			zap.String("scope", req.Scope.Key()), zap.Error(err))
		result.Degraded = true
		result.Banner = bannerUnavailable
		fallbackTotal.WithLabelValues("unavailable").Inc()
		persisted = nil
	}

	base := make([]Event, 0, len(persisted))
	for _, ev := range persisted {
		ev.Source = SourcePersisted
		base = append(base, ev)
	}
	if len(base) == 0 && r.cfg.FallbackAllowed {
		base = r.synth.Synthesize(SynthesisRequest{
			Range:      req.Range,
			BusinessID: req.Scope.BusinessID,
			Module:     req.Scope.Module,
		})
		result.Mocked = true
		if err == nil {
			fallbackTotal.WithLabelValues("empty").Inc()
		}
	}

	result.Events = merge(req.Range, base, state, r.pendingPatches(req.Scope.BusinessID))
	if result.Banner == "" && len(state.LocalLog) > 0 {
		for _, ev := range result.Events {
			if ev.Source == SourceLocalPending {
				result.Banner = bannerLocalOnly
				break
			}
		}
	}

	r.pruneOverrides(ctx, req.Scope, persisted, state)
	r.remember(req.Scope.BusinessID, result.Events)
	return result, nil
}

// merge combines a base list with session state. Persisted events take
// pending optimistic patches and win over any session entry with the same id;
// every other event takes its override. Local log entries are appended and
// replace placeholder events with the same id.
func merge(rng Range, base []Event, state *SessionState, pending map[string]pendingWrite) []Event {
	if state == nil {
		state = NewSessionState()
	}

	merged := make([]Event, 0, len(base)+len(state.LocalLog))
	persisted := make(map[string]bool)
	for _, ev := range base {
		if ev.Source == SourcePersisted {
			persisted[ev.ID] = true
			if p, ok := pending[ev.ID]; ok {
				if p.deleted {
					continue
				}
				ev = p.patch.Apply(ev)
			}
			merged = append(merged, ev)
			continue
		}
		if state.IsDismissed(ev.ID) {
			continue
		}
		merged = append(merged, applyOverride(ev, state.Overrides))
	}

	for _, ev := range state.LocalLog {
		if persisted[ev.ID] || state.IsDismissed(ev.ID) {
			continue
		}
		if ev.Source == "" {
			ev.Source = SourceOf(ev.ID)
		}
		merged = append(merged, applyOverride(ev, state.Overrides))
	}

	index := make(map[string]int, len(merged))
	deduped := make([]Event, 0, len(merged))
	for _, ev := range merged {
		if i, ok := index[ev.ID]; ok {
			deduped[i] = ev
			continue
		}
		index[ev.ID] = len(deduped)
		deduped = append(deduped, ev)
	}

	result := deduped[:0]
	for _, ev := range deduped {
		if inRange(ev, rng) {
			result = append(result, ev)
		}
	}
	sortEvents(result)
	return result
}

// inRange keeps zero-length events that sit inside the range.
func inRange(ev Event, rng Range) bool {
	if ev.Start.Equal(ev.End) {
		return rng.Contains(ev.Start)
	}
	return ev.Overlaps(rng.From, rng.To)
}

func applyOverride(ev Event, overrides map[string]Override) Event {
	if o, ok := overrides[ev.ID]; ok {
		ev.Start, ev.End = o.Start, o.End
		if ev.AllDay {
			ev.Start, ev.End = normalizeAllDay(ev.Start, ev.End)
		}
	}
	return ev
}

// Create stores a new event. When the repository fails and fallback is
// allowed, the event is kept in the local log with a local id.
func (r *Reconciler) Create(ctx context.Context, draft Draft) (*Event, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	scope := Scope{BusinessID: draft.BusinessID, Module: draft.Module}

	if !r.cfg.DemoMode {
		created, err := r.repo.CreateEvent(ctx, draft)
		if err == nil {
			created.Source = SourcePersisted
			r.remember(scope.BusinessID, []Event{*created})
			observeMutation(&Mutation{Kind: MutationCreate, Source: SourcePersisted, State: MutationConfirmed})
			return created, nil
		}
		if !errors.Is(err, ErrNetwork) {
			var calErr *Error
			if errors.As(err, &calErr) {
				return nil, err
			}
			err = NetworkError("create event", err)
		}
		if !r.cfg.FallbackAllowed {
			observeMutation(&Mutation{Kind: MutationCreate, Source: SourcePersisted, State: MutationRolledBack})
			return nil, err
		}
		r.logger.Warn("Create failed, keeping event locally",
			zap.String("scope", scope.Key()), zap.Error(err))
	} else if !r.cfg.FallbackAllowed {
		return nil, NetworkError("create event", errors.New("repository disabled in demo mode"))
	}

	event := draft.Event(NewLocalID(), SourceLocalPending)
	_, err := r.write(ctx, scope, func(state *SessionState) error {
		state.LocalLog = append(state.LocalLog, event)
		state.Overrides[event.ID] = Override{Start: event.Start, End: event.End}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.remember(scope.BusinessID, []Event{event})
	observeMutation(&Mutation{Kind: MutationCreate, Source: SourceLocalPending, State: MutationConfirmed})
	return &event, nil
}

// Update applies a partial change. Persisted events are updated optimistically;
// placeholder and local events are changed in session state only. A repository
// failure rolls the mutation back and is reported on the returned Mutation.
func (r *Reconciler) Update(ctx context.Context, scope Scope, id string, patch Patch) (*Mutation, error) {
	return r.update(ctx, scope, id, patch, MutationUpdate)
}

// Reschedule moves an event to a new start/end.
func (r *Reconciler) Reschedule(ctx context.Context, scope Scope, id string, start, end time.Time) (*Mutation, error) {
	if end.Before(start) {
		return nil, ErrInvalidTimeRange
	}
	return r.update(ctx, scope, id, Patch{Start: &start, End: &end}, MutationReschedule)
}

func (r *Reconciler) update(ctx context.Context, scope Scope, id string, patch Patch, kind MutationKind) (*Mutation, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, NewValidationError("event id is required")
	}
	if patch.Title != nil && *patch.Title == "" {
		return nil, NewValidationError("title must not be empty")
	}
	if patch.Start != nil && patch.End != nil && patch.End.Before(*patch.Start) {
		return nil, ErrInvalidTimeRange
	}

	source := SourceOf(id)
	if source == SourcePersisted {
		return r.updatePersisted(ctx, scope, id, patch, kind)
	}

	scope = r.writeScope(ctx, scope, id)
	if scope.Module == "" {
		return nil, ErrNotFound
	}
	m := newMutation(kind, id, source)
	var result Event
	_, err := r.write(ctx, scope, func(state *SessionState) error {
		current, ok := r.lookup(scope.BusinessID, id, state)
		if !ok {
			// placeholders can be synthesized again, so a bare move is kept
			// as an override; local entries only live in the log
			if source == SourceMock && patch.TimeOnly() && patch.Start != nil && patch.End != nil {
				state.Overrides[id] = Override{Start: *patch.Start, End: *patch.End}
				result = Event{ID: id, BusinessID: scope.BusinessID, Start: *patch.Start, End: *patch.End, Source: source}
				return nil
			}
			return ErrNotFound
		}

		next := patch.Apply(current)
		if patch.Start != nil && patch.End == nil {
			next.End = next.Start.Add(current.Duration())
			if next.AllDay {
				next.Start, next.End = normalizeAllDay(next.Start, next.End)
			}
		}
		if next.End.Before(next.Start) {
			return ErrInvalidTimeRange
		}

		if patch.HasTime() {
			state.Overrides[id] = Override{Start: next.Start, End: next.End}
		}
		if !patch.TimeOnly() {
			timeless := patch
			timeless.Start, timeless.End = nil, nil
			i := state.LocalIndex(id)
			if i >= 0 {
				state.LocalLog[i] = timeless.Apply(state.LocalLog[i])
			} else {
				// copy-on-write: the placeholder keeps its id in the local log
				entry := timeless.Apply(current)
				entry.Source = source
				state.LocalLog = append(state.LocalLog, entry)
			}
		}
		result = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		_ = m.RollBack(err)
		observeMutation(m)
		r.logger.Error("Failed to save calendar session state",
			zap.String("scope", scope.Key()), zap.String("event_id", id), zap.Error(err))
		return m, err
	}

	_ = m.Confirm()
	m.Event = &result
	r.remember(scope.BusinessID, []Event{result})
	observeMutation(m)
	return m, nil
}

func (r *Reconciler) updatePersisted(ctx context.Context, scope Scope, id string, patch Patch, kind MutationKind) (*Mutation, error) {
	m := newMutation(kind, id, SourcePersisted)

	if current, ok := r.cached(scope.BusinessID, id); ok {
		next := patch.Apply(current)
		if patch.Start != nil && patch.End == nil {
			next.End = next.Start.Add(current.Duration())
			patch.End = &next.End
		}
		if next.End.Before(next.Start) {
			return nil, ErrInvalidTimeRange
		}
		m.Event = &next
	}

	r.setPending(&pendingWrite{businessID: scope.BusinessID, eventID: id, mutation: m, patch: patch})
	defer r.clearPending(scope.BusinessID, id, m)

	if err := r.repo.UpdateEvent(ctx, scope.BusinessID, id, patch); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			_ = m.RollBack(err)
			observeMutation(m)
			return m, err
		}
		if !errors.Is(err, ErrNetwork) {
			err = NetworkError("update event", err)
		}
		_ = m.RollBack(err)
		observeMutation(m)
		r.logger.Warn("Optimistic update rolled back",
			zap.String("event_id", id), zap.String("mutation_id", m.ID), zap.Error(err))
		return m, nil
	}

	_ = m.Confirm()
	if m.Event != nil {
		r.remember(scope.BusinessID, []Event{*m.Event})
	}
	observeMutation(m)
	return m, nil
}

// Delete removes an event. Placeholder ids are dismissed so they are not
// synthesized again.
func (r *Reconciler) Delete(ctx context.Context, scope Scope, id string) (*Mutation, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, NewValidationError("event id is required")
	}

	source := SourceOf(id)
	m := newMutation(MutationDelete, id, source)

	if source == SourcePersisted {
		r.setPending(&pendingWrite{businessID: scope.BusinessID, eventID: id, mutation: m, deleted: true})
		defer r.clearPending(scope.BusinessID, id, m)

		if err := r.repo.DeleteEvent(ctx, scope.BusinessID, id); err != nil {
			_ = m.RollBack(err)
			observeMutation(m)
			if errors.Is(err, ErrNotFound) {
				return m, err
			}
			r.logger.Warn("Optimistic delete rolled back",
				zap.String("event_id", id), zap.String("mutation_id", m.ID), zap.Error(err))
			return m, nil
		}
		_ = m.Confirm()
		r.forget(scope.BusinessID, id)
		observeMutation(m)
		return m, nil
	}

	scope = r.writeScope(ctx, scope, id)
	if scope.Module == "" {
		return nil, ErrNotFound
	}
	_, err := r.write(ctx, scope, func(state *SessionState) error {
		switch source {
		case SourceMock:
			state.removeLocal(id)
			if !state.IsDismissed(id) {
				state.Dismissed = append(state.Dismissed, id)
			}
		case SourceLocalPending:
			if !state.removeLocal(id) {
				return ErrNotFound
			}
		}
		delete(state.Overrides, id)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		_ = m.RollBack(err)
		observeMutation(m)
		return m, err
	}

	_ = m.Confirm()
	r.forget(scope.BusinessID, id)
	observeMutation(m)
	return m, nil
}

// Lookup returns the last merged version of an event seen for a business.
func (r *Reconciler) Lookup(ctx context.Context, scope Scope, id string) (Event, bool) {
	if ev, ok := r.cached(scope.BusinessID, id); ok {
		return ev, true
	}
	state, err := r.loadState(ctx, scope)
	if err != nil {
		return Event{}, false
	}
	return r.lookup(scope.BusinessID, id, state)
}

// write runs a read-modify-write of session state under the scope lock. fn
// mutates a deep copy; nothing is saved if fn or the save fails.
func (r *Reconciler) write(ctx context.Context, scope Scope, fn func(*SessionState) error) (*SessionState, error) {
	lock := r.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.store.Load(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, scope, next); err != nil {
		return nil, fmt.Errorf("failed to save session state: %w", err)
	}
	return next, nil
}

// pruneOverrides drops overrides and local entries shadowed by persisted records.
func (r *Reconciler) pruneOverrides(ctx context.Context, scope Scope, persisted []Event, state *SessionState) {
	stale := make(map[Scope][]string)
	for _, ev := range persisted {
		_, overridden := state.Overrides[ev.ID]
		if overridden || state.LocalIndex(ev.ID) >= 0 {
			target := scope
			if target.Module == "" {
				target.Module = ev.Module
			}
			stale[target] = append(stale[target], ev.ID)
		}
	}

	for target, ids := range stale {
		_, err := r.write(ctx, target, func(st *SessionState) error {
			for _, id := range ids {
				delete(st.Overrides, id)
				st.removeLocal(id)
			}
			return nil
		})
		if err != nil {
			r.logger.Warn("Failed to prune stale overrides",
				zap.String("scope", target.Key()), zap.Strings("ids", ids), zap.Error(err))
		}
	}
}

// loadState reads the state of one module, or the union of every module's
// state when the scope spans all modules.
func (r *Reconciler) loadState(ctx context.Context, scope Scope) (*SessionState, error) {
	if scope.Module != "" {
		return r.store.Load(ctx, scope)
	}
	combined := NewSessionState()
	for _, module := range Modules {
		st, err := r.store.Load(ctx, Scope{BusinessID: scope.BusinessID, Module: module})
		if err != nil {
			return nil, err
		}
		combined.absorb(st)
	}
	return combined, nil
}

// writeScope narrows an all-modules scope to the module that owns id. The
// scope stays unnarrowed when no module owns id.
func (r *Reconciler) writeScope(ctx context.Context, scope Scope, id string) Scope {
	if scope.Module != "" {
		return scope
	}
	if module := mockModule(id); module != "" {
		return Scope{BusinessID: scope.BusinessID, Module: module}
	}
	if ev, ok := r.cached(scope.BusinessID, id); ok && IsValidModule(ev.Module) {
		return Scope{BusinessID: scope.BusinessID, Module: ev.Module}
	}
	for _, module := range Modules {
		target := Scope{BusinessID: scope.BusinessID, Module: module}
		st, err := r.store.Load(ctx, target)
		if err == nil && st.LocalIndex(id) >= 0 {
			return target
		}
	}
	return scope
}

func (r *Reconciler) scopeLock(scope Scope) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	key := scope.Key()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

func (r *Reconciler) lookup(businessID, id string, state *SessionState) (Event, bool) {
	if i := state.LocalIndex(id); i >= 0 {
		ev := applyOverride(state.LocalLog[i], state.Overrides)
		if ev.Source == "" {
			ev.Source = SourceOf(ev.ID)
		}
		return ev, true
	}
	ev, ok := r.cached(businessID, id)
	if !ok {
		return Event{}, false
	}
	return applyOverride(ev, state.Overrides), true
}

func pendingKey(businessID, id string) string {
	return businessID + "/" + id
}

// pendingPatches returns the in-flight writes of one business keyed by event id.
func (r *Reconciler) pendingPatches(businessID string) map[string]pendingWrite {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	out := make(map[string]pendingWrite)
	for _, p := range r.pending {
		if p.businessID == businessID {
			out[p.eventID] = *p
		}
	}
	return out
}

func (r *Reconciler) setPending(p *pendingWrite) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	r.pending[pendingKey(p.businessID, p.eventID)] = p
}

func (r *Reconciler) clearPending(businessID, id string, m *Mutation) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	key := pendingKey(businessID, id)
	if p, ok := r.pending[key]; ok && p.mutation == m {
		delete(r.pending, key)
	}
}

func (r *Reconciler) remember(businessID string, events []Event) {
	r.viewsMu.Lock()
	defer r.viewsMu.Unlock()
	view, ok := r.views[businessID]
	if !ok || len(view) > maxCachedViewEvents {
		view = make(map[string]Event, len(events))
		r.views[businessID] = view
	}
	for _, ev := range events {
		view[ev.ID] = ev
	}
}

func (r *Reconciler) forget(businessID, id string) {
	r.viewsMu.Lock()
	defer r.viewsMu.Unlock()
	delete(r.views[businessID], id)
}

func (r *Reconciler) cached(businessID, id string) (Event, bool) {
	r.viewsMu.RLock()
	defer r.viewsMu.RUnlock()
	ev, ok := r.views[businessID][id]
	return ev, ok
}
