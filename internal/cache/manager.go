package cache

import (
	"context"
	"errors"
	"time"

	"peerlink/internal/config"
	"peerlink/internal/logging"
	"peerlink/internal/metrics"
	"peerlink/internal/model"
)

// RecordStore persists each user's recommendation set.
//
// ReplaceRecords must be atomic per user: a concurrent LoadRecords sees either
// the previous set or the new one. LoadRecords returns records best first
// (model.SortRecords order) and an empty slice when the user has none; a
// backend may instead return model.ErrNotFound for an unknown user.
type RecordStore interface {
	LoadRecords(ctx context.Context, user string) ([]model.Record, error)
	ReplaceRecords(ctx context.Context, user string, recs []model.Record) error
	DeleteRecords(ctx context.Context, user string) error
}

// Generator produces ranked candidates; *recommend.Engine satisfies it.
type Generator interface {
	Generate(ctx context.Context, source string, limit int, minScore float64) ([]model.Candidate, error)
}

// State classifies a user's cached set.
type State int

const (
	Absent State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "absent"
	}
}

// GetOptions mirror the caller's request parameters.
type GetOptions struct {
	Limit        int
	UseCache     bool
	RefreshIfOld bool
}

// Manager serves recommendations from the record store and recomputes them when needed.
type Manager struct {
	gen        Generator
	store      RecordStore
	staleAfter time.Duration
	depth      int
	minScore   float64
	now        func() time.Time
}

func NewManager(cfg config.RecommendConfig, gen Generator, store RecordStore) *Manager {
	return &Manager{
		gen:        gen,
		store:      store,
		staleAfter: cfg.StaleAfter,
		depth:      cfg.CacheDepth,
		minScore:   cfg.DefaultMinScore,
		now:        time.Now,
	}
}

// WithClock overrides the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// StateOf classifies records at now. A set is stale once its oldest UpdatedAt
// is more than staleAfter in the past.
func StateOf(recs []model.Record, now time.Time, staleAfter time.Duration) State {
	if len(recs) == 0 {
		return Absent
	}
	oldest := recs[0].UpdatedAt
	for _, r := range recs[1:] {
		if r.UpdatedAt.Before(oldest) {
			oldest = r.UpdatedAt
		}
	}
	if now.Sub(oldest) > staleAfter {
		return Stale
	}
	return Fresh
}

// State loads the user's records and classifies them.
func (m *Manager) State(ctx context.Context, user string) (State, error) {
	recs, err := m.load(ctx, user)
	if err != nil {
		return Absent, err
	}
	return StateOf(recs, m.now(), m.staleAfter), nil
}

// Get returns up to opts.Limit recommendations for user, from cache when allowed.
// Stale sets are returned as-is unless RefreshIfOld is set.
func (m *Manager) Get(ctx context.Context, user string, opts GetOptions) ([]model.Record, error) {
	if !opts.UseCache {
		metrics.IncCacheRequest(metrics.CacheBypass)
		return m.Refresh(ctx, user, opts.Limit)
	}
	recs, err := m.load(ctx, user)
	if err != nil {
		return nil, err
	}
	switch StateOf(recs, m.now(), m.staleAfter) {
	case Absent:
		metrics.IncCacheRequest(metrics.CacheMiss)
		return m.Refresh(ctx, user, opts.Limit)
	case Stale:
		if opts.RefreshIfOld {
			metrics.IncCacheRequest(metrics.CacheStale)
			return m.Refresh(ctx, user, opts.Limit)
		}
		metrics.IncCacheRequest(metrics.CacheStaleHit)
	default:
		metrics.IncCacheRequest(metrics.CacheHit)
	}
	return top(recs, opts.Limit), nil
}

// Refresh recomputes the user's set, replaces the cached one, and returns its top limit.
func (m *Manager) Refresh(ctx context.Context, user string, limit int) ([]model.Record, error) {
	depth := m.depth
	if limit > depth {
		depth = limit
	}
	cands, err := m.gen.Generate(ctx, user, depth, m.minScore)
	if err != nil {
		return nil, err
	}
	recs, err := m.ReplaceAll(ctx, user, cands)
	if err != nil {
		return nil, err
	}
	return top(recs, limit), nil
}

// ReplaceAll discards the user's cached set and stores one record per candidate.
// All records share one timestamp.
func (m *Manager) ReplaceAll(ctx context.Context, user string, cands []model.Candidate) ([]model.Record, error) {
	now := m.now().UTC()
	recs := make([]model.Record, 0, len(cands))
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		if _, dup := seen[c.User.ID]; dup {
			continue
		}
		seen[c.User.ID] = struct{}{}
		recs = append(recs, model.NewRecord(user, c, now))
	}
	if err := m.store.ReplaceRecords(ctx, user, recs); err != nil {
		return nil, &model.StorageError{Op: "replace", Err: err}
	}
	model.SortRecords(recs)
	logging.Debug("recommendations_cached", map[string]any{"user": user, "count": len(recs)})
	return recs, nil
}

// Invalidate drops the user's cached set; the next Get recomputes it.
func (m *Manager) Invalidate(ctx context.Context, user string) error {
	if err := m.store.DeleteRecords(ctx, user); err != nil && !errors.Is(err, model.ErrNotFound) {
		return &model.StorageError{Op: "delete", Err: err}
	}
	logging.Info("recommendations_invalidated", map[string]any{"user": user})
	return nil
}

func (m *Manager) load(ctx context.Context, user string) ([]model.Record, error) {
	recs, err := m.store.LoadRecords(ctx, user)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "load", Err: err}
	}
	return recs, nil
}

func top(recs []model.Record, limit int) []model.Record {
	if limit <= 0 {
		return []model.Record{}
	}
	if len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
