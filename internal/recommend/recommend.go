package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"peerlink/internal/config"
	"peerlink/internal/logging"
	"peerlink/internal/metrics"
	"peerlink/internal/model"
	"peerlink/internal/util"
)

// Engine scores and ranks candidate connections for a user. It reads the
// stores on every call and holds no per-user state, so it is safe for
// concurrent use.
type Engine struct {
	rel      RelationshipStore
	content  ContentStore
	profiles ProfileStore
	scorer   model.Scorer
	stop     map[string]struct{}
	workers  int
}

// NewEngine validates the scoring config and wires the stores.
func NewEngine(cfg config.RecommendConfig, rel RelationshipStore, content ContentStore, profiles ProfileStore) (*Engine, error) {
	scorer := cfg.Scorer()
	if err := scorer.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		return nil, &model.ConfigurationError{Field: "recommend.workers", Reason: fmt.Sprintf("must be positive, got %d", cfg.Workers)}
	}
	return &Engine{
		rel:      rel,
		content:  content,
		profiles: profiles,
		scorer:   scorer,
		stop:     util.StopSet(cfg.StopWords),
		workers:  cfg.Workers,
	}, nil
}

// features are the per-user sets a pair comparison needs.
type features struct {
	user      model.User
	followees map[string]struct{}
	posts     map[string]struct{}
	interests map[string]struct{}
}

func (e *Engine) load(ctx context.Context, u model.User) (features, error) {
	followees, err := e.rel.FolloweesOf(ctx, u.ID)
	if err != nil {
		return features{}, fmt.Errorf("followees of %s: %w", u.ID, err)
	}
	posts, err := e.content.InteractedPostsOf(ctx, u.ID)
	if err != nil {
		return features{}, fmt.Errorf("interactions of %s: %w", u.ID, err)
	}
	return features{
		user:      u,
		followees: toSet(followees),
		posts:     toSet(posts),
		interests: CombinedInterests(u, e.stop),
	}, nil
}

func (e *Engine) similarity(ctx context.Context, a, b features) (model.Similarity, error) {
	mutual, err := materialize(ctx, e.profiles, mutualIDs(a.followees, b.followees, a.user.ID, b.user.ID))
	if err != nil {
		return model.Similarity{}, err
	}
	common, score := jaccard(a.interests, b.interests)
	activity := 0
	if len(a.posts) > 0 && len(b.posts) > 0 {
		activity = intersectCount(a.posts, b.posts)
	}
	return model.Similarity{
		MutualConnections: mutual,
		MutualCount:       len(mutual),
		CommonInterests:   common,
		InterestScore:     score,
		ActivityOverlap:   activity,
	}, nil
}

// Score computes the weighted breakdown for one (source, candidate) pair.
func (e *Engine) Score(ctx context.Context, source, candidate string) (model.ScoreBreakdown, error) {
	a, err := e.profiles.Profile(ctx, source)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	b, err := e.profiles.Profile(ctx, candidate)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	fa, err := e.load(ctx, a)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	fb, err := e.load(ctx, b)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	sim, err := e.similarity(ctx, fa, fb)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	return e.scorer.Compose(sim), nil
}

// Generate ranks every eligible candidate for source, keeps those scoring at
// least minScore, and returns the best limit of them. Ties on score are broken
// by candidate id ascending. A candidate whose data cannot be read is logged
// and skipped; failures reading the source user are returned.
func (e *Engine) Generate(ctx context.Context, source string, limit int, minScore float64) ([]model.Candidate, error) {
	start := time.Now()
	metrics.GenerateRuns.Inc()
	defer metrics.ObserveGenerateDuration(start)

	src, err := e.profiles.Profile(ctx, source)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	fs, err := e.load(ctx, src)
	if err != nil {
		return nil, err
	}
	cands, err := e.candidates(ctx, source, fs.followees)
	if err != nil {
		return nil, err
	}

	scored := make([]*model.Candidate, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, c := range cands {
		g.Go(func() error {
			b, err := e.scoreCandidate(gctx, fs, c)
			if err != nil {
				metrics.CandidateSkips.Inc()
				logging.Warn("candidate_skipped", map[string]any{"source": source, "candidate": c.ID, "error": err})
				return nil
			}
			metrics.CandidatesScored.Inc()
			if b.Total < minScore {
				return nil
			}
			scored[i] = &model.Candidate{User: c, Breakdown: b, Reason: model.Reason(b)}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Candidate, 0, len(scored))
	for _, c := range scored {
		if c != nil {
			out = append(out, *c)
		}
	}
	sortCandidates(out)
	if len(out) > limit {
		out = out[:limit]
	}
	logging.Debug("generate_done", map[string]any{"source": source, "candidates": len(cands), "kept": len(out)})
	return out, nil
}

func (e *Engine) scoreCandidate(ctx context.Context, src features, c model.User) (model.ScoreBreakdown, error) {
	fc, err := e.load(ctx, c)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	sim, err := e.similarity(ctx, src, fc)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	return e.scorer.Compose(sim), nil
}

func sortCandidates(cs []model.Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Breakdown.Total != cs[j].Breakdown.Total {
			return cs[i].Breakdown.Total > cs[j].Breakdown.Total
		}
		return cs[i].User.ID < cs[j].User.ID
	})
}
