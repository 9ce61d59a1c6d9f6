package recommend

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"peerlink/internal/config"
	"peerlink/internal/model"
	"peerlink/internal/store/memory"
)

// world: me follows f1,f2. alice shares both followees and interests, bob
// shares one followee and activity, carol shares nothing, dave opted out.
func newWorld(t *testing.T) (*memory.Store, *Engine) {
	t.Helper()
	s := memory.New()
	seedUsers(t, s,
		model.User{ID: "me", Interests: "golang, hiking", Bio: "Backend engineer", Eligible: true},
		model.User{ID: "f1", Eligible: true},
		model.User{ID: "f2", Eligible: true},
		model.User{ID: "alice", Interests: "golang, hiking", Bio: "engineer", Eligible: true},
		model.User{ID: "bob", Interests: "painting", Eligible: true},
		model.User{ID: "carol", Interests: "opera", Eligible: true},
		model.User{ID: "dave", Interests: "golang, hiking", Eligible: false},
	)
	follow(t, s, "me", "f1", "f2")
	follow(t, s, "alice", "f1", "f2")
	follow(t, s, "bob", "f1")
	follow(t, s, "dave", "f1", "f2")
	interact(t, s, "me", model.InteractionLike, "p1", "p2")
	interact(t, s, "bob", model.InteractionComment, "p1", "p2")
	return s, newEngine(t, s, s)
}

func newEngine(t *testing.T, rel RelationshipStore, s *memory.Store) *Engine {
	t.Helper()
	e, err := NewEngine(config.Default().Recommend, rel, InteractionUnion{Source: s}, s)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func candidateIDs(cs []model.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.User.ID)
	}
	return out
}

func TestGenerateRanksAndExplains(t *testing.T) {
	_, e := newWorld(t)
	got, err := e.Generate(context.Background(), "me", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"alice", "bob", "carol"}; !reflect.DeepEqual(candidateIDs(got), want) {
		t.Fatalf("order = %v, want %v", candidateIDs(got), want)
	}
	alice := got[0]
	if alice.Breakdown.MutualCount != 2 || alice.Breakdown.CommonInterests != 3 {
		t.Fatalf("alice breakdown: %+v", alice.Breakdown)
	}
	if alice.Reason != "Based on 2 mutual connections, 3 common interests" {
		t.Fatalf("alice reason: %q", alice.Reason)
	}
	if !reflect.DeepEqual(ids(alice.Breakdown.MutualProfiles), []string{"f1", "f2"}) {
		t.Fatalf("alice mutual profiles: %v", ids(alice.Breakdown.MutualProfiles))
	}
	if got[1].Reason != "Based on 1 mutual connection, similar activity patterns" {
		t.Fatalf("bob reason: %q", got[1].Reason)
	}
	if got[2].Reason != "Based on your network" || got[2].Breakdown.Total != 0 {
		t.Fatalf("carol: %+v", got[2])
	}
}

func TestGenerateExcludesSelfFollowedAndOptedOut(t *testing.T) {
	_, e := newWorld(t)
	got, err := e.Generate(context.Background(), "me", 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range got {
		switch c.User.ID {
		case "me", "f1", "f2", "dave":
			t.Fatalf("%s must not be recommended", c.User.ID)
		}
	}
}

func TestGenerateThresholdAndLimit(t *testing.T) {
	_, e := newWorld(t)
	ctx := context.Background()
	for _, minScore := range []float64{0, 0.1, 0.2, 0.5, 1} {
		got, err := e.Generate(ctx, "me", 10, minScore)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range got {
			if c.Breakdown.Total < minScore {
				t.Fatalf("score %v below threshold %v", c.Breakdown.Total, minScore)
			}
		}
	}
	for limit := 0; limit <= 4; limit++ {
		got, err := e.Generate(ctx, "me", limit, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) > limit {
			t.Fatalf("limit %d returned %d", limit, len(got))
		}
	}
	// Threshold is inclusive.
	all, _ := e.Generate(ctx, "me", 10, 0)
	exact, _ := e.Generate(ctx, "me", 10, all[1].Breakdown.Total)
	if len(exact) != 2 || exact[1].User.ID != "bob" {
		t.Fatalf("inclusive threshold: %v", candidateIDs(exact))
	}
}

func TestGenerateIsDeterministicWithTieBreak(t *testing.T) {
	s := memory.New()
	seedUsers(t, s, model.User{ID: "src", Interests: "go", Eligible: true})
	for _, id := range []string{"u3", "u1", "u4", "u2"} {
		seedUsers(t, s, model.User{ID: id, Interests: "go", Eligible: true})
	}
	e := newEngine(t, s, s)
	ctx := context.Background()
	first, err := e.Generate(ctx, "src", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"u1", "u2", "u3", "u4"}; !reflect.DeepEqual(candidateIDs(first), want) {
		t.Fatalf("tie order = %v, want %v", candidateIDs(first), want)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Generate(ctx, "src", 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestGenerateUnknownSource(t *testing.T) {
	_, e := newWorld(t)
	_, err := e.Generate(context.Background(), "ghost", 10, 0)
	if !model.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := e.Score(context.Background(), "me", "ghost"); !model.IsNotFound(err) {
		t.Fatalf("expected not found for candidate, got %v", err)
	}
}

type flakyRelations struct {
	RelationshipStore
	broken string
}

func (f flakyRelations) FolloweesOf(ctx context.Context, user string) ([]string, error) {
	if user == f.broken {
		return nil, errors.New("corrupt row")
	}
	return f.RelationshipStore.FolloweesOf(ctx, user)
}

func TestGenerateSkipsFailingCandidate(t *testing.T) {
	s, _ := newWorld(t)
	e := newEngine(t, flakyRelations{RelationshipStore: s, broken: "bob"}, s)
	got, err := e.Generate(context.Background(), "me", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"alice", "carol"}; !reflect.DeepEqual(candidateIDs(got), want) {
		t.Fatalf("got %v, want %v", candidateIDs(got), want)
	}
}

func TestGenerateSourceFailurePropagates(t *testing.T) {
	s, _ := newWorld(t)
	e := newEngine(t, flakyRelations{RelationshipStore: s, broken: "me"}, s)
	if _, err := e.Generate(context.Background(), "me", 10, 0); err == nil {
		t.Fatal("expected error when source data cannot be read")
	}
}

type leakyProfiles struct {
	*memory.Store
	extra []model.User
}

func (l leakyProfiles) AllEligibleUsers(ctx context.Context) ([]model.User, error) {
	us, err := l.Store.AllEligibleUsers(ctx)
	return append(us, l.extra...), err
}

func TestCandidatesFiltersIneligibleAndDuplicates(t *testing.T) {
	s, _ := newWorld(t)
	profiles := leakyProfiles{Store: s, extra: []model.User{{ID: "dave", Eligible: false}, {ID: "alice", Eligible: true}}}
	e, err := NewEngine(config.Default().Recommend, s, InteractionUnion{Source: s}, profiles)
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Candidates(context.Background(), "me")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"alice", "bob", "carol"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("candidates = %v, want %v", ids(got), want)
	}
}

func TestScoreMatchesGenerate(t *testing.T) {
	_, e := newWorld(t)
	ctx := context.Background()
	b, err := e.Score(ctx, "me", "bob")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := e.Generate(ctx, "me", 10, 0)
	if got[1].User.ID != "bob" || got[1].Breakdown.Total != b.Total {
		t.Fatalf("score %v vs generate %+v", b.Total, got[1])
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := config.Default().Recommend
	cfg.Weights = model.Weights{Mutual: 0.6, Interest: 0.6}
	s := memory.New()
	_, err := NewEngine(cfg, s, InteractionUnion{Source: s}, s)
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
