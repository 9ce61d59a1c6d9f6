package cache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"peerlink/internal/config"
	"peerlink/internal/model"
	"peerlink/internal/store/memory"
)

type fakeGen struct {
	mu    sync.Mutex
	calls int
	cands []model.Candidate
	err   error
}

func (f *fakeGen) Generate(_ context.Context, source string, limit int, minScore float64) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.cands
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cand(id string, score float64, mutual, common int) model.Candidate {
	b := model.ScoreBreakdown{Total: score, MutualCount: mutual, CommonInterests: common}
	return model.Candidate{User: model.User{ID: id}, Breakdown: b, Reason: model.Reason(b)}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup() (*Manager, *fakeGen, *memory.Store, *clock) {
	gen := &fakeGen{cands: []model.Candidate{cand("a", 0.9, 2, 1), cand("b", 0.5, 1, 0), cand("c", 0.3, 0, 3)}}
	store := memory.New()
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(config.Default().Recommend, gen, store).WithClock(clk.now)
	return m, gen, store, clk
}

func recommended(recs []model.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.RecommendedUser)
	}
	return out
}

func TestGetAbsentComputesAndCaches(t *testing.T) {
	m, gen, store, _ := setup()
	ctx := context.Background()
	got, err := m.Get(ctx, "u", GetOptions{Limit: 2, UseCache: true, RefreshIfOld: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(recommended(got), []string{"a", "b"}) {
		t.Fatalf("got %v", recommended(got))
	}
	cached, _ := store.LoadRecords(ctx, "u")
	if len(cached) != 3 {
		t.Fatalf("expected full cache depth persisted, got %d", len(cached))
	}
	if cached[0].Reason != "Based on 2 mutual connections, 1 common interest" || cached[0].SourceUser != "u" {
		t.Fatalf("record fields: %+v", cached[0])
	}
	if gen.calls != 1 {
		t.Fatalf("generate calls = %d", gen.calls)
	}
}

func TestGetFreshServesFromCache(t *testing.T) {
	m, gen, _, clk := setup()
	ctx := context.Background()
	opts := GetOptions{Limit: 10, UseCache: true, RefreshIfOld: true}
	if _, err := m.Get(ctx, "u", opts); err != nil {
		t.Fatal(err)
	}
	gen.cands = []model.Candidate{cand("z", 1, 5, 5)}
	clk.t = clk.t.Add(6 * 24 * time.Hour)
	got, err := m.Get(ctx, "u", opts)
	if err != nil {
		t.Fatal(err)
	}
	if gen.calls != 1 || !reflect.DeepEqual(recommended(got), []string{"a", "b", "c"}) {
		t.Fatalf("expected cached set, calls=%d got=%v", gen.calls, recommended(got))
	}
}

func TestGetStaleRefreshesOnlyWhenAsked(t *testing.T) {
	m, gen, _, clk := setup()
	ctx := context.Background()
	if _, err := m.Get(ctx, "u", GetOptions{Limit: 10, UseCache: true}); err != nil {
		t.Fatal(err)
	}
	gen.cands = []model.Candidate{cand("z", 1, 5, 5)}
	clk.t = clk.t.Add(8 * 24 * time.Hour)

	if st, _ := m.State(ctx, "u"); st != Stale {
		t.Fatalf("state = %v, want stale", st)
	}
	got, err := m.Get(ctx, "u", GetOptions{Limit: 10, UseCache: true, RefreshIfOld: false})
	if err != nil {
		t.Fatal(err)
	}
	if gen.calls != 1 || len(got) != 3 {
		t.Fatalf("stale set should be served as-is, calls=%d got=%v", gen.calls, recommended(got))
	}
	got, err = m.Get(ctx, "u", GetOptions{Limit: 10, UseCache: true, RefreshIfOld: true})
	if err != nil {
		t.Fatal(err)
	}
	if gen.calls != 2 || !reflect.DeepEqual(recommended(got), []string{"z"}) {
		t.Fatalf("expected refresh, calls=%d got=%v", gen.calls, recommended(got))
	}
	if st, _ := m.State(ctx, "u"); st != Fresh {
		t.Fatalf("state after refresh = %v", st)
	}
}

func TestGetWithoutCacheAlwaysRecomputes(t *testing.T) {
	m, gen, _, _ := setup()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := m.Get(ctx, "u", GetOptions{Limit: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if gen.calls != 3 {
		t.Fatalf("calls = %d, want 3", gen.calls)
	}
}

func TestReplaceAllLeavesNoPriorRecords(t *testing.T) {
	m, _, store, _ := setup()
	ctx := context.Background()
	if _, err := m.ReplaceAll(ctx, "u", []model.Candidate{cand("a", 0.9, 0, 0), cand("b", 0.2, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ReplaceAll(ctx, "u", []model.Candidate{cand("c", 0.4, 0, 0), cand("c", 0.4, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	got, _ := store.LoadRecords(ctx, "u")
	if !reflect.DeepEqual(recommended(got), []string{"c"}) {
		t.Fatalf("records after replace = %v", recommended(got))
	}
}

func TestInvalidate(t *testing.T) {
	m, gen, _, _ := setup()
	ctx := context.Background()
	opts := GetOptions{Limit: 10, UseCache: true, RefreshIfOld: true}
	if _, err := m.Get(ctx, "u", opts); err != nil {
		t.Fatal(err)
	}
	if err := m.Invalidate(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	if st, _ := m.State(ctx, "u"); st != Absent {
		t.Fatalf("state = %v, want absent", st)
	}
	if _, err := m.Get(ctx, "u", opts); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 2 {
		t.Fatalf("expected recompute after invalidate, calls=%d", gen.calls)
	}
}

type brokenStore struct {
	RecordStore
	loadErr error
}

func (b brokenStore) LoadRecords(context.Context, string) ([]model.Record, error) {
	return nil, b.loadErr
}

func TestGetTreatsNotFoundAsAbsent(t *testing.T) {
	gen := &fakeGen{cands: []model.Candidate{cand("a", 0.9, 0, 0)}}
	store := brokenStore{RecordStore: memory.New(), loadErr: model.UserNotFound("u")}
	m := NewManager(config.Default().Recommend, gen, store)
	got, err := m.Get(context.Background(), "u", GetOptions{Limit: 5, UseCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || gen.calls != 1 {
		t.Fatalf("expected recompute, got %v calls=%d", recommended(got), gen.calls)
	}
}

func TestGetPropagatesStorageError(t *testing.T) {
	gen := &fakeGen{}
	io := errors.New("connection reset")
	m := NewManager(config.Default().Recommend, gen, brokenStore{RecordStore: memory.New(), loadErr: io})
	_, err := m.Get(context.Background(), "u", GetOptions{Limit: 5, UseCache: true})
	var se *model.StorageError
	if !errors.As(err, &se) || !errors.Is(err, io) {
		t.Fatalf("expected StorageError wrapping io error, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("storage failure must not be masked by a recompute")
	}
}

func TestGetPropagatesNotFoundUser(t *testing.T) {
	gen := &fakeGen{err: model.UserNotFound("ghost")}
	m := NewManager(config.Default().Recommend, gen, memory.New())
	if _, err := m.Get(context.Background(), "ghost", GetOptions{Limit: 5, UseCache: true}); !model.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStateOf(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour
	if StateOf(nil, now, week) != Absent {
		t.Fatal("empty should be absent")
	}
	recent := []model.Record{{UpdatedAt: now.Add(-week)}}
	if StateOf(recent, now, week) != Fresh {
		t.Fatal("exactly at threshold should be fresh")
	}
	mixed := []model.Record{{UpdatedAt: now}, {UpdatedAt: now.Add(-week - time.Second)}}
	if StateOf(mixed, now, week) != Stale {
		t.Fatal("oldest record decides staleness")
	}
}

func TestConcurrentReadersSeeWholeSets(t *testing.T) {
	m, _, store, _ := setup()
	ctx := context.Background()
	setA := []model.Candidate{cand("a1", 0.9, 0, 0), cand("a2", 0.8, 0, 0), cand("a3", 0.7, 0, 0)}
	setB := []model.Candidate{cand("b1", 0.9, 0, 0), cand("b2", 0.8, 0, 0)}
	if _, err := m.ReplaceAll(ctx, "u", setA); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			set := setA
			if i%2 == 0 {
				set = setB
			}
			if _, err := m.ReplaceAll(ctx, "u", set); err != nil {
				t.Error(err)
				return
			}
		}
		close(stop)
	}()
	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		recs, err := store.LoadRecords(ctx, "u")
		if err != nil {
			t.Fatal(err)
		}
		ids := recommended(recs)
		if !reflect.DeepEqual(ids, []string{"a1", "a2", "a3"}) && !reflect.DeepEqual(ids, []string{"b1", "b2"}) {
			t.Fatalf("observed mixed set %v", ids)
		}
	}
}
