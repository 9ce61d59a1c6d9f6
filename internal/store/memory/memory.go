package memory

import (
	"context"
	"sort"
	"sync"

	"peerlink/internal/model"
)

// Store keeps the social dataset and cached recommendation records in process memory.
// It backs tests and the "memory" storage driver; data is lost on restart.
type Store struct {
	mu        sync.RWMutex
	users     map[string]model.User
	following map[string]map[string]struct{} // follower -> followees
	posts     map[string]model.Post
	liked     map[string]map[string]struct{} // user -> post ids
	commented map[string]map[string]struct{}

	recMu   sync.RWMutex
	records map[string][]model.Record // source user -> full record set
}

func New() *Store {
	return &Store{
		users:     make(map[string]model.User),
		following: make(map[string]map[string]struct{}),
		posts:     make(map[string]model.Post),
		liked:     make(map[string]map[string]struct{}),
		commented: make(map[string]map[string]struct{}),
		records:   make(map[string][]model.Record),
	}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) UpsertUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// AddFollow records follower -> followee. Repeating an edge is a no-op.
func (s *Store) AddFollow(_ context.Context, f model.Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.following, f.Follower, f.Followee)
	return nil
}

func (s *Store) RemoveFollow(_ context.Context, follower, followee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.following[follower], followee)
	return nil
}

func (s *Store) AddPost(_ context.Context, p model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
	return nil
}

func (s *Store) AddInteraction(_ context.Context, in model.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch in.Kind {
	case model.InteractionComment:
		addTo(s.commented, in.User, in.PostID)
	default:
		addTo(s.liked, in.User, in.PostID)
	}
	return nil
}

func (s *Store) Profile(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.UserNotFound(id)
	}
	return u, nil
}

// AllEligibleUsers returns users that allow being recommended, ordered by id.
func (s *Store) AllEligibleUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Eligible {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FolloweesOf(_ context.Context, user string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.following[user]), nil
}

func (s *Store) LikedPostsOf(_ context.Context, user string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.liked[user]), nil
}

func (s *Store) CommentedPostsOf(_ context.Context, user string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.commented[user]), nil
}

// LoadRecords returns a copy of the user's record set, best first.
func (s *Store) LoadRecords(_ context.Context, user string) ([]model.Record, error) {
	s.recMu.RLock()
	cur := s.records[user]
	s.recMu.RUnlock()
	out := append([]model.Record(nil), cur...)
	model.SortRecords(out)
	return out, nil
}

// ReplaceRecords swaps in the new set as a whole; readers see the old or the new slice.
func (s *Store) ReplaceRecords(_ context.Context, user string, recs []model.Record) error {
	next := append([]model.Record(nil), recs...)
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if len(next) == 0 {
		delete(s.records, user)
		return nil
	}
	s.records[user] = next
	return nil
}

func (s *Store) DeleteRecords(_ context.Context, user string) error {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	delete(s.records, user)
	return nil
}

func addTo(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
