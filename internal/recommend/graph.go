package recommend

import (
	"context"
	"fmt"
	"sort"

	"peerlink/internal/model"
)

// RelationshipStore answers follow-edge lookups.
type RelationshipStore interface {
	FolloweesOf(ctx context.Context, user string) ([]string, error)
}

// ProfileStore resolves users. Profile returns a model.NotFoundError for unknown ids.
type ProfileStore interface {
	Profile(ctx context.Context, id string) (model.User, error)
	AllEligibleUsers(ctx context.Context) ([]model.User, error)
}

// MutualConnections returns the users both a and b follow, excluding a and b
// themselves, ordered by id. Edges pointing at unknown profiles are dropped.
func MutualConnections(ctx context.Context, rel RelationshipStore, profiles ProfileStore, a, b string) ([]model.User, error) {
	fa, err := rel.FolloweesOf(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("followees of %s: %w", a, err)
	}
	fb, err := rel.FolloweesOf(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("followees of %s: %w", b, err)
	}
	return materialize(ctx, profiles, mutualIDs(toSet(fa), toSet(fb), a, b))
}

// ActivityOverlap counts posts both a and b liked or commented on.
func ActivityOverlap(ctx context.Context, content ContentStore, a, b string) (int, error) {
	ia, err := content.InteractedPostsOf(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("interactions of %s: %w", a, err)
	}
	if len(ia) == 0 {
		return 0, nil
	}
	ib, err := content.InteractedPostsOf(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("interactions of %s: %w", b, err)
	}
	return intersectCount(toSet(ia), toSet(ib)), nil
}

func mutualIDs(fa, fb map[string]struct{}, a, b string) []string {
	if len(fa) > len(fb) {
		fa, fb = fb, fa
	}
	var out []string
	for id := range fa {
		if id == a || id == b {
			continue
		}
		if _, ok := fb[id]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func materialize(ctx context.Context, profiles ProfileStore, ids []string) ([]model.User, error) {
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := profiles.Profile(ctx, id)
		if model.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// intersectCount iterates the smaller set.
func intersectCount(a, b map[string]struct{}) (n int) {
	if len(a) > len(b) {
		a, b = b, a
	}
	for x := range a {
		if _, ok := b[x]; ok {
			n++
		}
	}
	return n
}
