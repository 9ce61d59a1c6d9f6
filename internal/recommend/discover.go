package recommend

import (
	"context"
	"fmt"

	"peerlink/internal/model"
)

// Candidates lists users eligible to be recommended to source: everyone who
// allows recommendations, minus source and the users source already follows.
func (e *Engine) Candidates(ctx context.Context, source string) ([]model.User, error) {
	if _, err := e.profiles.Profile(ctx, source); err != nil {
		return nil, err
	}
	followees, err := e.rel.FolloweesOf(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("followees of %s: %w", source, err)
	}
	return e.candidates(ctx, source, toSet(followees))
}

func (e *Engine) candidates(ctx context.Context, source string, followed map[string]struct{}) ([]model.User, error) {
	all, err := e.profiles.AllEligibleUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	seen := make(map[string]struct{}, len(all))
	out := make([]model.User, 0, len(all))
	for _, u := range all {
		if u.ID == source || !u.Eligible {
			continue
		}
		if _, ok := followed[u.ID]; ok {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}
