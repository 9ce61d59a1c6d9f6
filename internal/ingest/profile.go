package ingest

import (
	"context"

	"peerlink/internal/logging"
	"peerlink/internal/model"
)

type ProfileReadWriter interface {
	Profile(ctx context.Context, id string) (model.User, error)
	UpsertUser(ctx context.Context, u model.User) error
}

// Invalidator drops a user's cached recommendations; *cache.Manager satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, user string) error
}

// ApplyProfileUpdate saves u and, when its interests or bio changed, drops the
// user's cached recommendations so the next read recomputes them. It reports
// whether the cache was invalidated.
func ApplyProfileUpdate(ctx context.Context, profiles ProfileReadWriter, inv Invalidator, u model.User) (bool, error) {
	prev, err := profiles.Profile(ctx, u.ID)
	existed := err == nil
	if err != nil && !model.IsNotFound(err) {
		return false, err
	}
	if err := profiles.UpsertUser(ctx, u); err != nil {
		return false, err
	}
	if !existed || (prev.Interests == u.Interests && prev.Bio == u.Bio) {
		return false, nil
	}
	if err := inv.Invalidate(ctx, u.ID); err != nil {
		return false, err
	}
	logging.Info("profile_update_invalidated", map[string]any{"user": u.ID})
	return true, nil
}
