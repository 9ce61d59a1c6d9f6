package recommend

import (
	"context"
	"sort"
)

// ContentStore returns the ids of posts a user liked or commented on, without duplicates.
type ContentStore interface {
	InteractedPostsOf(ctx context.Context, user string) ([]string, error)
}

// LikeCommentSource exposes likes and comments separately, as content databases store them.
type LikeCommentSource interface {
	LikedPostsOf(ctx context.Context, user string) ([]string, error)
	CommentedPostsOf(ctx context.Context, user string) ([]string, error)
}

// InteractionUnion merges likes and comments into one post set, so several
// comments on the same post count once.
type InteractionUnion struct {
	Source LikeCommentSource
}

func (u InteractionUnion) InteractedPostsOf(ctx context.Context, user string) ([]string, error) {
	liked, err := u.Source.LikedPostsOf(ctx, user)
	if err != nil {
		return nil, err
	}
	commented, err := u.Source.CommentedPostsOf(ctx, user)
	if err != nil {
		return nil, err
	}
	set := toSet(liked)
	for _, id := range commented {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
