package graph

import (
	"context"
	"fmt"
	"sort"

	"peerlink/internal/model"
)

const (
	followeesQuery = `MATCH (:User {id: $id})-[:FOLLOWS]->(f:User) RETURN f.id AS id`
	mergeFollow    = `MERGE (a:User {id: $follower})
MERGE (b:User {id: $followee})
MERGE (a)-[r:FOLLOWS]->(b)
ON CREATE SET r.createdAt = $createdAt`
	deleteFollow = `MATCH (:User {id: $follower})-[r:FOLLOWS]->(:User {id: $followee}) DELETE r`
)

// Follows answers follow-edge lookups from a graph database. Profiles stay in
// the relational store; nodes here carry only the user id.
type Follows struct {
	client Client
}

func NewFollows(c Client) *Follows { return &Follows{client: c} }

// FolloweesOf returns the ids user follows, sorted and deduplicated.
func (f *Follows) FolloweesOf(ctx context.Context, user string) ([]string, error) {
	res, err := f.client.ExecuteRead(ctx, followeesQuery, map[string]any{"id": user})
	if err != nil {
		return nil, fmt.Errorf("followees of %s: %w", user, err)
	}
	seen := make(map[string]struct{}, len(res.Records))
	out := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		id, ok := rec["id"].(string)
		if !ok {
			return nil, fmt.Errorf("followees of %s: unexpected id %T", user, rec["id"])
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// AddFollow merges the edge so repeated calls leave one relationship.
func (f *Follows) AddFollow(ctx context.Context, e model.Follow) error {
	_, err := f.client.ExecuteWrite(ctx, mergeFollow, map[string]any{
		"follower":  e.Follower,
		"followee":  e.Followee,
		"createdAt": e.CreatedAt.UTC().Unix(),
	})
	return err
}

func (f *Follows) RemoveFollow(ctx context.Context, follower, followee string) error {
	_, err := f.client.ExecuteWrite(ctx, deleteFollow, map[string]any{"follower": follower, "followee": followee})
	return err
}

func (f *Follows) Close(ctx context.Context) error { return f.client.Close(ctx) }
