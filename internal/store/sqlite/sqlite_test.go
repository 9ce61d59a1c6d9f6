package sqlite

import (
	"context"
	"reflect"
	"testing"
	"time"

	"peerlink/internal/model"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUsersRoundTrip(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	in := model.User{ID: "u1", Username: "ada", FirstName: "Ada", Interests: "math, engines", Bio: "analyst", DateOfBirth: &dob, Eligible: true}
	if err := db.UpsertUser(ctx, in); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertUser(ctx, model.User{ID: "u2"}); err != nil {
		t.Fatal(err)
	}
	got, err := db.Profile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("profile = %+v, want %+v", got, in)
	}
	in.Bio = "engineer"
	if err := db.UpsertUser(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, _ = db.Profile(ctx, "u1")
	if got.Bio != "engineer" {
		t.Fatalf("upsert did not overwrite bio: %q", got.Bio)
	}
	if _, err := db.Profile(ctx, "nope"); !model.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	eligible, err := db.AllEligibleUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(eligible) != 1 || eligible[0].ID != "u1" {
		t.Fatalf("eligible = %+v", eligible)
	}
}

func TestFollowsAndInteractions(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	for _, f := range []model.Follow{{Follower: "a", Followee: "c"}, {Follower: "a", Followee: "b"}, {Follower: "a", Followee: "b"}} {
		if err := db.AddFollow(ctx, f); err != nil {
			t.Fatal(err)
		}
	}
	got, err := db.FolloweesOf(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("followees = %v", got)
	}
	if err := db.RemoveFollow(ctx, "a", "c"); err != nil {
		t.Fatal(err)
	}
	got, _ = db.FolloweesOf(ctx, "a")
	if !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("after remove = %v", got)
	}

	if err := db.AddPost(ctx, model.Post{ID: "p1", Author: "b"}); err != nil {
		t.Fatal(err)
	}
	for _, in := range []model.Interaction{
		{User: "a", PostID: "p1", Kind: model.InteractionLike},
		{User: "a", PostID: "p1", Kind: model.InteractionLike},
		{User: "a", PostID: "p2", Kind: model.InteractionComment},
		{User: "a", PostID: "p2", Kind: model.InteractionComment},
	} {
		if err := db.AddInteraction(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	likes, _ := db.LikedPostsOf(ctx, "a")
	comments, _ := db.CommentedPostsOf(ctx, "a")
	if !reflect.DeepEqual(likes, []string{"p1"}) || !reflect.DeepEqual(comments, []string{"p2"}) {
		t.Fatalf("likes=%v comments=%v", likes, comments)
	}
}

func TestReplaceRecordsIsWholeSet(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	t0 := time.Date(2025, 2, 1, 0, 0, 0, 123, time.UTC)
	first := []model.Record{
		{ID: "r1", SourceUser: "u", RecommendedUser: "x", Score: 0.3, Reason: "Based on your network", CreatedAt: t0, UpdatedAt: t0},
		{ID: "r2", SourceUser: "u", RecommendedUser: "y", Score: 0.7, MutualConnections: 2, Reason: "Based on 2 mutual connections", CreatedAt: t0, UpdatedAt: t0},
	}
	if err := db.ReplaceRecords(ctx, "u", first); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadRecords(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !reflect.DeepEqual(got[0], first[1]) {
		t.Fatalf("load = %+v", got)
	}

	second := []model.Record{{ID: "r3", SourceUser: "u", RecommendedUser: "z", Score: 0.5, CreatedAt: t0, UpdatedAt: t0}}
	if err := db.ReplaceRecords(ctx, "u", second); err != nil {
		t.Fatal(err)
	}
	got, _ = db.LoadRecords(ctx, "u")
	if len(got) != 1 || got[0].RecommendedUser != "z" {
		t.Fatalf("replace kept old rows: %+v", got)
	}

	// A duplicate pair violates the unique constraint and leaves the prior set intact.
	dup := []model.Record{
		{ID: "r4", RecommendedUser: "q", CreatedAt: t0, UpdatedAt: t0},
		{ID: "r5", RecommendedUser: "q", CreatedAt: t0, UpdatedAt: t0},
	}
	if err := db.ReplaceRecords(ctx, "u", dup); err == nil {
		t.Fatal("expected constraint violation")
	}
	got, _ = db.LoadRecords(ctx, "u")
	if len(got) != 1 || got[0].RecommendedUser != "z" {
		t.Fatalf("failed replace was not rolled back: %+v", got)
	}

	if err := db.DeleteRecords(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.LoadRecords(ctx, "u"); len(got) != 0 {
		t.Fatalf("after delete = %+v", got)
	}
}

func TestEvents(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := db.PutEvent(ctx, now, "feedback", map[string]string{"action": "followed"}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutEvent(ctx, now, "profile_update", map[string]string{"user": "u"}); err != nil {
		t.Fatal(err)
	}
	evs, err := db.LoadEventsRange(ctx, now.Add(-time.Hour), now.Add(time.Hour), "feedback")
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Payload != `{"action":"followed"}` {
		t.Fatalf("events = %+v", evs)
	}
	all, _ := db.LoadEventsRange(ctx, now.Add(-time.Hour), now.Add(time.Hour), "")
	if len(all) != 2 {
		t.Fatalf("all events = %d", len(all))
	}
}
