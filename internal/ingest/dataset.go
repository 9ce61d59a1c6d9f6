package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"peerlink/internal/logging"
	"peerlink/internal/model"
)

// Dataset is a YAML fixture describing users and their activity.
type Dataset struct {
	Users    []UserDoc   `yaml:"users"`
	Follows  []FollowDoc `yaml:"follows"`
	Posts    []PostDoc   `yaml:"posts"`
	Likes    []ActionDoc `yaml:"likes"`
	Comments []ActionDoc `yaml:"comments"`
}

type UserDoc struct {
	ID          string `yaml:"id"`
	Username    string `yaml:"username"`
	FirstName   string `yaml:"firstName"`
	LastName    string `yaml:"lastName"`
	Interests   string `yaml:"interests"`
	Bio         string `yaml:"bio"`
	Location    string `yaml:"location"`
	Occupation  string `yaml:"occupation"`
	DateOfBirth string `yaml:"dateOfBirth"` // YYYY-MM-DD
	// Nil means visible, matching the default for new accounts.
	ShowInRecommendations *bool `yaml:"showInRecommendations"`
}

type FollowDoc struct {
	Follower string `yaml:"follower"`
	Followee string `yaml:"followee"`
}

type PostDoc struct {
	ID          string `yaml:"id"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"`
}

type ActionDoc struct {
	User string `yaml:"user"`
	Post string `yaml:"post"`
}

// Sink receives the seeded records; the sqlite and memory stores implement it.
type Sink interface {
	UpsertUser(ctx context.Context, u model.User) error
	AddFollow(ctx context.Context, f model.Follow) error
	AddPost(ctx context.Context, p model.Post) error
	AddInteraction(ctx context.Context, in model.Interaction) error
}

// FollowWriter mirrors follow edges into a second store such as the graph database.
type FollowWriter interface {
	AddFollow(ctx context.Context, f model.Follow) error
}

// Stats counts what a seed run wrote.
type Stats struct {
	Users, Follows, Posts, Likes, Comments int
}

func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	b, err := os.ReadFile(path)
	if err != nil {
		return ds, err
	}
	if err := yaml.Unmarshal(b, &ds); err != nil {
		return ds, fmt.Errorf("parse %s: %w", path, err)
	}
	return ds, nil
}

// ToUser converts the document into a profile.
func (d UserDoc) ToUser() (model.User, error) {
	u := model.User{
		ID:         d.ID,
		Username:   d.Username,
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Interests:  d.Interests,
		Bio:        d.Bio,
		Location:   d.Location,
		Occupation: d.Occupation,
		Eligible:   d.ShowInRecommendations == nil || *d.ShowInRecommendations,
	}
	if u.ID == "" {
		return u, fmt.Errorf("user without id (username %q)", d.Username)
	}
	if d.DateOfBirth != "" {
		t, err := time.Parse("2006-01-02", d.DateOfBirth)
		if err != nil {
			return u, fmt.Errorf("user %s: date of birth: %w", d.ID, err)
		}
		u.DateOfBirth = &t
	}
	return u, nil
}

// Seed writes ds into sink, users first so edges never precede their endpoints.
// Follow edges are also written to every extra writer.
func Seed(ctx context.Context, ds Dataset, sink Sink, extra ...FollowWriter) (Stats, error) {
	var st Stats
	now := time.Now().UTC()
	for _, d := range ds.Users {
		u, err := d.ToUser()
		if err != nil {
			return st, err
		}
		if err := sink.UpsertUser(ctx, u); err != nil {
			return st, fmt.Errorf("user %s: %w", u.ID, err)
		}
		st.Users++
	}
	for _, d := range ds.Follows {
		f := model.Follow{Follower: d.Follower, Followee: d.Followee, CreatedAt: now}
		if err := sink.AddFollow(ctx, f); err != nil {
			return st, fmt.Errorf("follow %s->%s: %w", f.Follower, f.Followee, err)
		}
		for _, w := range extra {
			if err := w.AddFollow(ctx, f); err != nil {
				return st, fmt.Errorf("mirror follow %s->%s: %w", f.Follower, f.Followee, err)
			}
		}
		st.Follows++
	}
	for _, d := range ds.Posts {
		if err := sink.AddPost(ctx, model.Post{ID: d.ID, Author: d.Author, Description: d.Description, CreatedAt: now}); err != nil {
			return st, fmt.Errorf("post %s: %w", d.ID, err)
		}
		st.Posts++
	}
	for _, d := range ds.Likes {
		if err := sink.AddInteraction(ctx, model.Interaction{User: d.User, PostID: d.Post, Kind: model.InteractionLike, CreatedAt: now}); err != nil {
			return st, err
		}
		st.Likes++
	}
	for _, d := range ds.Comments {
		if err := sink.AddInteraction(ctx, model.Interaction{User: d.User, PostID: d.Post, Kind: model.InteractionComment, CreatedAt: now}); err != nil {
			return st, err
		}
		st.Comments++
	}
	logging.Info("seed_done", map[string]any{"users": st.Users, "follows": st.Follows, "posts": st.Posts, "likes": st.Likes, "comments": st.Comments})
	return st, nil
}
