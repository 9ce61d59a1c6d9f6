package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents the profile fields the recommender reads.
type User struct {
	ID          string
	Username    string
	FirstName   string
	LastName    string
	Interests   string // comma-separated, as entered
	Bio         string
	Location    string
	Occupation  string
	DateOfBirth *time.Time
	// Eligible is false when the user opted out of appearing in recommendations.
	Eligible bool
}

// FullName joins first and last name for display.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Age returns the user's age in whole years at now. ok is false without a date of birth.
func (u User) Age(now time.Time) (age int, ok bool) {
	if u.DateOfBirth == nil {
		return 0, false
	}
	dob := *u.DateOfBirth
	age = now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age, true
}

// Follow is a directed follower -> followee edge.
type Follow struct {
	Follower  string
	Followee  string
	CreatedAt time.Time
}

// Post is a piece of content users can like or comment on.
type Post struct {
	ID          string
	Author      string
	Description string
	CreatedAt   time.Time
}

// InteractionKind is the type of engagement a user had with a post.
type InteractionKind string

const (
	InteractionLike    InteractionKind = "like"
	InteractionComment InteractionKind = "comment"
)

// Interaction captures a like or comment by a user on a post.
type Interaction struct {
	User      string
	PostID    string
	Kind      InteractionKind
	CreatedAt time.Time
}

// Similarity holds the raw signals computed for a (source, candidate) pair.
type Similarity struct {
	MutualConnections []User
	MutualCount       int
	CommonInterests   int
	InterestScore     float64 // Jaccard coefficient in [0,1]
	ActivityOverlap   int
}

// ScoreBreakdown is the weighted score along with the signals that produced it.
type ScoreBreakdown struct {
	Total           float64
	MutualCount     int
	CommonInterests int
	ActivityOverlap int
	InterestScore   float64
	MutualProfiles  []User
}

// Candidate is a scored user proposed to a source user.
type Candidate struct {
	User      User
	Breakdown ScoreBreakdown
	Reason    string
}

// Record is a persisted recommendation. There is at most one per
// (SourceUser, RecommendedUser) pair.
type Record struct {
	ID                string    `json:"id"`
	SourceUser        string    `json:"source_user"`
	RecommendedUser   string    `json:"recommended_user"`
	Score             float64   `json:"score"`
	MutualConnections int       `json:"mutual_connections"`
	CommonInterests   int       `json:"common_interests"`
	Reason            string    `json:"reason"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewRecord derives the persisted form of a candidate.
func NewRecord(source string, c Candidate, now time.Time) Record {
	return Record{
		ID:                uuid.NewString(),
		SourceUser:        source,
		RecommendedUser:   c.User.ID,
		Score:             c.Breakdown.Total,
		MutualConnections: c.Breakdown.MutualCount,
		CommonInterests:   c.Breakdown.CommonInterests,
		Reason:            c.Reason,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SortRecords orders records best first: score desc, created desc, then
// recommended user id asc so equal rows have a stable order.
func SortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.RecommendedUser < b.RecommendedUser
	})
}
