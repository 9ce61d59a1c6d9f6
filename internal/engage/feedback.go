package engage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"peerlink/internal/logging"
	"peerlink/internal/metrics"
)

// EventType tags feedback rows in the event log.
const EventType = "feedback"

const maxTextLen = 500

// Action is what a user did with a recommendation.
type Action string

const (
	Viewed         Action = "viewed"
	ProfileClicked Action = "profile_clicked"
	Connected      Action = "connected"
	Dismissed      Action = "dismissed"
	Reported       Action = "reported"
)

var actions = []Action{Viewed, ProfileClicked, Connected, Dismissed, Reported}

// ParseAction accepts one of the known actions, case-insensitively.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown feedback action %q", s)
}

// Feedback is a user's reaction to one recommendation.
type Feedback struct {
	Source      string    `json:"source"`
	Recommended string    `json:"recommended"`
	Action      Action    `json:"action"`
	Text        string    `json:"text,omitempty"`
	At          time.Time `json:"at"`
}

func (f Feedback) Validate() error {
	if f.Source == "" || f.Recommended == "" {
		return fmt.Errorf("feedback needs source and recommended user")
	}
	if _, err := ParseAction(string(f.Action)); err != nil {
		return err
	}
	if utf8.RuneCountInString(f.Text) > maxTextLen {
		return fmt.Errorf("feedback text exceeds %d characters", maxTextLen)
	}
	return nil
}

// EventLog appends typed events; *sqlite.DB implements it.
type EventLog interface {
	PutEvent(ctx context.Context, ts time.Time, typ string, payload any) error
}

// Record validates f, counts it, and appends it to log when one is configured.
func Record(ctx context.Context, log EventLog, f Feedback) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.At.IsZero() {
		f.At = time.Now().UTC()
	}
	metrics.IncFeedback(string(f.Action))
	logging.Info("recommendation_feedback", map[string]any{"source": f.Source, "recommended": f.Recommended, "action": string(f.Action)})
	if log == nil {
		return nil
	}
	return log.PutEvent(ctx, f.At, EventType, f)
}

// Decode parses a stored payload back into a Feedback.
func Decode(payload string) (Feedback, error) {
	var f Feedback
	err := json.Unmarshal([]byte(payload), &f)
	return f, err
}
