// Package discovery computes the participant-facing view of currently open
// sessions. It is a pure read projection: recomputed on every poll, never
// persisted, and it never creates or implies a claim.
package discovery

import (
	"context"
	"time"

	"campusattend/internal/attendance"
	"campusattend/internal/session"
)

// SessionView augments a session with the polling participant's standing.
type SessionView struct {
	Session           session.Session   `json:"session"`
	AlreadyClaimed    bool              `json:"already_claimed"`
	ClaimedStatus     attendance.Status `json:"claimed_status,omitempty"`
	MinutesSinceStart int               `json:"minutes_since_start"`
	IsLateWindow      bool              `json:"is_late_window"`
	OnTimeMinutesLeft int               `json:"on_time_minutes_left"`
}

// Registry lists currently open sessions.
type Registry interface {
	ListOpenForCourses(ctx context.Context, courseIDs []string, asOf time.Time) ([]session.Session, error)
}

// Ledger reads existing claim statuses.
type Ledger interface {
	StatusesFor(ctx context.Context, participantID string, sessionIDs []string) (map[string]attendance.Status, error)
}

// Directory resolves a participant's enrolled courses.
type Directory interface {
	CoursesFor(ctx context.Context, participantID string) ([]string, error)
}

// Service answers discovery polls.
type Service struct {
	registry  Registry
	claims    Ledger
	directory Directory
	window    time.Duration
}

// NewService creates a discovery service. window is the on-time window used
// to annotate views; zero means the default.
func NewService(registry Registry, claims Ledger, directory Directory, window time.Duration) *Service {
	if window <= 0 {
		window = attendance.DefaultOnTimeWindow
	}
	return &Service{registry: registry, claims: claims, directory: directory, window: window}
}

// Poll returns the open sessions visible to the participant at asOf. When
// courseIDs is empty the participant's enrolled courses are used.
func (s *Service) Poll(ctx context.Context, participantID string, courseIDs []string, asOf time.Time) ([]SessionView, error) {
	if len(courseIDs) == 0 {
		var err error
		courseIDs, err = s.directory.CoursesFor(ctx, participantID)
		if err != nil {
			return nil, err
		}
	}
	sessions, err := s.registry.ListOpenForCourses(ctx, courseIDs, asOf)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	claimed, err := s.claims.StatusesFor(ctx, participantID, ids)
	if err != nil {
		return nil, err
	}

	windowMin := int(s.window.Minutes())
	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		elapsed := int(asOf.Sub(sess.StartsAt).Minutes())
		if elapsed < 0 {
			elapsed = 0
		}
		left := windowMin - elapsed
		if left < 0 {
			left = 0
		}
		view := SessionView{
			Session:           sess,
			MinutesSinceStart: elapsed,
			IsLateWindow:      elapsed > windowMin,
			OnTimeMinutesLeft: left,
		}
		if st, ok := claimed[sess.ID]; ok {
			view.AlreadyClaimed = true
			view.ClaimedStatus = st
		}
		views = append(views, view)
	}
	return views, nil
}
