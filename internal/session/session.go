package session

import (
	"errors"
	"time"

	"campusattend/internal/geo"
)

// Session is a time-boxed, location-anchored attendance window for a course.
// Everything except the open flag is immutable after creation.
type Session struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	CourseID    string     `json:"course_id"`
	PresenterID string     `json:"presenter_id"`
	Date        time.Time  `json:"date"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
	AnchorLat   *float64   `json:"anchor_lat,omitempty"`
	AnchorLon   *float64   `json:"anchor_lon,omitempty"`
	Room        *string    `json:"room,omitempty"`
	Topic       *string    `json:"topic,omitempty"`
	Open        bool       `json:"open"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Anchor returns the presenter's anchor location, if one was recorded.
func (s Session) Anchor() (geo.Point, bool) {
	if s.AnchorLat == nil || s.AnchorLon == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *s.AnchorLat, Lon: *s.AnchorLon}, true
}

var (
	// ErrInvalidTimeRange is returned when a session's end does not follow its start.
	ErrInvalidTimeRange = errors.New("session end must be after start")
	// ErrCodeGenerationExhausted is returned when no unique code could be
	// generated within the retry ceiling.
	ErrCodeGenerationExhausted = errors.New("could not generate a unique session code")
	// ErrNotFound is returned when no matching session exists.
	ErrNotFound = errors.New("session not found")
	// ErrForbidden is returned when the caller is not the session's presenter.
	ErrForbidden = errors.New("caller is not the session presenter")

	// errCodeTaken signals a (code, date) collision on insert; the service
	// regenerates and retries.
	errCodeTaken = errors.New("session code already in use today")
)

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
