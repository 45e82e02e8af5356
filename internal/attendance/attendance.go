package attendance

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Status classifies an accepted claim. It is fixed at submission time and
// never revised.
type Status string

const (
	StatusOnTime Status = "on-time"
	StatusLate   Status = "late"
)

// Weight returns the credit attached to a status: full for on-time, half for
// late. It is derived, never stored.
func (s Status) Weight() float64 {
	if s == StatusOnTime {
		return 1.0
	}
	return 0.5
}

// Claim is the single attendance record for a (session, participant) pair.
// The raw location sample is retained for audit.
type Claim struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	ParticipantID     string    `json:"participant_id"`
	Status            Status    `json:"status"`
	SubmittedAt       time.Time `json:"submitted_at"`
	DistanceM         float64   `json:"distance_m"`
	MinutesSinceStart int       `json:"minutes_since_start"`
	Lat               float64   `json:"lat"`
	Lon               float64   `json:"lon"`
	CreatedAt         time.Time `json:"created_at"`
}

var (
	// ErrSessionNotFound is returned when no session matches the id or code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned when the session was explicitly closed.
	ErrSessionClosed = errors.New("session is closed")
	// ErrSessionEnded is returned when the submission arrives after the
	// session's end time.
	ErrSessionEnded = errors.New("session has ended")
	// ErrNotEnrolled is returned when the participant has no active
	// enrollment in the session's course.
	ErrNotEnrolled = errors.New("no active enrollment in this course")
	// ErrAnchorUnavailable is returned when the session carries no usable
	// anchor location; claims are never accepted unverified.
	ErrAnchorUnavailable = errors.New("session anchor location unavailable")

	// errDuplicateClaim signals that the (session, participant) unique index
	// rejected an insert; the losing side of a race sees this.
	errDuplicateClaim = errors.New("claim already recorded")
)

// TooFarError rejects a claim outside the geofence, carrying the measured
// distance so the caller can display it.
type TooFarError struct {
	DistanceM float64
	RadiusM   float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("%.0f m from anchor, must be within %.0f m", math.Round(e.DistanceM), e.RadiusM)
}

// AlreadyClaimedError reports an existing claim for the pair. It is
// informational: the original status is returned, nothing is modified.
type AlreadyClaimedError struct {
	Status Status
}

func (e *AlreadyClaimedError) Error() string {
	return "attendance already recorded as " + string(e.Status)
}
