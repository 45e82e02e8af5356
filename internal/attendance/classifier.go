package attendance

import (
	"time"

	"campusattend/internal/geo"
	"campusattend/internal/session"
)

// Verification thresholds. Fixed in observed behavior; kept behind the
// Classifier struct so they can become per-deployment config.
const (
	DefaultRadiusM      = 15.0
	DefaultOnTimeWindow = 10 * time.Minute
)

// Classifier turns a claim's location and timing into an accept/reject
// decision plus a status. It is pure: no clock, no storage.
type Classifier struct {
	RadiusM      float64
	OnTimeWindow time.Duration
}

// NewClassifier returns a classifier with the given thresholds, falling back
// to the defaults for zero values.
func NewClassifier(radiusM float64, onTimeWindow time.Duration) Classifier {
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	if onTimeWindow <= 0 {
		onTimeWindow = DefaultOnTimeWindow
	}
	return Classifier{RadiusM: radiusM, OnTimeWindow: onTimeWindow}
}

// Evaluation is the accepted outcome of a claim.
type Evaluation struct {
	Status            Status
	DistanceM         float64
	MinutesSinceStart int
}

// Evaluate checks a submission against a session. Timing is checked before
// distance so a stale submission against an ended session gets a timing
// error, not a misleading distance error. Early submissions are allowed and
// classify as on-time.
func (c Classifier) Evaluate(sess session.Session, loc geo.Point, submittedAt time.Time) (Evaluation, error) {
	if submittedAt.After(sess.EndsAt) {
		return Evaluation{}, ErrSessionEnded
	}

	anchor, ok := sess.Anchor()
	if !ok {
		return Evaluation{}, ErrAnchorUnavailable
	}

	dist := geo.Distance(anchor, loc)
	if dist > c.RadiusM {
		return Evaluation{}, &TooFarError{DistanceM: dist, RadiusM: c.RadiusM}
	}

	elapsed := int(submittedAt.Sub(sess.StartsAt).Minutes())
	if elapsed < 0 {
		elapsed = 0
	}

	status := StatusOnTime
	if elapsed > c.onTimeMinutes() {
		status = StatusLate
	}
	return Evaluation{Status: status, DistanceM: dist, MinutesSinceStart: elapsed}, nil
}

func (c Classifier) onTimeMinutes() int {
	return int(c.OnTimeWindow.Minutes())
}
