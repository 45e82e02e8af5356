package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campusattend/internal/geo"
	"campusattend/internal/session"
)

var (
	anchorLat = 12.9716
	anchorLon = 77.5946
	anchor    = geo.Point{Lat: anchorLat, Lon: anchorLon}

	sessionStart = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	sessionEnd   = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
)

func testSession() session.Session {
	lat, lon := anchorLat, anchorLon
	return session.Session{
		ID:          "sess-1",
		CourseID:    "course-1",
		PresenterID: "presenter-1",
		Date:        session.DateOf(sessionStart),
		StartsAt:    sessionStart,
		EndsAt:      sessionEnd,
		AnchorLat:   &lat,
		AnchorLon:   &lon,
		Open:        true,
	}
}

// pointAtMeters returns a point roughly d meters north of the anchor.
func pointAtMeters(d float64) geo.Point {
	return geo.Point{Lat: anchorLat + d/111194.93, Lon: anchorLon}
}

func TestEvaluateStatusBoundaries(t *testing.T) {
	c := NewClassifier(0, 0)
	tests := []struct {
		name        string
		submittedAt time.Time
		status      Status
		minutes     int
	}{
		{"at start", sessionStart, StatusOnTime, 0},
		{"seven minutes in", sessionStart.Add(7 * time.Minute), StatusOnTime, 7},
		{"exactly ten minutes", sessionStart.Add(10 * time.Minute), StatusOnTime, 10},
		{"ten and a half minutes floors to ten", sessionStart.Add(10*time.Minute + 30*time.Second), StatusOnTime, 10},
		{"eleven minutes", sessionStart.Add(11 * time.Minute), StatusLate, 11},
		{"before nominal start", sessionStart.Add(-5 * time.Minute), StatusOnTime, 0},
		{"at the final second", sessionEnd, StatusLate, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := c.Evaluate(testSession(), anchor, tt.submittedAt)
			require.NoError(t, err)
			require.Equal(t, tt.status, eval.Status)
			require.Equal(t, tt.minutes, eval.MinutesSinceStart)
		})
	}
}

func TestEvaluateRejectsAfterEnd(t *testing.T) {
	c := NewClassifier(0, 0)
	_, err := c.Evaluate(testSession(), anchor, sessionEnd.Add(time.Second))
	require.ErrorIs(t, err, ErrSessionEnded)
}

func TestEvaluateTimingCheckedBeforeDistance(t *testing.T) {
	// A stale submission from far away must get the timing error, not a
	// misleading distance error.
	c := NewClassifier(0, 0)
	_, err := c.Evaluate(testSession(), pointAtMeters(500), sessionEnd.Add(5*time.Minute))
	require.ErrorIs(t, err, ErrSessionEnded)
}

func TestEvaluateDistance(t *testing.T) {
	c := NewClassifier(0, 0)

	eval, err := c.Evaluate(testSession(), pointAtMeters(10), sessionStart.Add(7*time.Minute))
	require.NoError(t, err)
	require.InDelta(t, 10, eval.DistanceM, 0.1)

	_, err = c.Evaluate(testSession(), pointAtMeters(20), sessionStart.Add(7*time.Minute))
	var tooFar *TooFarError
	require.ErrorAs(t, err, &tooFar)
	require.InDelta(t, 20, tooFar.DistanceM, 0.1)
	require.Equal(t, DefaultRadiusM, tooFar.RadiusM)
}

func TestEvaluateRadiusBoundaryInclusive(t *testing.T) {
	// A submission at exactly the radius is accepted; any farther is not.
	loc := pointAtMeters(15)
	dist := geo.Distance(anchor, loc)

	at := NewClassifier(dist, 0)
	_, err := at.Evaluate(testSession(), loc, sessionStart.Add(time.Minute))
	require.NoError(t, err)

	justUnder := NewClassifier(dist-0.1, 0)
	_, err = justUnder.Evaluate(testSession(), loc, sessionStart.Add(time.Minute))
	var tooFar *TooFarError
	require.ErrorAs(t, err, &tooFar)
}

func TestEvaluateMissingAnchor(t *testing.T) {
	c := NewClassifier(0, 0)
	sess := testSession()
	sess.AnchorLat, sess.AnchorLon = nil, nil

	// Never falls back to an unverified accept.
	_, err := c.Evaluate(sess, anchor, sessionStart.Add(time.Minute))
	require.ErrorIs(t, err, ErrAnchorUnavailable)
}

func TestStatusWeight(t *testing.T) {
	require.Equal(t, 1.0, StatusOnTime.Weight())
	require.Equal(t, 0.5, StatusLate.Weight())
}
