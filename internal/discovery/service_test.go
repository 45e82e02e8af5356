package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campusattend/internal/attendance"
	"campusattend/internal/session"
)

var start = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func openSession(id, courseID string) session.Session {
	lat, lon := 12.9716, 77.5946
	return session.Session{
		ID:        id,
		Code:      "KXT42W",
		CourseID:  courseID,
		Date:      session.DateOf(start),
		StartsAt:  start,
		EndsAt:    start.Add(time.Hour),
		AnchorLat: &lat,
		AnchorLon: &lon,
		Open:      true,
	}
}

type fakeRegistry struct {
	sessions []session.Session
}

func (f *fakeRegistry) ListOpenForCourses(_ context.Context, courseIDs []string, _ time.Time) ([]session.Session, error) {
	var res []session.Session
	for _, s := range f.sessions {
		for _, id := range courseIDs {
			if s.CourseID == id {
				res = append(res, s)
				break
			}
		}
	}
	return res, nil
}

type fakeLedger struct {
	statuses map[string]attendance.Status
}

func (f *fakeLedger) StatusesFor(_ context.Context, _ string, sessionIDs []string) (map[string]attendance.Status, error) {
	res := make(map[string]attendance.Status)
	for _, id := range sessionIDs {
		if st, ok := f.statuses[id]; ok {
			res[id] = st
		}
	}
	return res, nil
}

type fakeDirectory struct {
	courses []string
}

func (f *fakeDirectory) CoursesFor(_ context.Context, _ string) ([]string, error) {
	return f.courses, nil
}

func newTestService(sessions []session.Session, statuses map[string]attendance.Status) *Service {
	return NewService(
		&fakeRegistry{sessions: sessions},
		&fakeLedger{statuses: statuses},
		&fakeDirectory{courses: []string{"course-1", "course-2"}},
		0,
	)
}

func TestPollAnnotatesViews(t *testing.T) {
	svc := newTestService(
		[]session.Session{openSession("sess-1", "course-1"), openSession("sess-2", "course-2")},
		map[string]attendance.Status{"sess-1": attendance.StatusOnTime},
	)

	views, err := svc.Poll(context.Background(), "stu-1", nil, start.Add(7*time.Minute))
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]SessionView{}
	for _, v := range views {
		byID[v.Session.ID] = v
	}

	claimed := byID["sess-1"]
	require.True(t, claimed.AlreadyClaimed)
	require.Equal(t, attendance.StatusOnTime, claimed.ClaimedStatus)
	require.Equal(t, 7, claimed.MinutesSinceStart)
	require.False(t, claimed.IsLateWindow)
	require.Equal(t, 3, claimed.OnTimeMinutesLeft)

	fresh := byID["sess-2"]
	require.False(t, fresh.AlreadyClaimed)
	require.Empty(t, fresh.ClaimedStatus)
}

func TestPollLateWindowBoundary(t *testing.T) {
	svc := newTestService([]session.Session{openSession("sess-1", "course-1")}, nil)

	views, err := svc.Poll(context.Background(), "stu-1", []string{"course-1"}, start.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.False(t, views[0].IsLateWindow)
	require.Equal(t, 0, views[0].OnTimeMinutesLeft)

	views, err = svc.Poll(context.Background(), "stu-1", []string{"course-1"}, start.Add(11*time.Minute))
	require.NoError(t, err)
	require.True(t, views[0].IsLateWindow)
	require.Equal(t, 0, views[0].OnTimeMinutesLeft)
}

func TestPollExplicitCoursesBypassDirectory(t *testing.T) {
	svc := newTestService([]session.Session{openSession("sess-1", "course-1")}, nil)

	views, err := svc.Poll(context.Background(), "stu-1", []string{"course-9"}, start.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestPollNoOpenSessions(t *testing.T) {
	svc := newTestService(nil, nil)

	views, err := svc.Poll(context.Background(), "stu-1", nil, start)
	require.NoError(t, err)
	require.Nil(t, views)
}
