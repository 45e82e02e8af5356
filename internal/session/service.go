package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"campusattend/internal/geo"
)

const (
	codeLength = 6
	// codeAlphabet drops 0/O/1/I so codes stay typeable from a projector.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 5
)

// Store persists sessions. Insert must fail with errCodeTaken when the
// (code, date) unique index rejects the row.
type Store interface {
	Insert(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	SetClosed(ctx context.Context, id string) error
	FindOpenByCode(ctx context.Context, code string, date time.Time) (Session, error)
	ListOpenForCourses(ctx context.Context, courseIDs []string, asOf time.Time) ([]Session, error)
}

// Directory resolves course ownership; the directory service owns the data.
type Directory interface {
	OwnsCourse(ctx context.Context, presenterID, courseID string) (bool, error)
}

// Service is the session registry.
type Service struct {
	store     Store
	directory Directory
}

// NewService creates a registry backed by a store and the course directory.
func NewService(store Store, directory Directory) *Service {
	return &Service{store: store, directory: directory}
}

// OpenParams are the presenter-supplied attributes of a new session.
type OpenParams struct {
	CourseID    string
	PresenterID string
	StartsAt    time.Time
	EndsAt      time.Time
	Anchor      *geo.Point
	Room        string
	Topic       string
}

// Open creates a session with a freshly generated code. Code collisions are
// detected by the storage unique index and resolved by regenerating, up to
// maxCodeAttempts.
func (s *Service) Open(ctx context.Context, p OpenParams) (Session, error) {
	if p.CourseID == "" || p.PresenterID == "" {
		return Session{}, errors.New("course and presenter required")
	}
	if !p.EndsAt.After(p.StartsAt) {
		return Session{}, ErrInvalidTimeRange
	}
	owns, err := s.directory.OwnsCourse(ctx, p.PresenterID, p.CourseID)
	if err != nil {
		return Session{}, fmt.Errorf("course ownership lookup: %w", err)
	}
	if !owns {
		return Session{}, ErrForbidden
	}

	sess := Session{
		CourseID:    p.CourseID,
		PresenterID: p.PresenterID,
		Date:        DateOf(p.StartsAt),
		StartsAt:    p.StartsAt.UTC(),
		EndsAt:      p.EndsAt.UTC(),
		Open:        true,
	}
	if p.Anchor != nil {
		lat, lon := p.Anchor.Lat, p.Anchor.Lon
		sess.AnchorLat, sess.AnchorLon = &lat, &lon
	}
	if p.Room != "" {
		sess.Room = &p.Room
	}
	if p.Topic != "" {
		sess.Topic = &p.Topic
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		sess.ID = uuid.NewString()
		sess.Code = newCode()
		inserted, err := s.store.Insert(ctx, sess)
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		return inserted, nil
	}
	return Session{}, ErrCodeGenerationExhausted
}

// Close marks a session closed. Only the presenter who opened it may close it.
// Closing an already-closed session is a no-op.
func (s *Service) Close(ctx context.Context, id, presenterID string) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.PresenterID != presenterID {
		return ErrForbidden
	}
	if !sess.Open {
		return nil
	}
	return s.store.SetClosed(ctx, id)
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.store.Get(ctx, id)
}

// FindByCode resolves an open session from its human-entered code. Codes are
// case-insensitive and scoped to a single calendar date.
func (s *Service) FindByCode(ctx context.Context, code string, date time.Time) (Session, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Session{}, ErrNotFound
	}
	return s.store.FindOpenByCode(ctx, code, DateOf(date))
}

// ListOpenForCourses returns sessions on asOf's date whose [start, end]
// interval contains asOf, end inclusive.
func (s *Service) ListOpenForCourses(ctx context.Context, courseIDs []string, asOf time.Time) ([]Session, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	return s.store.ListOpenForCourses(ctx, courseIDs, asOf.UTC())
}

func newCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}
