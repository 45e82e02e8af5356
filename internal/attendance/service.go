package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"campusattend/internal/geo"
	"campusattend/internal/session"
)

// Registry resolves sessions; implemented by the session registry service.
type Registry interface {
	Get(ctx context.Context, id string) (session.Session, error)
	FindByCode(ctx context.Context, code string, date time.Time) (session.Session, error)
}

// Directory answers enrollment lookups; the directory service owns the data.
type Directory interface {
	IsEnrolled(ctx context.Context, participantID, courseID string) (bool, error)
}

// Ledger is the claim storage surface the service needs.
type Ledger interface {
	Insert(ctx context.Context, c Claim) (Claim, error)
	Find(ctx context.Context, sessionID, participantID string) (*Claim, error)
	ListBySession(ctx context.Context, sessionID string) ([]Claim, error)
	ListByParticipant(ctx context.Context, participantID string, from, to time.Time) ([]Claim, error)
}

// Service is the claim ledger: it gates submissions on enrollment and the
// classifier, then commits at most one claim per (session, participant).
type Service struct {
	claims     Ledger
	registry   Registry
	directory  Directory
	classifier Classifier
}

// NewService creates the ledger service.
func NewService(claims Ledger, registry Registry, directory Directory, classifier Classifier) *Service {
	return &Service{claims: claims, registry: registry, directory: directory, classifier: classifier}
}

// SubmitInput identifies the session by id or human code; the server-side
// submission timestamp is authoritative for classification.
type SubmitInput struct {
	SessionID     string
	Code          string
	ParticipantID string
	Location      geo.Point
	SubmittedAt   time.Time
}

// Submit records a claim. The storage unique index arbitrates concurrent
// submissions for the same pair: exactly one insert wins, the loser is told
// the pair is already claimed along with the recorded status.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Claim, error) {
	if in.ParticipantID == "" {
		return Claim{}, errors.New("participant required")
	}

	sess, err := s.resolveSession(ctx, in)
	if err != nil {
		return Claim{}, err
	}
	if !sess.Open {
		return Claim{}, ErrSessionClosed
	}

	enrolled, err := s.directory.IsEnrolled(ctx, in.ParticipantID, sess.CourseID)
	if err != nil {
		return Claim{}, err
	}
	if !enrolled {
		return Claim{}, ErrNotEnrolled
	}

	if existing, err := s.claims.Find(ctx, sess.ID, in.ParticipantID); err != nil {
		return Claim{}, err
	} else if existing != nil {
		return Claim{}, &AlreadyClaimedError{Status: existing.Status}
	}

	eval, err := s.classifier.Evaluate(sess, in.Location, in.SubmittedAt)
	if err != nil {
		return Claim{}, err
	}

	claim := Claim{
		ID:                uuid.NewString(),
		SessionID:         sess.ID,
		ParticipantID:     in.ParticipantID,
		Status:            eval.Status,
		SubmittedAt:       in.SubmittedAt.UTC(),
		DistanceM:         eval.DistanceM,
		MinutesSinceStart: eval.MinutesSinceStart,
		Lat:               in.Location.Lat,
		Lon:               in.Location.Lon,
	}
	inserted, err := s.claims.Insert(ctx, claim)
	if errors.Is(err, errDuplicateClaim) {
		// Lost the insert race; report the winner's status.
		winner, ferr := s.claims.Find(ctx, sess.ID, in.ParticipantID)
		if ferr != nil || winner == nil {
			return Claim{}, &AlreadyClaimedError{}
		}
		return Claim{}, &AlreadyClaimedError{Status: winner.Status}
	}
	if err != nil {
		return Claim{}, err
	}
	return inserted, nil
}

// ListBySession returns the immutable claims recorded for a session.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]Claim, error) {
	return s.claims.ListBySession(ctx, sessionID)
}

// ListByParticipant returns a participant's claims inside a date range.
func (s *Service) ListByParticipant(ctx context.Context, participantID string, from, to time.Time) ([]Claim, error) {
	return s.claims.ListByParticipant(ctx, participantID, from, to)
}

func (s *Service) resolveSession(ctx context.Context, in SubmitInput) (session.Session, error) {
	var (
		sess session.Session
		err  error
	)
	if in.Code != "" {
		sess, err = s.registry.FindByCode(ctx, in.Code, in.SubmittedAt)
	} else {
		sess, err = s.registry.Get(ctx, in.SessionID)
	}
	if errors.Is(err, session.ErrNotFound) {
		return session.Session{}, ErrSessionNotFound
	}
	return sess, err
}
