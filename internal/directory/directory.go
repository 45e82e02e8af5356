// Package directory consults the campus directory for enrollment and course
// ownership. The data is owned elsewhere; this core only reads it.
package directory

import (
	"context"
	"database/sql"
	"errors"
)

// Lookup answers point queries against the directory.
type Lookup interface {
	IsEnrolled(ctx context.Context, participantID, courseID string) (bool, error)
	CoursesFor(ctx context.Context, participantID string) ([]string, error)
	OwnsCourse(ctx context.Context, presenterID, courseID string) (bool, error)
}

// PG reads the directory's enrollments and courses tables.
type PG struct {
	db *sql.DB
}

// NewPG creates a Postgres-backed lookup.
func NewPG(db *sql.DB) *PG {
	return &PG{db: db}
}

// IsEnrolled reports whether the participant has an active enrollment in the
// course.
func (p *PG) IsEnrolled(ctx context.Context, participantID, courseID string) (bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT 1 FROM enrollments
		WHERE participant_id = $1 AND course_id = $2 AND active = TRUE
	`, participantID, courseID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CoursesFor returns the course ids the participant is actively enrolled in.
func (p *PG) CoursesFor(ctx context.Context, participantID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT course_id FROM enrollments
		WHERE participant_id = $1 AND active = TRUE
		ORDER BY course_id
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// OwnsCourse reports whether the presenter owns the course.
func (p *PG) OwnsCourse(ctx context.Context, presenterID, courseID string) (bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT 1 FROM courses
		WHERE id = $1 AND presenter_id = $2
	`, courseID, presenterID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
