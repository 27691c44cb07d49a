package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"academy/internal/checkin"
)

// Instructor represents a staff member allowed to run check-in sessions.
type Instructor struct {
	ID        string
	Name      string
	AcademyID string
}

// Repository resolves students, classes and instructors from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindStudent returns a student by id, nil when not enrolled.
func (r *Repository) FindStudent(ctx context.Context, studentID string) (*checkin.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, name FROM students WHERE student_id = $1
	`, studentID)
	var s checkin.Student
	if err := row.Scan(&s.ID, &s.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// FindClass returns a class by id, nil when absent.
func (r *Repository) FindClass(ctx context.Context, classID string) (*checkin.Class, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT class_id, name, starts_at FROM classes WHERE class_id = $1
	`, classID)
	var c checkin.Class
	if err := row.Scan(&c.ID, &c.Name, &c.StartsAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// FindInstructor returns an instructor by id, nil when absent.
func (r *Repository) FindInstructor(ctx context.Context, instructorID string) (*Instructor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT instructor_id, name, academy_id FROM instructors WHERE instructor_id = $1
	`, instructorID)
	var i Instructor
	if err := row.Scan(&i.ID, &i.Name, &i.AcademyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// SaveRefreshToken stores an instructor's refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, instructorID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (instructor_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, instructorID, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
