package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"academy/internal/checkin"
)

const dateLayout = "2006-01-02"

// Repository persists attendance records in Postgres. It owns the
// (student, class, date) uniqueness invariant; the verifier only
// proposes writes.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// TryInsert writes a record unless one already exists for the same
// student, class and day. The insert is conditional in a single
// statement, so two racing scans can never both land.
func (r *Repository) TryInsert(ctx context.Context, o checkin.Outcome) (bool, *checkin.Outcome, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, class_id, class_date, status, check_in_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, class_id, class_date) DO NOTHING
	`, uuid.NewString(), o.StudentID, o.ClassID, o.Date, string(o.Status), o.CheckInTime)
	if err != nil {
		return false, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, err
	}
	if n == 1 {
		return true, nil, nil
	}
	existing, err := r.Find(ctx, o.StudentID, o.ClassID, o.Date)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// Find returns the record for a student's class day, nil when absent.
func (r *Repository) Find(ctx context.Context, studentID, classID, date string) (*checkin.Outcome, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, class_id, class_date, status, check_in_time
		FROM attendance_records
		WHERE student_id = $1 AND class_id = $2 AND class_date = $3
	`, studentID, classID, date)
	o, err := scanOutcome(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// ListByClass returns a class day's records, newest scan first.
func (r *Repository) ListByClass(ctx context.Context, classID, date string, limit, offset int) ([]checkin.Outcome, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, class_id, class_date, status, check_in_time
		FROM attendance_records
		WHERE class_id = $1 AND class_date = $2
		ORDER BY check_in_time DESC
		LIMIT $3 OFFSET $4
	`, classID, date, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []checkin.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (*checkin.Outcome, error) {
	var (
		o      checkin.Outcome
		day    time.Time
		status string
	)
	if err := row.Scan(&o.StudentID, &o.ClassID, &day, &status, &o.CheckInTime); err != nil {
		return nil, err
	}
	o.Date = day.Format(dateLayout)
	o.Status = checkin.Status(status)
	return &o, nil
}
