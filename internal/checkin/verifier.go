package checkin

import (
	"context"
	"errors"
	"log"
	"time"
)

// Student is the roster's view of a student.
type Student struct {
	ID   string
	Name string
}

// Class is the roster's view of a class.
type Class struct {
	ID       string
	Name     string
	StartsAt time.Time
}

// Roster resolves students and classes. Absent rows come back as
// (nil, nil), errors are adapter faults.
type Roster interface {
	FindStudent(ctx context.Context, studentID string) (*Student, error)
	FindClass(ctx context.Context, classID string) (*Class, error)
}

// Outcome is the attendance record produced by a successful check-in.
type Outcome struct {
	StudentID   string    `json:"student_id"`
	ClassID     string    `json:"class_id"`
	Date        string    `json:"date"`
	Status      Status    `json:"status"`
	CheckInTime time.Time `json:"check_in_time"`
}

// AttendanceLog persists outcomes. TryInsert must be atomic on
// (studentID, classID, date): the store, not the verifier, is the
// authority on duplicates.
type AttendanceLog interface {
	TryInsert(ctx context.Context, o Outcome) (inserted bool, existing *Outcome, err error)
	Find(ctx context.Context, studentID, classID, date string) (*Outcome, error)
}

// Notifier receives late check-ins, best effort. Failures are logged by
// the verifier and never surfaced to the student.
type Notifier interface {
	LateCheckIn(ctx context.Context, o Outcome) error
}

// VerifyResult is returned to the scanning student on success.
type VerifyResult struct {
	Status      Status    `json:"status"`
	CheckInTime time.Time `json:"check_in_time"`
	StudentName string    `json:"student_name"`
	ClassName   string    `json:"class_name"`
}

// Verifier turns a scanned payload into either a committed attendance
// record or a rejection. It reads tokens but never mutates them;
// invalidation belongs to the issuer's refresh path.
type Verifier struct {
	store          *TokenStore
	signer         Signer
	policy         Policy
	roster         Roster
	attendance     AttendanceLog
	notifier       Notifier
	adapterTimeout time.Duration
	now            func() time.Time
}

// NewVerifier wires a verifier. notifier may be nil when no downstream
// messaging is configured.
func NewVerifier(store *TokenStore, signer Signer, policy Policy, roster Roster, attendance AttendanceLog, notifier Notifier, adapterTimeout time.Duration) *Verifier {
	return &Verifier{
		store:          store,
		signer:         signer,
		policy:         policy,
		roster:         roster,
		attendance:     attendance,
		notifier:       notifier,
		adapterTimeout: adapterTimeout,
		now:            time.Now,
	}
}

// VerifyScan validates a scan and commits the attendance record.
// Checks run in a fixed order and short-circuit on the first failure:
// payload shape, authenticity tag, live token, nonce freshness, roster
// membership, duplicate pre-check, classification, atomic insert.
// The scan time is server-observed; client clocks are never trusted.
func (v *Verifier) VerifyScan(ctx context.Context, payload, studentID string) (VerifyResult, error) {
	scanned, err := ParsePayload(payload)
	if err != nil {
		return VerifyResult{}, err
	}

	if !v.signer.Verify(scanned) {
		return VerifyResult{}, ErrTamperedToken
	}

	// One snapshot of the current token and of the clock; every later
	// step uses these, so a concurrent refresh cannot split a single
	// verification across two generations.
	scannedAt := v.now()
	current, ok := v.store.Get(scanned.ClassID, scanned.Date, scannedAt)
	if !ok {
		return VerifyResult{}, ErrNoActiveToken
	}

	// A tag-valid, unexpired payload can still be dead: refresh replaces
	// the nonce, and only the current nonce passes.
	if scanned.Nonce != current.Nonce || scanned.AcademyID != current.AcademyID {
		return VerifyResult{}, ErrStaleToken
	}

	student, err := v.findStudent(ctx, studentID)
	if err != nil {
		return VerifyResult{}, err
	}
	class, err := v.findClass(ctx, scanned.ClassID)
	if err != nil {
		return VerifyResult{}, err
	}

	if existing, err := v.findExisting(ctx, studentID, scanned.ClassID, scanned.Date); err != nil {
		return VerifyResult{}, err
	} else if existing != nil {
		return VerifyResult{}, &AlreadyCheckedInError{At: existing.CheckInTime}
	}

	outcome := Outcome{
		StudentID:   studentID,
		ClassID:     scanned.ClassID,
		Date:        scanned.Date,
		Status:      v.policy.Classify(current, scannedAt),
		CheckInTime: scannedAt,
	}

	inserted, existing, err := v.tryInsert(ctx, outcome)
	if err != nil {
		return VerifyResult{}, err
	}
	if !inserted {
		// Lost the race to a concurrent scan; same answer as the
		// pre-check, not a server fault.
		at := scannedAt
		if existing != nil {
			at = existing.CheckInTime
		}
		return VerifyResult{}, &AlreadyCheckedInError{At: at}
	}

	if outcome.Status == StatusLate && v.notifier != nil {
		if err := v.notifier.LateCheckIn(ctx, outcome); err != nil {
			log.Printf("late check-in notify failed for %s/%s: %v", studentID, scanned.ClassID, err)
		}
	}

	return VerifyResult{
		Status:      outcome.Status,
		CheckInTime: scannedAt,
		StudentName: student.Name,
		ClassName:   class.Name,
	}, nil
}

func (v *Verifier) findStudent(ctx context.Context, studentID string) (*Student, error) {
	ctx, cancel := context.WithTimeout(ctx, v.adapterTimeout)
	defer cancel()
	student, err := v.roster.FindStudent(ctx, studentID)
	if err != nil {
		return nil, mapAdapterErr(err)
	}
	if student == nil {
		return nil, ErrUnknownStudent
	}
	return student, nil
}

func (v *Verifier) findClass(ctx context.Context, classID string) (*Class, error) {
	ctx, cancel := context.WithTimeout(ctx, v.adapterTimeout)
	defer cancel()
	class, err := v.roster.FindClass(ctx, classID)
	if err != nil {
		return nil, mapAdapterErr(err)
	}
	if class == nil {
		return nil, ErrUnknownClass
	}
	return class, nil
}

func (v *Verifier) findExisting(ctx context.Context, studentID, classID, date string) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, v.adapterTimeout)
	defer cancel()
	existing, err := v.attendance.Find(ctx, studentID, classID, date)
	if err != nil {
		return nil, mapAdapterErr(err)
	}
	return existing, nil
}

func (v *Verifier) tryInsert(ctx context.Context, o Outcome) (bool, *Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, v.adapterTimeout)
	defer cancel()
	inserted, existing, err := v.attendance.TryInsert(ctx, o)
	if err != nil {
		return false, nil, mapAdapterErr(err)
	}
	return inserted, existing, nil
}

// mapAdapterErr surfaces deadline hits distinctly so callers can decide
// whether to retry the whole verification. The verifier itself never
// retries: the atomic insert makes a caller-side retry land safely in
// AlreadyCheckedIn if the first attempt actually committed.
func mapAdapterErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrAdapterTimeout
	}
	return err
}
