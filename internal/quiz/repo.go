package quiz

import (
	"context"
	"time"
)

// AttemptListOpts filters instructor dashboard listings.
type AttemptListOpts struct {
	QuizID    string
	StudentID string
	Status    AttemptStatus
	Limit     int
	Offset    int
}

// AttemptStore persists attempts. Implementations must make
// EnrollAttempt atomic per (quiz, student) and guard every mutation on
// current status and version, so concurrent autosave/submit races
// resolve at the storage layer rather than by in-process locking. The
// at argument is the caller's clock; stores never stamp their own time.
type AttemptStore interface {
	// EnrollAttempt inserts a new in-progress attempt unless a row for
	// (QuizID, StudentID) already exists; it returns the surviving row
	// and whether this call created it.
	EnrollAttempt(ctx context.Context, a Attempt) (Attempt, bool, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	// UpdateAnswer splices one answer into the stored list atomically,
	// iff the attempt is still in progress. Two concurrent calls for
	// different questions both take effect.
	UpdateAnswer(ctx context.Context, id string, ans Answer, at time.Time) (Attempt, error)
	// UpdateAnswers replaces the whole answer list iff the attempt is
	// still in progress (compare-and-swap on status).
	UpdateAnswers(ctx context.Context, id string, answers []Answer, at time.Time) (Attempt, error)
	// FinalizeSubmit transitions in_progress -> submitted with the graded
	// score and frozen breakdown. The write is compare-and-swapped on
	// version: if another write landed since the caller read version,
	// it fails with ErrStaleAttempt so the caller can re-grade the fresh
	// answers instead of freezing a breakdown that no longer matches.
	FinalizeSubmit(ctx context.Context, id string, version int64, score float64, breakdown []QuestionResult, at time.Time) (Attempt, error)
	// AbandonAttempt force-sets abandoned unless already submitted.
	AbandonAttempt(ctx context.Context, id string, at time.Time) (Attempt, error)
	// SetScore overwrites the stored score; a non-nil breakdown replaces
	// the frozen one (re-grade), nil leaves it untouched (manual override).
	SetScore(ctx context.Context, id string, score float64, breakdown []QuestionResult, at time.Time) (Attempt, error)
	DeleteAttempt(ctx context.Context, id string) error
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
}

// spliceAnswer returns a copy of answers with ans replacing its
// question's entry, or appended if the question has no entry yet.
func spliceAnswer(answers []Answer, ans Answer) []Answer {
	out := append([]Answer(nil), answers...)
	for i := range out {
		if out[i].QuestionID == ans.QuestionID {
			out[i] = ans
			return out
		}
	}
	return append(out, ans)
}

// QuizCatalog is the external quiz definition store, read-only here.
type QuizCatalog interface {
	GetQuiz(ctx context.Context, id string) (Quiz, error)
}

// Directory answers enrollment and staffing questions; user and course
// management live outside this core.
type Directory interface {
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	IsTeacherOfCourse(ctx context.Context, courseID, userID string) (bool, error)
}

// PasswordVerifier checks a plaintext quiz password against its stored
// hash.
type PasswordVerifier func(plaintext, hash string) bool
