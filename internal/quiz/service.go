// Package quiz owns the attempt lifecycle: a timed assessment session
// per student, driven as a strict state machine against the quiz's
// wall-clock window. Quizzes, enrollment and staffing are external
// collaborators consumed through interfaces.
package quiz

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/classware/classware-lms/internal/grading"
)

// Service is the attempt state machine. It holds no mutable state of
// its own; correctness under concurrent requests relies on the store's
// atomic upsert and status-guarded updates.
type Service struct {
	attempts AttemptStore
	quizzes  QuizCatalog
	dir      Directory
	grader   *grading.Grader
	verify   PasswordVerifier
	now      func() time.Time
	grace    time.Duration
	log      *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option  { return func(s *Service) { s.now = now } }
func WithEnrollGrace(d time.Duration) Option { return func(s *Service) { s.grace = d } }
func WithLogger(l *slog.Logger) Option       { return func(s *Service) { s.log = l } }
func WithPasswordVerifier(v PasswordVerifier) Option {
	return func(s *Service) { s.verify = v }
}

func NewService(attempts AttemptStore, quizzes QuizCatalog, dir Directory, opts ...Option) *Service {
	s := &Service{
		attempts: attempts,
		quizzes:  quizzes,
		dir:      dir,
		grader:   grading.NewGrader(),
		verify: func(plaintext, hash string) bool {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
		},
		now:   time.Now,
		grace: DefaultEnrollGrace,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EnrollRequest carries everything Enroll needs about the caller.
type EnrollRequest struct {
	QuizID    string
	StudentID string
	Role      Role
	Password  string
	UserAgent string
	IPAddress string
}

// Enroll starts (or resumes) the caller's attempt. Instructors of the
// owning course and admins may preview at any time; students pass
// enrollment, password and window checks. Enroll is idempotent while an
// attempt is in progress and permanently refused once it is terminal.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (Attempt, error) {
	q, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return Attempt{}, errNotFound(msgQuizNotFound)
	}

	staff, err := s.isCourseStaff(ctx, req.Role, q.CourseID, req.StudentID)
	if err != nil {
		return Attempt{}, err
	}
	if !staff {
		enrolled, err := s.dir.IsEnrolled(ctx, req.StudentID, q.CourseID)
		if err != nil {
			return Attempt{}, err
		}
		if !enrolled {
			return Attempt{}, errForbidden(msgNotEnrolled)
		}
		if q.PasswordHash != "" && !s.verify(req.Password, q.PasswordHash) {
			return Attempt{}, errForbidden(msgBadPassword)
		}
		if err := enrollOpen(q, s.now(), s.grace); err != nil {
			return Attempt{}, err
		}
	}

	now := s.now()
	a, created, err := s.attempts.EnrollAttempt(ctx, Attempt{
		ID:        uuid.NewString(),
		QuizID:    q.ID,
		StudentID: req.StudentID,
		Status:    StatusInProgress,
		Answers:   []Answer{},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Attempt{}, err
	}
	if !created {
		switch a.Status {
		case StatusSubmitted:
			return Attempt{}, errConflict(msgAlreadyCompleted)
		case StatusAbandoned:
			return Attempt{}, errConflict(msgBanned)
		case StatusInProgress:
			// resume
			return a, nil
		}
	}
	s.log.Info("attempt enrolled", "attempt", a.ID, "quiz", q.ID, "student", req.StudentID)
	return a, nil
}

// Autosave updates exactly one answer in place, preserving the rest.
// Meant for frequent low-latency background saves. The splice happens
// inside the store, so two autosaves for different questions can
// interleave freely without one clobbering the other.
func (s *Service) Autosave(ctx context.Context, attemptID string, ans Answer, studentID string) (Progress, error) {
	a, q, err := s.writableAttempt(ctx, attemptID, studentID)
	if err != nil {
		return Progress{}, err
	}
	if err := validateAnswer(q, ans); err != nil {
		return Progress{}, err
	}

	updated, err := s.attempts.UpdateAnswer(ctx, a.ID, ans, s.now())
	if err != nil {
		return Progress{}, err
	}
	answered := 0
	for _, x := range updated.Answers {
		if len(x.Selected) > 0 {
			answered++
		}
	}
	return Progress{Answered: answered, Total: len(q.Questions)}, nil
}

// Save bulk-replaces the answer list. The submitted list must mirror
// the snapshot: same length, same question order. Saving an identical
// payload twice is a no-op in effect.
func (s *Service) Save(ctx context.Context, attemptID string, answers []Answer, studentID string) (Attempt, error) {
	a, q, err := s.writableAttempt(ctx, attemptID, studentID)
	if err != nil {
		return Attempt{}, err
	}
	if len(answers) != len(q.Questions) {
		return Attempt{}, errValidation(msgAnswerCount)
	}
	for i, ans := range answers {
		if ans.QuestionID != q.Questions[i].ID {
			return Attempt{}, errValidation(msgUnknownQuestion)
		}
		if err := validateAnswer(q, ans); err != nil {
			return Attempt{}, err
		}
	}
	return s.attempts.UpdateAnswers(ctx, a.ID, answers, s.now())
}

// submitRetries bounds grade-and-finalize retries when autosaves keep
// landing between the read and the finalize.
const submitRetries = 3

// Submit is the terminal student transition: it grades the stored
// answers against the snapshot and freezes status, score and the
// per-question breakdown. The finalize is version-checked: if an
// autosave commits after the answers were read, the whole pass reruns
// against the fresh answers, so the frozen breakdown always matches
// what is stored. Submitting after EndTime is rejected exactly like a
// save.
func (s *Service) Submit(ctx context.Context, attemptID, studentID string) (Attempt, error) {
	for i := 0; i < submitRetries; i++ {
		a, q, err := s.writableAttempt(ctx, attemptID, studentID)
		if err != nil {
			return Attempt{}, err
		}
		if len(a.Answers) != len(q.Questions) {
			return Attempt{}, errValidation(msgAnswerCount)
		}

		sum := s.grader.Grade(gradingQuestions(q), gradingAnswers(a.Answers))
		updated, err := s.attempts.FinalizeSubmit(ctx, a.ID, a.Version, sum.TotalScore, breakdown(sum), s.now())
		if errors.Is(err, ErrStaleAttempt) {
			continue
		}
		if err != nil {
			return Attempt{}, err
		}
		s.log.Info("attempt submitted", "attempt", a.ID, "quiz", q.ID,
			"score", sum.TotalScore, "of", sum.TotalQuizScore)
		return updated, nil
	}
	return Attempt{}, errConflict(msgConcurrent)
}

// GetAttempt returns an attempt to its owner or to staff of the owning
// course.
func (s *Service) GetAttempt(ctx context.Context, attemptID, callerID string, role Role) (Attempt, error) {
	a, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.StudentID == callerID {
		return a, nil
	}
	q, err := s.quizzes.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, errNotFound(msgQuizNotFound)
	}
	if err := s.authorizeStaff(ctx, role, q.CourseID, callerID); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// writableAttempt loads the attempt and its quiz and enforces the
// shared ownership/status/deadline preconditions of every student
// mutation.
func (s *Service) writableAttempt(ctx context.Context, attemptID, studentID string) (Attempt, Quiz, error) {
	a, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, Quiz{}, err
	}
	if a.StudentID != studentID {
		return Attempt{}, Quiz{}, errForbidden(msgNotOwner)
	}
	switch a.Status {
	case StatusAbandoned:
		return Attempt{}, Quiz{}, errConflict(msgBanned)
	case StatusSubmitted:
		return Attempt{}, Quiz{}, errConflict(msgAlreadySubmitted)
	case StatusInProgress:
	}
	q, err := s.quizzes.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, Quiz{}, errNotFound(msgQuizNotFound)
	}
	if err := writeOpen(q, s.now()); err != nil {
		return Attempt{}, Quiz{}, err
	}
	return a, q, nil
}

// isCourseStaff resolves the instructor-preview / override privilege.
// Unknown roles are denied outright.
func (s *Service) isCourseStaff(ctx context.Context, role Role, courseID, userID string) (bool, error) {
	switch role {
	case RoleAdmin:
		return true, nil
	case RoleTeacher:
		return s.dir.IsTeacherOfCourse(ctx, courseID, userID)
	case RoleStudent:
		return false, nil
	default:
		return false, errForbidden(msgUnknownRole)
	}
}

func validateAnswer(q Quiz, ans Answer) error {
	var qu *Question
	for i := range q.Questions {
		if q.Questions[i].ID == ans.QuestionID {
			qu = &q.Questions[i]
			break
		}
	}
	if qu == nil {
		return errValidation(msgUnknownQuestion)
	}
	for _, idx := range ans.Selected {
		if idx < 0 || idx >= len(qu.Options) {
			return errValidation(msgMalformedAnswer)
		}
	}
	return nil
}

func gradingQuestions(q Quiz) []grading.Q {
	out := make([]grading.Q, len(q.Questions))
	for i, qu := range q.Questions {
		out[i] = grading.Q{ID: qu.ID, Type: string(qu.Type), Correct: qu.Correct, Points: qu.Points}
	}
	return out
}

func gradingAnswers(answers []Answer) []grading.A {
	out := make([]grading.A, len(answers))
	for i, a := range answers {
		out[i] = grading.A{QuestionID: a.QuestionID, Selected: a.Selected}
	}
	return out
}

func breakdown(sum grading.Summary) []QuestionResult {
	out := make([]QuestionResult, len(sum.Results))
	for i, r := range sum.Results {
		out[i] = QuestionResult{
			QuestionID:   r.QuestionID,
			Selected:     r.Selected,
			Correct:      r.Correct,
			PointsEarned: r.PointsEarned,
		}
	}
	return out
}
