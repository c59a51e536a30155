package quiz

import "context"

// Instructor override operations. Every one of them re-resolves the
// owning course through the quiz reference and gates on the actor's
// role before touching the attempt.

// Ban marks an attempt abandoned for anti-cheat. It applies to any
// non-submitted attempt, is permanent, and blocks every future enroll
// for that (quiz, student) pair.
func (s *Service) Ban(ctx context.Context, attemptID, actorID string, role Role) (Attempt, error) {
	a, _, err := s.staffAttempt(ctx, attemptID, actorID, role)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, errConflict(msgBanSubmitted)
	}
	banned, err := s.attempts.AbandonAttempt(ctx, a.ID, s.now())
	if err != nil {
		return Attempt{}, err
	}
	s.log.Warn("attempt banned", "attempt", a.ID, "student", a.StudentID, "by", actorID)
	return banned, nil
}

// Delete removes the attempt record. Only allowed once the quiz's
// scored window has fully elapsed; an attempt still inside its window
// cannot be deleted out from under the student.
func (s *Service) Delete(ctx context.Context, attemptID, actorID string, role Role) error {
	a, q, err := s.staffAttempt(ctx, attemptID, actorID, role)
	if err != nil {
		return err
	}
	if !ended(q, s.now()) {
		return errWindow(msgDeleteTooEarly)
	}
	if err := s.attempts.DeleteAttempt(ctx, a.ID); err != nil {
		return err
	}
	s.log.Warn("attempt deleted", "attempt", a.ID, "quiz", q.ID, "by", actorID)
	return nil
}

// Regrade re-runs the grading function against the stored answers and
// snapshot, refreshing score and breakdown. Shares one grader with
// Submit, so a re-grade can never disagree with the original pass.
func (s *Service) Regrade(ctx context.Context, attemptID, actorID string, role Role) (Attempt, error) {
	a, q, err := s.staffAttempt(ctx, attemptID, actorID, role)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusAbandoned {
		return Attempt{}, errConflict(msgRegradeBanned)
	}
	sum := s.grader.Grade(gradingQuestions(q), gradingAnswers(a.Answers))
	return s.attempts.SetScore(ctx, a.ID, sum.TotalScore, breakdown(sum), s.now())
}

// OverrideScore writes the score directly, bypassing the grading
// function. Used for manual adjustment, e.g. partial credit decided
// outside this engine. The frozen breakdown is left untouched.
func (s *Service) OverrideScore(ctx context.Context, attemptID, actorID string, role Role, newScore float64) (Attempt, error) {
	a, _, err := s.staffAttempt(ctx, attemptID, actorID, role)
	if err != nil {
		return Attempt{}, err
	}
	updated, err := s.attempts.SetScore(ctx, a.ID, newScore, nil, s.now())
	if err != nil {
		return Attempt{}, err
	}
	s.log.Info("score overridden", "attempt", a.ID, "score", newScore, "by", actorID)
	return updated, nil
}

// ListAttempts serves instructor dashboards for one quiz.
func (s *Service) ListAttempts(ctx context.Context, actorID string, role Role, opts AttemptListOpts) ([]Attempt, error) {
	if opts.QuizID == "" {
		return nil, errValidation("quiz id required")
	}
	q, err := s.quizzes.GetQuiz(ctx, opts.QuizID)
	if err != nil {
		return nil, errNotFound(msgQuizNotFound)
	}
	if err := s.authorizeStaff(ctx, role, q.CourseID, actorID); err != nil {
		return nil, err
	}
	return s.attempts.ListAttempts(ctx, opts)
}

// staffAttempt loads the attempt plus its quiz and authorizes the actor
// against the owning course.
func (s *Service) staffAttempt(ctx context.Context, attemptID, actorID string, role Role) (Attempt, Quiz, error) {
	a, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, Quiz{}, err
	}
	q, err := s.quizzes.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, Quiz{}, errNotFound(msgQuizNotFound)
	}
	if err := s.authorizeStaff(ctx, role, q.CourseID, actorID); err != nil {
		return Attempt{}, Quiz{}, err
	}
	return a, q, nil
}

func (s *Service) authorizeStaff(ctx context.Context, role Role, courseID, actorID string) error {
	staff, err := s.isCourseStaff(ctx, role, courseID, actorID)
	if err != nil {
		return err
	}
	if !staff {
		return errForbidden(msgNotCourseStaff)
	}
	return nil
}
