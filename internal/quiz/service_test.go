package quiz_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/classware/classware-lms/internal/quiz"
)

/* ---------------- fixtures ---------------- */

var quizStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeDir struct {
	enrolled map[string]bool // studentID|courseID
	teachers map[string]bool // courseID|userID
}

func (d *fakeDir) IsEnrolled(_ context.Context, studentID, courseID string) (bool, error) {
	return d.enrolled[studentID+"|"+courseID], nil
}

func (d *fakeDir) IsTeacherOfCourse(_ context.Context, courseID, userID string) (bool, error) {
	return d.teachers[courseID+"|"+userID], nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type env struct {
	store *quiz.MemoryStore
	dir   *fakeDir
	clock *fakeClock
	svc   *quiz.Service
}

// newEnv wires a service over the in-memory store with a quiz of two
// single-correct questions worth 10 and 20 points, the clock sitting
// five minutes into the enroll window, and student "stu-1" enrolled in
// the owning course.
func newEnv(t *testing.T) *env {
	t.Helper()
	store := quiz.NewMemoryStore()
	store.PutQuiz(quiz.Quiz{
		ID:        "quiz-1",
		CourseID:  "course-1",
		StartTime: quizStart,
		EndTime:   quizStart.Add(time.Hour),
		Questions: []quiz.Question{
			{ID: "q1", Type: quiz.TypeSingle, Options: []string{"a", "b", "c"}, Correct: []int{1}, Points: 10},
			{ID: "q2", Type: quiz.TypeSingle, Options: []string{"a", "b", "c"}, Correct: []int{0}, Points: 20},
		},
	})
	dir := &fakeDir{
		enrolled: map[string]bool{"stu-1|course-1": true, "stu-2|course-1": true},
		teachers: map[string]bool{"course-1|teach-1": true},
	}
	clock := &fakeClock{t: quizStart.Add(5 * time.Minute)}
	svc := quiz.NewService(store, store, dir, quiz.WithClock(clock.Now))
	return &env{store: store, dir: dir, clock: clock, svc: svc}
}

func enrollStudent(t *testing.T, e *env, studentID string) quiz.Attempt {
	t.Helper()
	a, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-1", StudentID: studentID, Role: quiz.RoleStudent,
	})
	require.NoError(t, err)
	return a
}

func assertKind(t *testing.T, err error, kind quiz.Kind, msg string) {
	t.Helper()
	var qe *quiz.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, kind, qe.Kind)
	assert.Equal(t, msg, qe.Msg)
}

/* ---------------- enroll ---------------- */

func TestEnroll_CreatesAttempt(t *testing.T) {
	e := newEnv(t)
	a, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-1", StudentID: "stu-1", Role: quiz.RoleStudent,
		UserAgent: "go-test/1.0", IPAddress: "10.0.0.9",
	})
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusInProgress, a.Status)
	assert.Equal(t, "stu-1", a.StudentID)
	assert.Equal(t, "go-test/1.0", a.UserAgent)
	assert.Equal(t, "10.0.0.9", a.IPAddress)
	assert.Nil(t, a.Score)
}

func TestEnroll_IdempotentResume(t *testing.T) {
	e := newEnv(t)
	first := enrollStudent(t, e, "stu-1")
	second := enrollStudent(t, e, "stu-1")
	assert.Equal(t, first.ID, second.ID)
}

func TestEnroll_UnknownQuiz(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "nope", StudentID: "stu-1", Role: quiz.RoleStudent,
	})
	assertKind(t, err, quiz.KindNotFound, "quiz not found")
}

func TestEnroll_NotEnrolledInCourse(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-1", StudentID: "outsider", Role: quiz.RoleStudent,
	})
	assertKind(t, err, quiz.KindForbidden, "not enrolled in this course")
}

func TestEnroll_GracePeriodExpired(t *testing.T) {
	e := newEnv(t)
	// 20 minutes after start, grace is 15: refused even though the quiz
	// itself is open for another 40 minutes.
	e.clock.t = quizStart.Add(20 * time.Minute)
	_, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-1", StudentID: "stu-1", Role: quiz.RoleStudent,
	})
	assertKind(t, err, quiz.KindWindowViolation, "enrollment period has ended")
}

func TestEnroll_BeforeStart(t *testing.T) {
	e := newEnv(t)
	e.clock.t = quizStart.Add(-time.Minute)
	_, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-1", StudentID: "stu-1", Role: quiz.RoleStudent,
	})
	assertKind(t, err, quiz.KindWindowViolation, "quiz has not started yet")
}

func TestEnroll_TeacherPreviewBypassesWindow(t *testing.T) {
	e := newEnv(t)
	e.clock.t = quizStart.Add(-24 * time.Hour) // long before start
	a, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-1", StudentID: "teach-1", Role: quiz.RoleTeacher,
	})
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusInProgress, a.Status)
}

func TestEnroll_ForeignTeacherTreatedAsOutsider(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-1", StudentID: "teach-other", Role: quiz.RoleTeacher,
	})
	assertKind(t, err, quiz.KindForbidden, "not enrolled in this course")
}

func TestEnroll_PasswordProtected(t *testing.T) {
	e := newEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	e.store.PutQuiz(quiz.Quiz{
		ID:           "quiz-pw",
		CourseID:     "course-1",
		StartTime:    quizStart,
		EndTime:      quizStart.Add(time.Hour),
		PasswordHash: string(hash),
		Questions:    []quiz.Question{{ID: "q1", Type: quiz.TypeSingle, Options: []string{"a", "b"}, Correct: []int{0}, Points: 1}},
	})

	_, err = e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-pw", StudentID: "stu-1", Role: quiz.RoleStudent, Password: "wrong",
	})
	assertKind(t, err, quiz.KindForbidden, "incorrect quiz password")

	a, err := e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-pw", StudentID: "stu-1", Role: quiz.RoleStudent, Password: "open sesame",
	})
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusInProgress, a.Status)
}

func TestEnroll_AfterSubmitFails(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{0})
	_, err := e.svc.Submit(context.Background(), a.ID, "stu-1")
	require.NoError(t, err)

	_, err = e.svc.Enroll(context.Background(), quiz.EnrollRequest{
		QuizID: "quiz-1", StudentID: "stu-1", Role: quiz.RoleStudent,
	})
	assertKind(t, err, quiz.KindConflict, "already completed")
}

/* ---------------- autosave / save ---------------- */

func saveAll(t *testing.T, e *env, attemptID, studentID string, q1, q2 []int) {
	t.Helper()
	_, err := e.svc.Save(context.Background(), attemptID, []quiz.Answer{
		{QuestionID: "q1", Selected: q1},
		{QuestionID: "q2", Selected: q2},
	}, studentID)
	require.NoError(t, err)
}

func TestAutosave_ReportsProgress(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")

	p, err := e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q1", Selected: []int{2}}, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, quiz.Progress{Answered: 1, Total: 2}, p)

	// overwriting the same question does not grow the count
	p, err = e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q1", Selected: []int{1}}, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, quiz.Progress{Answered: 1, Total: 2}, p)

	p, err = e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q2", Selected: []int{0}}, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, quiz.Progress{Answered: 2, Total: 2}, p)
}

func TestAutosave_ConcurrentSavesBothPersist(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")

	var wg sync.WaitGroup
	for _, ans := range []quiz.Answer{
		{QuestionID: "q1", Selected: []int{1}},
		{QuestionID: "q2", Selected: []int{0}},
	} {
		wg.Add(1)
		go func(ans quiz.Answer) {
			defer wg.Done()
			_, err := e.svc.Autosave(context.Background(), a.ID, ans, "stu-1")
			assert.NoError(t, err)
		}(ans)
	}
	wg.Wait()

	got, err := e.store.GetAttempt(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 2, "a successful autosave must never be lost to a concurrent one")
}

func TestAutosave_UnknownQuestion(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	_, err := e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q99", Selected: []int{0}}, "stu-1")
	assertKind(t, err, quiz.KindValidation, "unknown question")
}

func TestAutosave_IndexOutOfRange(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	_, err := e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q1", Selected: []int{7}}, "stu-1")
	assertKind(t, err, quiz.KindValidation, "malformed answer")
}

func TestAutosave_WrongOwner(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	_, err := e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q1", Selected: []int{0}}, "stu-2")
	assertKind(t, err, quiz.KindForbidden, "attempt belongs to another student")
}

func TestAutosave_AfterDeadline(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	e.clock.t = quizStart.Add(61 * time.Minute)
	_, err := e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q1", Selected: []int{0}}, "stu-1")
	assertKind(t, err, quiz.KindWindowViolation, "time limit exceeded")
}

func TestSave_LengthMismatch(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	_, err := e.svc.Save(context.Background(), a.ID, []quiz.Answer{
		{QuestionID: "q1", Selected: []int{1}},
	}, "stu-1")
	assertKind(t, err, quiz.KindValidation, "invalid number of answers submitted")
}

func TestSave_OrderMismatch(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	_, err := e.svc.Save(context.Background(), a.ID, []quiz.Answer{
		{QuestionID: "q2", Selected: []int{0}},
		{QuestionID: "q1", Selected: []int{1}},
	}, "stu-1")
	assertKind(t, err, quiz.KindValidation, "unknown question")
}

func TestSave_IdempotentPayload(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{0})
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{0})

	got, err := e.store.GetAttempt(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []quiz.Answer{
		{QuestionID: "q1", Selected: []int{1}},
		{QuestionID: "q2", Selected: []int{0}},
	}, got.Answers)
}

/* ---------------- submit ---------------- */

func TestSubmit_GradesAndFinalizes(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{2}) // q1 right, q2 wrong

	got, err := e.svc.Submit(context.Background(), a.ID, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusSubmitted, got.Status)
	require.NotNil(t, got.Score)
	assert.Equal(t, 10.0, *got.Score)

	require.Len(t, got.Breakdown, 2)
	assert.True(t, got.Breakdown[0].Correct)
	assert.Equal(t, 10.0, got.Breakdown[0].PointsEarned)
	assert.False(t, got.Breakdown[1].Correct)
}

func TestSubmit_Twice(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{0})
	_, err := e.svc.Submit(context.Background(), a.ID, "stu-1")
	require.NoError(t, err)

	_, err = e.svc.Submit(context.Background(), a.ID, "stu-1")
	assertKind(t, err, quiz.KindConflict, "already submitted")
}

func TestSubmit_WithoutAllAnswers(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	_, err := e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q1", Selected: []int{1}}, "stu-1")
	require.NoError(t, err)

	_, err = e.svc.Submit(context.Background(), a.ID, "stu-1")
	assertKind(t, err, quiz.KindValidation, "invalid number of answers submitted")
}

func TestSubmit_AfterDeadline(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{0})

	e.clock.t = quizStart.Add(time.Hour + time.Second)
	_, err := e.svc.Submit(context.Background(), a.ID, "stu-1")
	assertKind(t, err, quiz.KindWindowViolation, "time limit exceeded")
}

func TestSubmit_AtExactEndTime(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{0})

	e.clock.t = quizStart.Add(time.Hour) // the boundary instant is writable
	got, err := e.svc.Submit(context.Background(), a.ID, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusSubmitted, got.Status)
}

// interposedStore delegates to the memory store but runs a one-shot
// hook after a read, simulating a write that commits between another
// request's read and its update.
type interposedStore struct {
	*quiz.MemoryStore
	afterRead func(id string)
}

func (s *interposedStore) GetAttempt(ctx context.Context, id string) (quiz.Attempt, error) {
	a, err := s.MemoryStore.GetAttempt(ctx, id)
	if err == nil && s.afterRead != nil {
		f := s.afterRead
		s.afterRead = nil
		f(id)
	}
	return a, err
}

func TestSubmit_RegradesWhenAutosaveLandsMidSubmit(t *testing.T) {
	e := newEnv(t)
	store := &interposedStore{MemoryStore: e.store}
	svc := quiz.NewService(store, e.store, e.dir, quiz.WithClock(e.clock.Now))

	a := enrollStudent(t, e, "stu-1")
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{2}) // q1 right, q2 wrong

	// the moment Submit reads the attempt, a last autosave fixing q2
	// commits underneath it
	store.afterRead = func(id string) {
		_, err := e.store.UpdateAnswer(context.Background(), id,
			quiz.Answer{QuestionID: "q2", Selected: []int{0}}, e.clock.Now())
		require.NoError(t, err)
	}

	got, err := svc.Submit(context.Background(), a.ID, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusSubmitted, got.Status)

	// the frozen grade reflects the answers that actually got stored
	require.NotNil(t, got.Score)
	assert.Equal(t, 30.0, *got.Score)
	require.Len(t, got.Breakdown, 2)
	assert.True(t, got.Breakdown[1].Correct)
	assert.Equal(t, []int{0}, got.Answers[1].Selected)
}

func TestMutationTimestampsFollowInjectedClock(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")

	saveAt := quizStart.Add(10 * time.Minute)
	e.clock.t = saveAt
	_, err := e.svc.Autosave(context.Background(), a.ID, quiz.Answer{QuestionID: "q1", Selected: []int{1}}, "stu-1")
	require.NoError(t, err)
	got, err := e.store.GetAttempt(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(saveAt))

	submitAt := quizStart.Add(30 * time.Minute)
	e.clock.t = submitAt
	saveAll(t, e, a.ID, "stu-1", []int{1}, []int{0})
	sub, err := e.svc.Submit(context.Background(), a.ID, "stu-1")
	require.NoError(t, err)
	assert.True(t, sub.UpdatedAt.Equal(submitAt))
}

/* ---------------- views ---------------- */

func TestGetAttempt_OwnerAndStaff(t *testing.T) {
	e := newEnv(t)
	a := enrollStudent(t, e, "stu-1")

	_, err := e.svc.GetAttempt(context.Background(), a.ID, "stu-1", quiz.RoleStudent)
	require.NoError(t, err)

	_, err = e.svc.GetAttempt(context.Background(), a.ID, "teach-1", quiz.RoleTeacher)
	require.NoError(t, err)

	_, err = e.svc.GetAttempt(context.Background(), a.ID, "stu-2", quiz.RoleStudent)
	var qe *quiz.Error
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, quiz.KindForbidden, qe.Kind)
}
