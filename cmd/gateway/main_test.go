package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/classware/classware-lms/internal/directory"
	"github.com/classware/classware-lms/internal/quiz"
)

// The memory driver must answer requests out of the box, so the seed
// has to leave an open quiz with an enrolled student behind.
func TestSeedDemo(t *testing.T) {
	store := quiz.NewMemoryStore()
	dir := directory.NewStatic()
	seedDemo(store, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	q, err := store.GetQuiz(context.Background(), "demo-quiz")
	if err != nil {
		t.Fatalf("demo quiz not seeded: %v", err)
	}
	if len(q.Questions) == 0 {
		t.Fatal("demo quiz has no questions")
	}

	enrolled, err := dir.IsEnrolled(context.Background(), "alice", q.CourseID)
	if err != nil || !enrolled {
		t.Fatalf("alice not enrolled in %s: enrolled=%v err=%v", q.CourseID, enrolled, err)
	}
	staff, err := dir.IsTeacherOfCourse(context.Background(), q.CourseID, "carol")
	if err != nil || !staff {
		t.Fatalf("carol not staff of %s: staff=%v err=%v", q.CourseID, staff, err)
	}
}
