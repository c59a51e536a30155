package quiz_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classware/classware-lms/internal/quiz"
)

// The memory store backs the gateway's "memory" driver, so its listing
// must honor the same contract as the SQL store: newest first, then
// limit and offset.
func TestMemoryStore_ListOrderAndPaging(t *testing.T) {
	store := quiz.NewMemoryStore()
	ctx := context.Background()

	for i, id := range []string{"a-old", "a-mid", "a-new"} {
		_, created, err := store.EnrollAttempt(ctx, quiz.Attempt{
			ID:        id,
			QuizID:    "quiz-1",
			StudentID: "stu-" + id,
			Status:    quiz.StatusInProgress,
			Answers:   []quiz.Answer{},
			CreatedAt: quizStart.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.True(t, created)
	}

	all, err := store.ListAttempts(ctx, quiz.AttemptListOpts{QuizID: "quiz-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a-new", all[0].ID)
	assert.Equal(t, "a-mid", all[1].ID)
	assert.Equal(t, "a-old", all[2].ID)

	page, err := store.ListAttempts(ctx, quiz.AttemptListOpts{QuizID: "quiz-1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a-mid", page[0].ID)

	// offset past the end is an empty page, not a panic
	empty, err := store.ListAttempts(ctx, quiz.AttemptListOpts{QuizID: "quiz-1", Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
