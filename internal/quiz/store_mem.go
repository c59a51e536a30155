package quiz

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps quizzes and attempts in process memory. Used for
// offline mode and tests; the SQL store is the production path.
type MemoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]Quiz
	attempts map[string]Attempt
	byPair   map[string]string // quizID|studentID -> attemptID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes:  map[string]Quiz{},
		attempts: map[string]Attempt{},
		byPair:   map[string]string{},
	}
}

func pairKey(quizID, studentID string) string { return quizID + "|" + studentID }

// copyAttempt detaches the slices so callers can't mutate stored state
// behind the lock.
func copyAttempt(a Attempt) Attempt {
	a.Answers = append([]Answer(nil), a.Answers...)
	if a.Breakdown != nil {
		a.Breakdown = append([]QuestionResult(nil), a.Breakdown...)
	}
	if a.Score != nil {
		v := *a.Score
		a.Score = &v
	}
	return a
}

func (m *MemoryStore) PutQuiz(q Quiz) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
}

func (m *MemoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, errNotFound(msgQuizNotFound)
	}
	return q, nil
}

func (m *MemoryStore) EnrollAttempt(_ context.Context, a Attempt) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(a.QuizID, a.StudentID)
	if id, ok := m.byPair[key]; ok {
		return copyAttempt(m.attempts[id]), false, nil
	}
	m.attempts[a.ID] = copyAttempt(a)
	m.byPair[key] = a.ID
	return a, true, nil
}

func (m *MemoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, errNotFound(msgAttemptNotFound)
	}
	return copyAttempt(a), nil
}

// UpdateAnswer reads and splices under one lock, so interleaved calls
// for different questions never overwrite each other.
func (m *MemoryStore) UpdateAnswer(_ context.Context, id string, ans Answer, at time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, errNotFound(msgAttemptNotFound)
	}
	if a.Status != StatusInProgress {
		return Attempt{}, errConflict(msgNotInProgress)
	}
	a.Answers = spliceAnswer(a.Answers, ans)
	a.Version++
	a.UpdatedAt = at
	m.attempts[id] = a
	return copyAttempt(a), nil
}

func (m *MemoryStore) UpdateAnswers(_ context.Context, id string, answers []Answer, at time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, errNotFound(msgAttemptNotFound)
	}
	if a.Status != StatusInProgress {
		return Attempt{}, errConflict(msgNotInProgress)
	}
	a.Answers = append([]Answer(nil), answers...)
	a.Version++
	a.UpdatedAt = at
	m.attempts[id] = a
	return copyAttempt(a), nil
}

func (m *MemoryStore) FinalizeSubmit(_ context.Context, id string, version int64, score float64, bd []QuestionResult, at time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, errNotFound(msgAttemptNotFound)
	}
	if a.Status != StatusInProgress {
		return Attempt{}, errConflict(msgNotInProgress)
	}
	if a.Version != version {
		return Attempt{}, ErrStaleAttempt
	}
	a.Status = StatusSubmitted
	a.Score = &score
	a.Breakdown = bd
	a.Version++
	a.UpdatedAt = at
	m.attempts[id] = a
	return copyAttempt(a), nil
}

func (m *MemoryStore) AbandonAttempt(_ context.Context, id string, at time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, errNotFound(msgAttemptNotFound)
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, errConflict(msgBanSubmitted)
	}
	a.Status = StatusAbandoned
	a.Version++
	a.UpdatedAt = at
	m.attempts[id] = a
	return copyAttempt(a), nil
}

func (m *MemoryStore) SetScore(_ context.Context, id string, score float64, bd []QuestionResult, at time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, errNotFound(msgAttemptNotFound)
	}
	a.Score = &score
	if bd != nil {
		a.Breakdown = bd
	}
	a.Version++
	a.UpdatedAt = at
	m.attempts[id] = a
	return copyAttempt(a), nil
}

func (m *MemoryStore) DeleteAttempt(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return errNotFound(msgAttemptNotFound)
	}
	delete(m.attempts, id)
	delete(m.byPair, pairKey(a.QuizID, a.StudentID))
	return nil
}

// ListAttempts mirrors the SQL store's contract: newest first, then
// Limit/Offset applied after filtering.
func (m *MemoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, copyAttempt(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}
