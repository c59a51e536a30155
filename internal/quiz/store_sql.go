package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// casRetries bounds the optimistic re-read loop in UpdateAnswer. Each
// retry means another write landed first; three lost races in a row on
// one attempt row means something is wrong upstream.
const casRetries = 3

// SQLStore persists quizzes and attempts through database/sql; it works
// against both the sqlite and pgx drivers. Enroll relies on the unique
// (quiz_id, student_id) index plus ON CONFLICT DO NOTHING, and every
// mutation is guarded on current status plus a version counter, so two
// racing requests resolve in the database instead of by process-local
// locking.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// PutQuiz upserts a quiz definition. The attempt engine treats quizzes
// as read-only; this exists for the build/seed path.
func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,course_id,title,start_time,end_time,password_hash,questions_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, title=EXCLUDED.title,
			start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time,
			password_hash=EXCLUDED.password_hash, questions_json=EXCLUDED.questions_json`,
		q.ID, q.CourseID, q.Title, q.StartTime.Unix(), q.EndTime.Unix(), q.PasswordHash, string(qj))
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,course_id,title,start_time,end_time,password_hash,questions_json
		FROM quizzes WHERE id=$1`, id)
	var q Quiz
	var start, end int64
	var qjson string
	if err := row.Scan(&q.ID, &q.CourseID, &q.Title, &start, &end, &q.PasswordHash, &qjson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, errNotFound(msgQuizNotFound)
		}
		return Quiz{}, err
	}
	q.StartTime = time.Unix(start, 0).UTC()
	q.EndTime = time.Unix(end, 0).UTC()
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, fmt.Errorf("decode question snapshot: %w", err)
	}
	return q, nil
}

func (s *SQLStore) EnrollAttempt(ctx context.Context, a Attempt) (Attempt, bool, error) {
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, false, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO quiz_attempts
		(id,quiz_id,student_id,status,answers_json,breakdown_json,ip_address,user_agent,version,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,'[]',$6,$7,0,$8,$8)
		ON CONFLICT (quiz_id, student_id) DO NOTHING`,
		a.ID, a.QuizID, a.StudentID, string(a.Status), string(aj),
		a.IPAddress, a.UserAgent, a.CreatedAt.Unix())
	if err != nil {
		return Attempt{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Attempt{}, false, err
	}
	// n==0 means a row for this (quiz, student) already existed; return
	// the surviving row either way.
	existing, err := s.getByPair(ctx, a.QuizID, a.StudentID)
	if err != nil {
		return Attempt{}, false, err
	}
	return existing, n > 0, nil
}

const attemptColumns = `id,quiz_id,student_id,status,score,answers_json,breakdown_json,ip_address,user_agent,version,created_at,updated_at`

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+`
		FROM quiz_attempts WHERE id=$1`, id))
}

func (s *SQLStore) getByPair(ctx context.Context, quizID, studentID string) (Attempt, error) {
	return s.scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+`
		FROM quiz_attempts WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID))
}

// UpdateAnswer splices one answer in with an optimistic read-splice-CAS
// loop: the UPDATE only lands if the row's version is still the one we
// read, so concurrent autosaves for different questions both survive.
func (s *SQLStore) UpdateAnswer(ctx context.Context, id string, ans Answer, at time.Time) (Attempt, error) {
	for i := 0; i < casRetries; i++ {
		a, err := s.GetAttempt(ctx, id)
		if err != nil {
			return Attempt{}, err
		}
		if a.Status != StatusInProgress {
			return Attempt{}, errConflict(msgNotInProgress)
		}
		aj, err := json.Marshal(spliceAnswer(a.Answers, ans))
		if err != nil {
			return Attempt{}, err
		}
		res, err := s.db.ExecContext(ctx, `UPDATE quiz_attempts SET answers_json=$1, updated_at=$2, version=version+1
			WHERE id=$3 AND status=$4 AND version=$5`,
			string(aj), at.Unix(), id, string(StatusInProgress), a.Version)
		if err != nil {
			return Attempt{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Attempt{}, err
		}
		if n > 0 {
			return s.GetAttempt(ctx, id)
		}
		// lost the race, reload and splice again
	}
	return Attempt{}, errConflict(msgConcurrent)
}

func (s *SQLStore) UpdateAnswers(ctx context.Context, id string, answers []Answer, at time.Time) (Attempt, error) {
	aj, err := json.Marshal(answers)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE quiz_attempts SET answers_json=$1, updated_at=$2, version=version+1
		WHERE id=$3 AND status=$4`,
		string(aj), at.Unix(), id, string(StatusInProgress))
	if err != nil {
		return Attempt{}, err
	}
	if err := s.guarded(ctx, res, id); err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, id)
}

func (s *SQLStore) FinalizeSubmit(ctx context.Context, id string, version int64, score float64, bd []QuestionResult, at time.Time) (Attempt, error) {
	bj, err := json.Marshal(bd)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE quiz_attempts SET status=$1, score=$2, breakdown_json=$3, updated_at=$4, version=version+1
		WHERE id=$5 AND status=$6 AND version=$7`,
		string(StatusSubmitted), score, string(bj), at.Unix(), id, string(StatusInProgress), version)
	if err != nil {
		return Attempt{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Attempt{}, err
	}
	if n > 0 {
		return s.GetAttempt(ctx, id)
	}
	// zero rows: missing, already terminal, or the version moved
	a, err := s.GetAttempt(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, errConflict(msgNotInProgress)
	}
	return Attempt{}, ErrStaleAttempt
}

func (s *SQLStore) AbandonAttempt(ctx context.Context, id string, at time.Time) (Attempt, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE quiz_attempts SET status=$1, updated_at=$2, version=version+1
		WHERE id=$3 AND status<>$4`,
		string(StatusAbandoned), at.Unix(), id, string(StatusSubmitted))
	if err != nil {
		return Attempt{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Attempt{}, err
	}
	if n == 0 {
		// either missing or submitted in the meantime
		a, err := s.GetAttempt(ctx, id)
		if err != nil {
			return Attempt{}, err
		}
		if a.Status == StatusSubmitted {
			return Attempt{}, errConflict(msgBanSubmitted)
		}
		return Attempt{}, errConflict(msgNotInProgress)
	}
	return s.GetAttempt(ctx, id)
}

func (s *SQLStore) SetScore(ctx context.Context, id string, score float64, bd []QuestionResult, at time.Time) (Attempt, error) {
	var err error
	if bd != nil {
		var bj []byte
		if bj, err = json.Marshal(bd); err != nil {
			return Attempt{}, err
		}
		_, err = s.db.ExecContext(ctx, `UPDATE quiz_attempts SET score=$1, breakdown_json=$2, updated_at=$3, version=version+1 WHERE id=$4`,
			score, string(bj), at.Unix(), id)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE quiz_attempts SET score=$1, updated_at=$2, version=version+1 WHERE id=$3`,
			score, at.Unix(), id)
	}
	if err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, id)
}

func (s *SQLStore) DeleteAttempt(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quiz_attempts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound(msgAttemptNotFound)
	}
	return nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM quiz_attempts WHERE 1=1`
	args := []any{}
	n := 0
	add := func(clause string, v any) {
		n++
		args = append(args, v)
		query += fmt.Sprintf(" AND %s=$%d", clause, n)
	}
	if opts.QuizID != "" {
		add("quiz_id", opts.QuizID)
	}
	if opts.StudentID != "" {
		add("student_id", opts.StudentID)
	}
	if opts.Status != "" {
		add("status", string(opts.Status))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Attempt, 0)
	for rows.Next() {
		a, err := s.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// guarded interprets a zero-row conditional update: missing row vs lost
// status race.
func (s *SQLStore) guarded(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetAttempt(ctx, id); err != nil {
		return err
	}
	return errConflict(msgNotInProgress)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var status, ajson, bjson string
	var score sql.NullFloat64
	var created, updated int64
	if err := row.Scan(&a.ID, &a.QuizID, &a.StudentID, &status, &score, &ajson, &bjson,
		&a.IPAddress, &a.UserAgent, &a.Version, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, errNotFound(msgAttemptNotFound)
		}
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		a.Answers = []Answer{}
	}
	if err := json.Unmarshal([]byte(bjson), &a.Breakdown); err != nil {
		a.Breakdown = nil
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	a.UpdatedAt = time.Unix(updated, 0).UTC()
	return a, nil
}
