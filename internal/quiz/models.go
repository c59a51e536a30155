package quiz

import "time"

// QuestionType tags how a question is answered and graded.
type QuestionType string

const (
	TypeSingle    QuestionType = "single"     // one correct index
	TypeMulti     QuestionType = "multi"      // exact set of correct indices
	TypeTrueFalse QuestionType = "true_false" // single with two options
)

// Question is one entry of a quiz's immutable snapshot. The snapshot is
// captured when the quiz is built and never mutates after it opens, so
// grading stays reproducible even if the question bank changes later.
type Question struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt,omitempty"`
	Options []string     `json:"options,omitempty"`
	Correct []int        `json:"correct,omitempty"` // stripped before serving to students
	Points  float64      `json:"points"`
}

// Quiz is read-only to this core; the definition store owns it.
type Quiz struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	Title        string     `json:"title,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	PasswordHash string     `json:"-"` // bcrypt; empty means no password
	Questions    []Question `json:"questions"`
}

// Answer is one submitted response, mirroring a snapshot question.
type Answer struct {
	QuestionID string `json:"question_id"`
	Selected   []int  `json:"selected"`
}

type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusAbandoned  AttemptStatus = "abandoned" // instructor ban
)

// Terminal reports whether no further student writes are possible.
func (s AttemptStatus) Terminal() bool {
	return s == StatusSubmitted || s == StatusAbandoned
}

// QuestionResult is the frozen per-question outcome persisted at grading
// time for audit and UI display.
type QuestionResult struct {
	QuestionID   string  `json:"question_id"`
	Selected     []int   `json:"selected"`
	Correct      bool    `json:"correct"`
	PointsEarned float64 `json:"points_earned"`
}

// Attempt is the one mutable record of this core: a student's session
// against a quiz. At most one attempt ever exists per (quiz, student).
type Attempt struct {
	ID        string           `json:"id"`
	QuizID    string           `json:"quiz_id"`
	StudentID string           `json:"student_id"`
	Status    AttemptStatus    `json:"status"`
	Answers   []Answer         `json:"answers"`
	Score     *float64         `json:"score"` // nil until graded
	Breakdown []QuestionResult `json:"breakdown,omitempty"`
	IPAddress string           `json:"ip_address,omitempty"`
	UserAgent string           `json:"user_agent,omitempty"`
	Version   int64            `json:"version"` // bumped on every mutation
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Role is the caller's platform role. Authorization gates switch on it
// exhaustively; anything unknown is denied.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Progress is returned by Autosave so clients can render completion.
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}
