// Package grading scores submitted answers against an immutable question
// snapshot. It is a pure computation: no storage, no clock, no side
// effects, so re-grading an attempt always reproduces the same result.
package grading

// Q is a minimal view of a snapshot question needed for grading.
// Keep this in sync with whatever fields your store uses.
type Q struct {
	ID      string
	Type    string // single, multi, true_false
	Correct []int
	Points  float64
}

// A is one submitted answer.
type A struct {
	QuestionID string
	Selected   []int
}

// Result is the outcome of grading a single question.
type Result struct {
	QuestionID   string  `json:"question_id"`
	Selected     []int   `json:"selected"`
	Correct      bool    `json:"correct"`
	PointsEarned float64 `json:"points_earned"`
}

// Summary aggregates an attempt's outcome plus the literal per-question
// breakdown for audit/UI display.
type Summary struct {
	Results         []Result `json:"results"`
	TotalScore      float64  `json:"total_score"`
	TotalQuizScore  float64  `json:"total_quiz_score"`
	ScorePercentage float64  `json:"score_percentage"`
	PassedQuestions int      `json:"passed_questions"`
	FailedQuestions int      `json:"failed_questions"`
}

// Strategy decides correctness of a single response.
type Strategy interface {
	Correct(q Q, selected []int) bool
}

// Grader routes by question type to the correct Strategy.
type Grader struct {
	strategies map[string]Strategy
}

// NewGrader installs the built-in strategies.
func NewGrader() *Grader {
	return &Grader{
		strategies: map[string]Strategy{
			"single":     singleStrategy{},
			"true_false": singleStrategy{},
			"multi":      multiStrategy{},
		},
	}
}

// Grade scores answers against questions, pairing by QuestionID. A
// question with no matching answer, or a type with no strategy, earns
// zero. Zero total quiz points yields a zero percentage, not NaN.
func (g *Grader) Grade(questions []Q, answers []A) Summary {
	byQuestion := make(map[string][]int, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.Selected
	}

	s := Summary{Results: make([]Result, 0, len(questions))}
	for _, q := range questions {
		s.TotalQuizScore += q.Points
		sel := byQuestion[q.ID]
		r := Result{QuestionID: q.ID, Selected: sel}
		if strat, ok := g.strategies[q.Type]; ok && strat.Correct(q, sel) {
			r.Correct = true
			r.PointsEarned = q.Points
		}
		if r.Correct {
			s.PassedQuestions++
		} else {
			s.FailedQuestions++
		}
		s.TotalScore += r.PointsEarned
		s.Results = append(s.Results, r)
	}
	if s.TotalQuizScore > 0 {
		s.ScorePercentage = s.TotalScore / s.TotalQuizScore * 100
	}
	return s
}

// --- Strategies ---

type singleStrategy struct{}

func (singleStrategy) Correct(q Q, selected []int) bool {
	if len(selected) != 1 || len(q.Correct) == 0 {
		return false
	}
	return selected[0] == q.Correct[0]
}

type multiStrategy struct{}

// Full credit only when the submitted set exactly equals the key; no
// partial credit, so an override and a re-grade can never disagree.
func (multiStrategy) Correct(q Q, selected []int) bool {
	if len(selected) == 0 {
		return false
	}
	return setEqual(toSet(selected), toSet(q.Correct))
}

func toSet(arr []int) map[int]struct{} {
	m := make(map[int]struct{}, len(arr))
	for _, v := range arr {
		m[v] = struct{}{}
	}
	return m
}

func setEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
