package quiz

import "errors"

// ErrStaleAttempt reports a version compare-and-swap failure on an
// attempt that is still in progress: another write landed between the
// caller's read and its update. Callers re-read and retry.
var ErrStaleAttempt = errors.New("attempt version changed")

// Kind classifies a failure so the transport layer can map it to a
// status code without string matching.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindConflict
	KindWindowViolation
	KindValidation
)

// Error is the structured failure surfaced by every operation of this
// core. All failures are synchronous and scoped to a single request;
// nothing here is retried automatically.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func errNotFound(msg string) error   { return &Error{Kind: KindNotFound, Msg: msg} }
func errForbidden(msg string) error  { return &Error{Kind: KindForbidden, Msg: msg} }
func errConflict(msg string) error   { return &Error{Kind: KindConflict, Msg: msg} }
func errWindow(msg string) error     { return &Error{Kind: KindWindowViolation, Msg: msg} }
func errValidation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

// Messages referenced across the state machine and override layer.
const (
	msgQuizNotFound     = "quiz not found"
	msgAttemptNotFound  = "attempt not found"
	msgNotEnrolled      = "not enrolled in this course"
	msgBadPassword      = "incorrect quiz password"
	msgNotStarted       = "quiz has not started yet"
	msgEnrollClosed     = "enrollment period has ended"
	msgAlreadyCompleted = "already completed"
	msgBanned           = "banned from taking this quiz"
	msgAlreadySubmitted = "already submitted"
	msgTimeLimit        = "time limit exceeded"
	msgAnswerCount      = "invalid number of answers submitted"
	msgUnknownQuestion  = "unknown question"
	msgMalformedAnswer  = "malformed answer"
	msgNotOwner         = "attempt belongs to another student"
	msgUnknownRole      = "unrecognized role"
	msgNotInProgress    = "attempt is no longer in progress"
	msgNotCourseStaff   = "not an instructor of this course"
	msgConcurrent       = "attempt was modified concurrently"
	msgBanSubmitted     = "cannot ban a submitted attempt"
	msgDeleteTooEarly   = "cannot delete an attempt before the quiz has ended"
	msgRegradeBanned    = "student was banned from taking this quiz"
)
