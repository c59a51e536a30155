package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/classware/classware-lms/internal/auth/middleware"
	"github.com/classware/classware-lms/internal/quiz"
	"github.com/classware/classware-lms/internal/rbac"
)

// caller pulls the authenticated identity attached by the JWT
// middleware.
func caller(r *http.Request) (id string, role quiz.Role) {
	return authmw.SubjectFromContext(r.Context()), quiz.Role(rbac.RoleFromContext(r.Context()))
}

// writeErr maps the core's error taxonomy onto HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	var qe *quiz.Error
	if errors.As(err, &qe) {
		var code int
		switch qe.Kind {
		case quiz.KindNotFound:
			code = http.StatusNotFound
		case quiz.KindForbidden:
			code = http.StatusForbidden
		case quiz.KindConflict:
			code = http.StatusConflict
		case quiz.KindWindowViolation:
			code = http.StatusUnprocessableEntity
		case quiz.KindValidation:
			code = http.StatusBadRequest
		default:
			code = http.StatusInternalServerError
		}
		http.Error(w, qe.Msg, code)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// POST /attempts  { "quiz_id": "...", "password": "..." }
func EnrollHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuizID   string `json:"quiz_id"`
			Password string `json:"password,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuizID == "" {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		sub, role := caller(r)
		a, err := svc.Enroll(r.Context(), quiz.EnrollRequest{
			QuizID:    req.QuizID,
			StudentID: sub,
			Role:      role,
			Password:  req.Password,
			UserAgent: r.UserAgent(),
			IPAddress: r.RemoteAddr,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// PATCH /attempts/{attemptID}/answer  { "question_id": "...", "selected": [..] }
func AutosaveHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var ans quiz.Answer
		if err := json.NewDecoder(r.Body).Decode(&ans); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sub, _ := caller(r)
		p, err := svc.Autosave(r.Context(), id, ans, sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	}
}

// PUT /attempts/{attemptID}/answers  [ { "question_id": "...", "selected": [..] }, ... ]
func SaveHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var answers []quiz.Answer
		if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sub, _ := caller(r)
		a, err := svc.Save(r.Context(), id, answers, sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// POST /attempts/{attemptID}/submit
func SubmitHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		sub, _ := caller(r)
		a, err := svc.Submit(r.Context(), id, sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}
