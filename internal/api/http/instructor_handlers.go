package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classware/classware-lms/internal/quiz"
)

// POST /attempts/{attemptID}/ban
func BanHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		sub, role := caller(r)
		a, err := svc.Ban(r.Context(), id, sub, role)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// DELETE /attempts/{attemptID}
func DeleteAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		sub, role := caller(r)
		if err := svc.Delete(r.Context(), id, sub, role); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /attempts/{attemptID}/grade: re-run the grading function.
func RegradeHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		sub, role := caller(r)
		a, err := svc.Regrade(r.Context(), id, sub, role)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// PUT /attempts/{attemptID}/score  { "score": 12.5 }
func OverrideScoreHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			Score *float64 `json:"score"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
			http.Error(w, "score required", http.StatusBadRequest)
			return
		}
		sub, role := caller(r)
		a, err := svc.OverrideScore(r.Context(), id, sub, role, *req.Score)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// GET /attempts?quiz_id=..&student_id=..&status=..&limit=..&offset=..
func ListAttemptsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := quiz.AttemptListOpts{
			QuizID:    q.Get("quiz_id"),
			StudentID: q.Get("student_id"),
			Status:    quiz.AttemptStatus(q.Get("status")),
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				opts.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				opts.Offset = n
			}
		}
		sub, role := caller(r)
		attempts, err := svc.ListAttempts(r.Context(), sub, role, opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(attempts)
	}
}

// GET /attempts/{attemptID}: owner or course staff.
func GetAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		sub, role := caller(r)
		a, err := svc.GetAttempt(r.Context(), id, sub, role)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}
