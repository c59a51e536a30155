package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/classware/classware-lms/internal/api/http"
	auth "github.com/classware/classware-lms/internal/auth/middleware"
	"github.com/classware/classware-lms/internal/config"
	"github.com/classware/classware-lms/internal/db"
	"github.com/classware/classware-lms/internal/directory"
	"github.com/classware/classware-lms/internal/logging"
	"github.com/classware/classware-lms/internal/quiz"
	"github.com/classware/classware-lms/internal/rbac"
)

func main() {
	log := logging.New(os.Stderr, slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		attempts quiz.AttemptStore
		quizzes  quiz.QuizCatalog
		dir      quiz.Directory
	)
	switch cfg.DBDriver {
	case "memory":
		mem := quiz.NewMemoryStore()
		static := directory.NewStatic()
		seedDemo(mem, static, log)
		attempts, quizzes = mem, mem
		dir = static
	default:
		dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			log.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer dbh.Close()
		store := quiz.NewSQLStore(dbh)
		attempts, quizzes = store, store
		dir = directory.NewSQLDirectory(dbh)
	}

	svc := quiz.NewService(attempts, quizzes, dir,
		quiz.WithLogger(log),
		quiz.WithEnrollGrace(time.Duration(cfg.EnrollGraceMinutes)*time.Minute),
	)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Mode == config.ModeOffline {
		r.Post("/auth/login", auth.LoginHandler(authSvc))
	}

	// Protected API (JWT -> role in context -> RBAC -> service checks)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Student flow
		pr.With(rbac.Require("attempt:enroll")).
			Post("/attempts", api.EnrollHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Patch("/attempts/{attemptID}/answer", api.AutosaveHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/answers", api.SaveHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(svc))

		// Instructor overrides
		pr.With(rbac.Require("attempt:list")).
			Get("/attempts", api.ListAttemptsHandler(svc))
		pr.With(rbac.Require("attempt:ban")).
			Post("/attempts/{attemptID}/ban", api.BanHandler(svc))
		pr.With(rbac.Require("attempt:delete")).
			Delete("/attempts/{attemptID}", api.DeleteAttemptHandler(svc))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/grade", api.RegradeHandler(svc))
		pr.With(rbac.Require("attempt:override-score")).
			Put("/attempts/{attemptID}/score", api.OverrideScoreHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", string(cfg.Mode), "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}

// seedDemo loads a sample quiz and roster so the memory driver serves
// real requests out of the box: log in as alice/bob (student) or
// carol (teacher) against course demo-course.
func seedDemo(store *quiz.MemoryStore, dir *directory.Static, log *slog.Logger) {
	now := time.Now().UTC().Truncate(time.Minute)
	store.PutQuiz(quiz.Quiz{
		ID:        "demo-quiz",
		CourseID:  "demo-course",
		Title:     "Getting started check",
		StartTime: now,
		EndTime:   now.Add(24 * time.Hour),
		Questions: []quiz.Question{
			{ID: "q1", Type: quiz.TypeSingle, Prompt: "Which HTTP method enrolls an attempt?",
				Options: []string{"GET", "POST", "DELETE"}, Correct: []int{1}, Points: 10},
			{ID: "q2", Type: quiz.TypeTrueFalse, Prompt: "A submitted attempt can be edited.",
				Options: []string{"true", "false"}, Correct: []int{1}, Points: 5},
		},
	})
	dir.Enroll("demo-course", "alice")
	dir.Enroll("demo-course", "bob")
	dir.AddTeacher("demo-course", "carol")
	log.Info("seeded demo data", "quiz", "demo-quiz", "course", "demo-course")
}
