package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gws "github.com/gorilla/websocket"
	"github.com/talentwire/talentwire/repository"
	"github.com/talentwire/talentwire/websocket"
)

// Server assembles the HTTP surface: recruiter auth, scheduling, the
// candidate interview endpoints, report access and the live observer feed.
type Server struct {
	config   *Config
	repo     *repository.GORMRepository
	auth     *AuthService
	hub      *websocket.Hub
	pipeline *ReportPipeline
	sweeper  *ExpirySweeper
	router   chi.Router
	upgrader gws.Upgrader
}

func NewServer(config *Config, repo *repository.GORMRepository) (*Server, error) {
	s := &Server{
		config: config,
		repo:   repo,
		auth:   NewAuthService(repo, config.JWT.Secret),
		hub:    websocket.NewHub(),
	}
	s.upgrader = gws.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return CheckOrigin(r, config.WebSocket.AllowedOrigins)
		},
	}

	if err := s.initializeServices(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) initializeServices() error {
	gemini, err := NewGeminiService(context.Background(), s.config.AI.GeminiAPIKey, s.config.AI.Model)
	if err != nil {
		return fmt.Errorf("failed to initialize gemini service: %w", err)
	}

	s.pipeline = NewReportPipeline(s.repo, gemini, nil)
	s.sweeper = NewExpirySweeper(s.repo, s.config.Interview.SweepInterval)

	access := NewAccessValidator(s.repo)
	controller := NewTurnController(s.repo, gemini, s.pipeline, s.hub)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Recruiter auth. Login and signup are public; the rest ride on cookies.
		authEndpoints := NewAuthEndpoints(s.auth)
		authEndpoints.RegisterRoutes(r)

		// Candidate-facing interview surface, authenticated by access token.
		NewInterviewEndpoints(access, controller, s.repo).RegisterRoutes(r)

		// Recruiter console, behind the auth middleware.
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			authEndpoints.RegisterProtectedRoutes(r)
			NewCandidateEndpoints(s.repo).RegisterRoutes(r)
			r.Route("/sessions", func(r chi.Router) {
				NewSessionEndpoints(s.repo, s.config.Interview.InviteTTL).RegisterRoutes(r)
				NewReportEndpoints(s.repo, s.pipeline).RegisterRoutes(r)
				r.Get("/{id}/watch", s.watchHandler)
			})
		})
	})

	s.router = r
	return nil
}

// watchHandler upgrades a recruiter connection into a live observer of an
// interview session.
func (s *Server) watchHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	session, err := s.repo.GetSessionForRecruiter(r.Context(), sessionID, user.ID)
	if err != nil {
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	observer := s.hub.RegisterObserver(conn, user.ID, sessionID)
	go observer.WritePump()
	go observer.ReadPump()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "up"

	if err := s.repo.Ping(r.Context()); err != nil {
		dbStatus = "down"
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))
}

// Start runs the HTTP server, the observer hub, the report worker and the
// expiry sweeper until an interrupt arrives, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.hub.Run()
	s.pipeline.Start(ctx)
	s.sweeper.Start(ctx)

	srv := &http.Server{
		Addr:    ":" + s.config.Server.Port,
		Handler: s.router,
	}

	go func() {
		slog.Info("Starting server", "port", s.config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server exited")
	return nil
}

// CheckOrigin validates the Origin header of WebSocket upgrade requests
// against a comma-separated allowlist. An empty allowlist denies everything.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	allowedOrigins := strings.Split(allowedOriginsStr, ",")
	for _, allowed := range allowedOrigins {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}
