package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"docflow/auth"
	"docflow/contract"
	"docflow/document"
	"docflow/httpx"
)

type authService interface {
	Register(ctx context.Context, actor auth.Principal, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
	Authenticate(token string) (auth.Principal, error)
}

type contractService interface {
	Create(ctx context.Context, actor auth.Principal, params contract.CreateParams) (contract.Contract, error)
	GetByID(ctx context.Context, id string) (contract.Contract, error)
	List(ctx context.Context, limit int) ([]contract.Contract, error)
}

type documentService interface {
	Submit(ctx context.Context, actor auth.Principal, params document.SubmitParams) (document.Document, error)
	Resubmit(ctx context.Context, actor auth.Principal, documentID, filePath, idempotencyKey string) (document.Document, error)
	ReviewByName(ctx context.Context, actor auth.Principal, documentID string, stage document.Stage, action, notes, idempotencyKey string) (document.Document, error)
	UpdateFile(ctx context.Context, actor auth.Principal, documentID, filePath string) (document.Document, error)
	History(ctx context.Context, actor auth.Principal) ([]document.Document, error)
	Progress(ctx context.Context, actor auth.Principal, documentID string) (document.ProgressView, error)
	Get(ctx context.Context, actor auth.Principal, documentID string) (document.Document, error)
}

// Server wires the HTTP surface to the domain services.
type Server struct {
	authService     authService
	contractService contractService
	documentService documentService
	logger          *zap.Logger
}

func NewServer(a authService, c contractService, d documentService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{authService: a, contractService: c, documentService: d, logger: logger}
}

type ctxKey string

const (
	ctxKeyUserID ctxKey = "userID"
	ctxKeyRole   ctxKey = "role"
)

const idempotencyHeader = "Idempotency-Key"

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/auth/register", s.handleRegister)
		r.Get("/auth/account", s.handleAccount)

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", s.handleCreateContract)
			r.Get("/", s.handleListContracts)
			r.Get("/{id}", s.handleGetContract)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/submit", s.handleSubmitDocument)
			r.Get("/history", s.handleHistory)
			r.Get("/{id}", s.handleGetDocument)
			r.Get("/{id}/progress", s.handleProgress)
			r.Patch("/{id}/resubmit", s.handleResubmit)
			r.Patch("/{id}/file", s.handleUpdateFile)
			r.Patch("/{id}/dalkon-review", s.handleReview(document.StageConsultant))
			r.Patch("/{id}/engineering-review", s.handleReview(document.StageEngineering))
			r.Patch("/{id}/manager-review", s.handleReview(document.StageManager))
		})
	})

	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(httpx.RequestIDHeader))
		if id == "" {
			id = httpx.NewRequestID()
		}
		w.Header().Set(httpx.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("request_id", w.Header().Get(httpx.RequestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
			return
		}

		principal, err := s.authService.Authenticate(strings.TrimSpace(token))
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, principal.ID)
		ctx = context.WithValue(ctx, ctxKeyRole, principal.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	userID, _ := ctx.Value(ctxKeyUserID).(string)
	role, _ := ctx.Value(ctxKeyRole).(auth.Role)
	if userID == "" || role == "" {
		return auth.Principal{}, false
	}
	return auth.Principal{ID: userID, Role: role}, true
}

func (s *Server) mustPrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return p, ok
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
