// Package http exposes the service over HTTP: the auth endpoints, the
// owner-or-admin item collection, and the admin audit log.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classdesk/internal/auth"
	"classdesk/internal/config"
	"classdesk/internal/crypto"
	"classdesk/internal/model"
	"classdesk/internal/ratelimit"
	"classdesk/internal/repository"
)

type Server struct {
	cfg     config.Config
	store   repository.Store
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func NewServer(cfg config.Config, store repository.Store, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		store:   store,
		limiter: limiter,
		logger:  logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: s.allowOrigin,
		AllowedMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:  []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.With(s.rateLimit).Post("/signup", s.handleSignup)
		r.With(s.rateLimit).Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.auditLog)
		r.Get("/items", s.handleListItems)
		r.Post("/items", s.handleCreateItem)
		r.Delete("/items/{itemID}", s.handleDeleteItem)
		r.With(s.requireAdmin).Get("/logs", s.handleListLogs)
	})

	return r
}

// Auth endpoints

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type userSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	role := model.RoleStudent
	if req.Role == model.RoleAdmin || req.Role == model.RoleStudent {
		role = req.Role
	}

	hash, err := crypto.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user := model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email_taken")
			return
		}
		s.logger.Error("create user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "user created",
		"user":    userSummary{ID: user.ID, Email: user.Email, Role: user.Role},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message      string      `json:"message"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         userSummary `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	// Unknown email and wrong password must be indistinguishable.
	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.logger.Error("user lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	accessToken, err := s.issueAccessToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	refreshToken, err := auth.NewToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, user.ID, s.cfg.RefreshTokenTTL, auth.Claims{
		TokenType: auth.TokenTypeRefresh,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:      "login successful",
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         userSummary{ID: user.ID, Email: user.Email, Role: user.Role},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnauthorized, "missing_refresh_token")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusUnauthorized, "missing_refresh_token")
		return
	}

	claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, auth.TokenTypeRefresh, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusForbidden, "invalid_refresh_token")
		return
	}

	// The subject must still exist; refresh tokens are stateless and
	// outlive account changes.
	user, err := s.store.GetUserByID(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusForbidden, "invalid_refresh_token")
			return
		}
		s.logger.Error("user lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	accessToken, err := s.issueAccessToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": accessToken})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		s.logger.Error("user lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resetToken, err := auth.NewToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, user.ID, s.cfg.ResetTokenTTL, auth.Claims{
		TokenType: auth.TokenTypeReset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	// Returned directly instead of delivered out of band. Acceptable
	// only in a trusted development context.
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "reset token issued",
		"resetToken": resetToken,
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, auth.TokenTypeReset, req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_reset_token")
		return
	}

	hash, err := crypto.HashPassword(req.NewPassword, s.cfg.BcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.UpdatePasswordHash(r.Context(), claims.UserID(), hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid_reset_token")
			return
		}
		s.logger.Error("password update failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Item endpoints

type itemResponse struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	OwnerID    string `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail"`
	CreatedAt  string `json:"createdAt"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var (
		items []model.Item
		err   error
	)
	if claims.Role == model.RoleAdmin {
		items, err = s.store.ListItems(r.Context())
	} else {
		items, err = s.store.ListItemsByOwner(r.Context(), claims.UserID())
	}
	if err != nil {
		s.logger.Error("list items failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, mapItem(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createItemRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "missing_content")
		return
	}

	item := model.Item{
		ID:         uuid.NewString(),
		Content:    req.Content,
		OwnerID:    claims.UserID(),
		OwnerEmail: claims.Email,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateItem(r.Context(), item); err != nil {
		s.logger.Error("create item failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, mapItem(item))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if uuid.Validate(itemID) != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	// Existence is checked before ownership so a missing id is always
	// reported as not_found, never forbidden.
	item, err := s.store.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.logger.Error("get item failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if claims.Role != model.RoleAdmin && item.OwnerID != claims.UserID() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.store.DeleteItem(r.Context(), itemID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("delete item failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	logs, err := s.store.ListAuditLogs(r.Context(), limit)
	if err != nil {
		s.logger.Error("list audit logs failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	type logResponse struct {
		ID        string `json:"id"`
		UserID    string `json:"userId"`
		Email     string `json:"email"`
		Method    string `json:"method"`
		Path      string `json:"path"`
		CreatedAt string `json:"createdAt"`
	}
	resp := make([]logResponse, 0, len(logs))
	for _, entry := range logs {
		resp = append(resp, logResponse{
			ID:        entry.ID,
			UserID:    entry.UserID,
			Email:     entry.Email,
			Method:    entry.Method,
			Path:      entry.Path,
			CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Middleware

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, auth.TokenTypeAccess, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// auditLog records who did what on the protected surface. Failures are
// logged and never block the request.
func (s *Server) auditLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := claimsFromContext(r.Context()); claims != nil {
			entry := model.AuditLog{
				ID:        uuid.NewString(),
				UserID:    claims.UserID(),
				Email:     claims.Email,
				Method:    r.Method,
				Path:      r.URL.Path,
				CreatedAt: time.Now().UTC(),
			}
			if err := s.store.CreateAuditLog(r.Context(), entry); err != nil {
				s.logger.Warn("audit log write failed", "err", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := s.limiter.Allow(r.Context(), "classdesk:authrate:"+clientIP(r))
		if err != nil {
			// Limiter trouble should not take down login.
			s.logger.Warn("rate limiter unavailable", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) allowOrigin(_ *http.Request, origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1")
}

// Helpers

func (s *Server) issueAccessToken(user model.User) (string, error) {
	return auth.NewToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, user.ID, s.cfg.AccessTokenTTL, auth.Claims{
		Email:     user.Email,
		Role:      user.Role,
		TokenType: auth.TokenTypeAccess,
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func mapItem(item model.Item) itemResponse {
	return itemResponse{
		ID:         item.ID,
		Content:    item.Content,
		OwnerID:    item.OwnerID,
		OwnerEmail: item.OwnerEmail,
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
