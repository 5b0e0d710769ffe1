package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"DiscBox/core/auth"
	"DiscBox/logger"
)

// LoginRequest represents the login request body.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginHandler checks the admin password and issues a session token.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Password == "" {
		http.Error(w, "Password is required", http.StatusBadRequest)
		return
	}

	if !h.checkAdminPassword(req.Password) {
		logger.Warn("login failed", logger.String("remoteAddr", r.RemoteAddr))
		http.Error(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	ttl := time.Duration(h.cfg.TokenTTLHours) * time.Hour
	token, err := auth.GenerateToken(h.cfg.JWTSecret, ttl)
	if err != nil {
		logger.Error("failed to generate token", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Info("login succeeded", logger.String("remoteAddr", r.RemoteAddr))
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// checkAdminPassword verifies the password against the configured bcrypt
// hash, falling back to the plaintext setting for local setups.
func (h *APIHandler) checkAdminPassword(password string) bool {
	if h.cfg.AdminPasswordHash != "" {
		return auth.CheckPasswordHash(password, h.cfg.AdminPasswordHash)
	}
	return h.cfg.AdminPassword != "" && password == h.cfg.AdminPassword
}

// AuthMiddleware is a middleware function that checks for a valid session token.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		if _, err := auth.ParseToken(h.cfg.JWTSecret, parts[1]); err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}
