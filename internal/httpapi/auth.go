package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sonara-health/sonara/internal/auth"
	"github.com/sonara-health/sonara/pkg/store"
)

// TokenCookie is the cookie carrying the signed session token.
const TokenCookie = "sonara_token"

// verificationTTL is how long an emailed verification link stays valid.
const verificationTTL = 48 * time.Hour

type claimsKey struct{}

// claimsFrom returns the verified token claims attached by requireAuth.
func claimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok
}

// requireAuth verifies the session token (cookie or bearer header) and
// attaches its claims to the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie(TokenCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required", "")
			return
		}

		claims, err := s.signer.Verify(token)
		if err != nil {
			status := "invalid"
			if errors.Is(err, auth.ErrExpiredToken) {
				status = "expired"
			}
			writeError(w, http.StatusUnauthorized, status+" session token", "")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// requireRole builds on requireAuth and additionally checks the role
// claim. The role lives inside the signed token, so a client cannot
// escalate by editing a cookie.
func (s *Server) requireRole(role store.Role, next http.HandlerFunc) http.Handler {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := claimsFrom(r.Context())
		if claims.Role != role {
			writeError(w, http.StatusForbidden, "insufficient role", "")
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	return ""
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email required", "")
		return
	}
	role := store.Role(req.Role)
	if role != store.RoleTherapist && role != store.RolePatient {
		writeError(w, http.StatusBadRequest, "role must be therapist or patient", "")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "password rejected", err.Error())
		return
	}

	user := store.User{
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "account already exists", "")
			return
		}
		slog.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create account", "")
		return
	}

	if s.mailer != nil {
		token := randomToken()
		if err := s.store.CreateVerificationToken(r.Context(), req.Email, token, time.Now().Add(verificationTTL)); err != nil {
			slog.Error("create verification token", "email", req.Email, "error", err)
		} else if err := s.mailer.SendVerification(req.Email, token); err != nil {
			// The account exists; the user can request a fresh link.
			slog.Error("send verification email", "email", req.Email, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{"email": req.Email})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token query parameter required", "")
		return
	}
	email, err := s.store.ConsumeVerificationToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown or expired verification token", "")
			return
		}
		slog.Error("consume verification token", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "status": "verified"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same response as a wrong password; no account probing.
			writeError(w, http.StatusUnauthorized, "invalid credentials", "")
			return
		}
		slog.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed", "")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	if !user.Verified {
		writeError(w, http.StatusForbidden, "email not verified", "")
		return
	}

	token, err := s.signer.Issue(user.Email, user.Role)
	if err != nil {
		slog.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed", "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  string(user.Role),
	})
}

func randomToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
