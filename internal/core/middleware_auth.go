package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"eventmail/internal/types"
)

// authPublicPaths are served without authentication.
var authPublicPaths = map[string]bool{
	"/health": true,
}

// Authenticator verifies the bearer key on an API request.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) error
}

// APIKeyAuthenticator accepts a single API key stored as a bcrypt hash.
type APIKeyAuthenticator struct {
	hash []byte
}

// NewAPIKeyAuthenticator returns an authenticator for the given bcrypt hash.
func NewAPIKeyAuthenticator(hash types.SecretString) (*APIKeyAuthenticator, error) {
	h := []byte(hash.Unmask())
	if _, err := bcrypt.Cost(h); err != nil {
		return nil, errors.New("core: API key hash is not a valid bcrypt hash")
	}
	return &APIKeyAuthenticator{hash: h}, nil
}

// Authenticate compares token with the stored hash.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, token string) error {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid authentication token", err)
	}
	return nil
}

// AuthMiddleware requires a valid "Authorization: Bearer <key>" header on
// every non-public path. It answers 401 with auth_token_missing when no key
// is presented and auth_token_invalid when the key does not verify. A nil
// Authenticator disables the check.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil || authPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		if err := s.Authenticator.Authenticate(r.Context(), token); err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthTokenInvalid {
				s.Logger.Warn("authentication failed: token invalid",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
			} else {
				s.Logger.Error("authentication failed: unexpected error",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token from "Bearer <token>", matching the
// scheme case-insensitively. It returns "" for any other format.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	JSON(w, r, http.StatusUnauthorized, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}
