package core

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"barecourier/internal/types"
)

// InternalAuthMiddleware admits requests carrying the shared internal key as a
// Bearer token. The API is only called by the web backend and the job
// runners, so there is no per-user identity here.
//
// Failures return 401 with auth_token_missing (no usable Bearer token) or
// auth_token_invalid (wrong key). An unset key rejects everything.
func (s *Server) InternalAuthMiddleware(next http.Handler) http.Handler {
	var expected []byte
	if s.Config != nil {
		expected = []byte(s.Config.Server.InternalAPIKey.Unmask())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			s.Logger.WarnContext(r.Context(), "rejected internal request",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"request_id", types.GetRequestID(r.Context()),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token of a "Bearer <token>" header value, or
// "" when the scheme is missing. The scheme match is case-insensitive.
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
	w.Header().Set("WWW-Authenticate", `Bearer realm="barecourier"`)
	Error(w, r, types.NewAppError(code, message, nil))
}
