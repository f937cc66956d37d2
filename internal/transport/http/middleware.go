package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request ID or mints one, so every log
// line and error for a request can be correlated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), reqID)))
	})
}

// RequestTime pins one observation time per request. Eligibility expiry,
// withdrawal timestamps, and snapshot times all read this value, so a single
// request never straddles an expiry boundary.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminAuth verifies a bearer JWT signed with the shared admin key and
// requires role=admin. On success the token subject becomes the admin subject
// services check before privileged operations.
func AdminAuth(key []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := adminSubjectFromHeader(r.Header.Get("Authorization"), key)
			if err != nil {
				logger.WarnContext(r.Context(), "admin auth rejected",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err,
				)
				WriteError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdminSubject(r.Context(), subject)))
		})
	}
}

func adminSubjectFromHeader(header string, key []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing bearer token")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.Newf(dErrors.CodeUnauthorized, "unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid admin token")
	}
	if role, _ := claims["role"].(string); role != "admin" {
		return "", dErrors.New(dErrors.CodeForbidden, "token does not carry the admin role")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "admin token has no subject")
	}
	return subject, nil
}
