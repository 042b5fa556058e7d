// Package middleware provides HTTP middleware for authentication, route
// guarding, rate limiting and user notices.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/roles"
	"complaintdesk/internal/session"
)

// Cookie names shared with the auth handlers.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// SessionReader is the part of the session store the middleware needs.
type SessionReader interface {
	Authenticate(ctx context.Context, token string) (string, *session.Principal)
}

// accessToken returns the bearer token from the Authorization header, or
// from the access cookie when there is no header.
func accessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

// resolve returns the session id and principal behind the request's
// credential, or nil when there is no live session.
func resolve(sessions SessionReader, r *http.Request) (string, *session.Principal) {
	token := accessToken(r)
	if token == "" {
		return "", nil
	}
	return sessions.Authenticate(r.Context(), token)
}

// Auth rejects API requests without a live session with 401 and injects the
// session id and principal into the request context. secureCookies must match
// the flag the session cookies were set with.
func Auth(sessions SessionReader, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, p := resolve(sessions, r)
			if p == nil {
				ClearSessionCookies(w, secureCookies)
				writeError(w, http.StatusUnauthorized, "Session expired", NoticeSignIn)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithSession(r.Context(), sid, p)))
		})
	}
}

// LoadSession injects the session like Auth but lets anonymous requests
// through; route guards decide what to do with them.
func LoadSession(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sid, p := resolve(sessions, r); p != nil {
				r = r.WithContext(ctxkeys.WithSession(r.Context(), sid, p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole restricts a route group to the given roles.
// Must be used after Auth.
func RequireRole(allowed ...roles.Role) func(http.Handler) http.Handler {
	set := make(map[roles.Role]bool, len(allowed))
	for _, r := range allowed {
		set[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := ctxkeys.GetPrincipal(r.Context())
			if p == nil || !set[p.Role] {
				writeError(w, http.StatusForbidden, "Insufficient permissions", NoticeForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireApproved keeps pending employers away from tenant APIs. Other roles
// pass through.
func RequireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.GetPrincipal(r.Context()).IsPendingEmployer() {
			writeError(w, http.StatusForbidden, "Account awaiting approval", NoticePending)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookies writes the access and refresh cookies.
func SetSessionCookies(w http.ResponseWriter, cred session.Credential, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    cred.AccessToken,
		Path:     "/",
		Expires:  cred.AccessExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	if cred.RefreshToken != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     RefreshCookie,
			Value:    cred.RefreshToken,
			Path:     "/api/auth",
			Expires:  cred.RefreshExpiresAt,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(w http.ResponseWriter, secure bool) {
	for name, path := range map[string]string{AccessCookie: "/", RefreshCookie: "/api/auth"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
		})
	}
}

func writeError(w http.ResponseWriter, status int, message, notice string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": message}
	if notice != "" {
		body["notice"] = notice
	}
	json.NewEncoder(w).Encode(body)
}
