package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/roles"
	"complaintdesk/internal/routing"
	"complaintdesk/internal/session"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	return session.NewManager(session.NewMemoryBackend(), session.Options{
		Secret:     "mw-secret",
		BcryptCost: bcrypt.MinCost,
	}, quietLogger())
}

func startSession(t *testing.T, m *session.Manager, p session.Principal) session.Credential {
	t.Helper()
	cred, err := m.Start(context.Background(), p, "remote")
	require.NoError(t, err)
	return cred
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p := ctxkeys.GetPrincipal(r.Context())
	if p != nil {
		w.Write([]byte(p.UserID))
		return
	}
	w.Write([]byte("anonymous"))
})

func TestAuth(t *testing.T) {
	m := newManager(t)
	cred := startSession(t, m, session.Principal{UserID: "7", Role: roles.Agent, CompanyID: "c1"})
	h := Auth(m, false)(okHandler)

	tests := []struct {
		name     string
		setup    func(*http.Request)
		wantCode int
		wantBody string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+cred.AccessToken) }, http.StatusOK, "7"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessCookie, Value: cred.AccessToken}) }, http.StatusOK, "7"},
		{"no credential", func(r *http.Request) {}, http.StatusUnauthorized, "Session expired"},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, http.StatusUnauthorized, "Session expired"},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, NoticeSignIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestAuth_InvalidatedSession(t *testing.T) {
	m := newManager(t)
	cred := startSession(t, m, session.Principal{UserID: "7", Role: roles.Agent, CompanyID: "c1"})
	require.NoError(t, m.Invalidate(context.Background(), cred.SessionID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	rec := httptest.NewRecorder()
	Auth(m, false)(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, "token signature alone is not enough")
}

func TestAuth_RefreshedTokenReplacesOld(t *testing.T) {
	m := newManager(t)
	cred := startSession(t, m, session.Principal{UserID: "7", Role: roles.Agent, CompanyID: "c1"})
	next, err := m.Refresh(context.Background(), cred.RefreshToken)
	require.NoError(t, err)

	for token, want := range map[string]int{
		cred.AccessToken: http.StatusUnauthorized,
		next.AccessToken: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		Auth(m, false)(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}

func TestAuth_ClearsCookiesWithSecureFlag(t *testing.T) {
	m := newManager(t)

	for _, secure := range []bool{true, false} {
		rec := httptest.NewRecorder()
		Auth(m, secure)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 2)
		for _, c := range cookies {
			assert.Equal(t, secure, c.Secure, c.Name)
			assert.Empty(t, c.Value, c.Name)
		}
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(roles.Employer, roles.Admin)(okHandler)

	for role, want := range map[roles.Role]int{
		roles.Employer: http.StatusOK,
		roles.Admin:    http.StatusOK,
		roles.Agent:    http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(ctxkeys.WithSession(req.Context(), "s", &session.Principal{UserID: "1", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestRequireApproved(t *testing.T) {
	h := RequireApproved(okHandler)

	pending := &session.Principal{UserID: "1", Role: roles.Employer, Status: roles.StatusPending, CompanyID: "c"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ctxkeys.WithSession(req.Context(), "s", pending))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), NoticePending)
}

func guardedRouter(m *session.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(LoadSession(m))
	r.Use(Guard(quietLogger(), false))
	r.Get("/*", okHandler)
	return r
}

func TestGuard(t *testing.T) {
	m := newManager(t)
	pending := startSession(t, m, session.Principal{UserID: "e1", Role: roles.Employer, Status: roles.StatusPending, CompanyID: "c1"})
	approved := startSession(t, m, session.Principal{UserID: "e2", Role: roles.Employer, Status: roles.StatusApproved, CompanyID: "c1"})
	agent := startSession(t, m, session.Principal{UserID: "7", Role: roles.Agent, Status: roles.StatusActive, CompanyID: "c1"})
	h := guardedRouter(m)

	tests := []struct {
		name       string
		token      string
		path       string
		wantCode   int
		wantLoc    string
		wantNotice string
	}{
		{"pending employer to dashboard", pending.AccessToken, "/employer/dashboard", http.StatusSeeOther, routing.EmployerPending, NoticePending},
		{"pending employer on pending page", pending.AccessToken, "/employer/pending", http.StatusOK, "", ""},
		{"approved employer leaves pending page", approved.AccessToken, "/employer/pending", http.StatusSeeOther, routing.EmployerHome, NoticeApproved},
		{"agent into subadmin pages", agent.AccessToken, "/subadmin/dashboard/complaints", http.StatusSeeOther, routing.AgentHome, NoticeForbidden},
		{"agent on own dashboard", agent.AccessToken, "/agent/dashboard", http.StatusOK, "", ""},
		{"anonymous", "", "/agent/dashboard", http.StatusSeeOther, "/login?next=%2Fagent%2Fdashboard", NoticeSignIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: AccessCookie, Value: tt.token})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			assert.Equal(t, tt.wantNotice, noticeFrom(t, rec))
		})
	}
}

// noticeFrom replays the response cookies into a new request and pops the
// notice from it.
func noticeFrom(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.Name == NoticeCookie && c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return PopNotice(httptest.NewRecorder(), req)
}

func TestPopNotice_ReadOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	SetNotice(rec, "Complaint resolved.")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	out := httptest.NewRecorder()
	assert.Equal(t, "Complaint resolved.", PopNotice(out, req))

	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, NoticeCookie, cleared[0].Name)
	assert.Negative(t, cleared[0].MaxAge)

	assert.Empty(t, PopNotice(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestRateLimit(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	h := RateLimit(0.001, 2, done, quietLogger())(okHandler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.9"))
	assert.Equal(t, http.StatusOK, send("203.0.113.9"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.9"))
	assert.Equal(t, http.StatusOK, send("198.51.100.4"), "limits are per client")
}

func TestIPLimiter_Prune(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ipl := newIPLimiter(1, 1)
	ipl.now = func() time.Time { return now }

	ipl.allow("a")
	now = now.Add(11 * time.Minute)
	ipl.allow("b")

	assert.Equal(t, 1, ipl.prune())
	assert.Len(t, ipl.limiters, 1)
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", extractIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 ,10.0.0.1")
	assert.Equal(t, "203.0.113.9", extractIP(req))
}

func TestDecisionNotice(t *testing.T) {
	assert.Empty(t, DecisionNotice(routing.Allow(), "/x"))
	assert.Equal(t, NoticeSignIn, DecisionNotice(routing.Reject(routing.ErrUnauthenticated), "/x"))
	assert.Equal(t, NoticeForbidden,
		DecisionNotice(routing.RedirectTo(routing.EmployerHome, routing.ErrUnauthorized), "/subadmin/dashboard"))
}
