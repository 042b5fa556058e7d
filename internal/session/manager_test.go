package session

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"complaintdesk/internal/roles"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *MemoryBackend, *fakeClock) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	backend := NewMemoryBackend()
	m := NewManager(backend, Options{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
		Now:        clock.Now,
	}, logger)
	return m, backend, clock
}

func agentPrincipal() Principal {
	return Principal{UserID: "7", Role: roles.Agent, Status: roles.StatusActive, CompanyID: "c1", Region: "East"}
}

func TestManager_StartAndRead(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	cred, err := m.Start(ctx, agentPrincipal(), "remote-token")
	require.NoError(t, err)
	require.NotEmpty(t, cred.AccessToken)
	require.NotEmpty(t, cred.RefreshToken)

	sid, err := m.ParseAccessToken(cred.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, cred.SessionID, sid)

	p := m.Principal(ctx, sid)
	require.NotNil(t, p)
	assert.Equal(t, roles.Agent, p.Role)
	assert.Equal(t, "remote-token", m.RemoteToken(ctx, sid))

	c := m.Credential(ctx, sid)
	require.NotNil(t, c)
	assert.Equal(t, cred.AccessToken, c.AccessToken)
	assert.Empty(t, c.RefreshToken, "refresh token is never read back")
}

func TestManager_StartRejectsInvalidPrincipal(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Start(context.Background(), Principal{UserID: "1", Role: roles.Agent}, "")
	assert.ErrorIs(t, err, ErrInvalidInput, "agent without company")

	_, err = m.Start(context.Background(), Principal{UserID: "1"}, "")
	assert.ErrorIs(t, err, ErrInvalidInput, "unknown role")
}

func TestManager_PrincipalBoundedByCredential(t *testing.T) {
	m, backend, clock := newTestManager(t)
	ctx := context.Background()

	cred, err := m.Start(ctx, agentPrincipal(), "")
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)

	assert.Nil(t, m.Principal(ctx, cred.SessionID), "expired access credential hides the principal")
	assert.Nil(t, m.Credential(ctx, cred.SessionID))

	_, err = backend.Get(ctx, cred.SessionID)
	assert.NoError(t, err, "record is still cached")

	_, err = m.ParseAccessToken(cred.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Refresh(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	cred, err := m.Start(ctx, agentPrincipal(), "")
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	require.Nil(t, m.Principal(ctx, cred.SessionID))

	next, err := m.Refresh(ctx, cred.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, cred.RefreshToken, next.RefreshToken)
	assert.Equal(t, cred.RefreshExpiresAt, next.RefreshExpiresAt)
	assert.NotNil(t, m.Principal(ctx, cred.SessionID))

	_, err = m.Refresh(ctx, cred.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "rotated refresh token cannot be replayed")
}

func TestManager_AuthenticateAcceptsOnlyCurrentToken(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	cred, err := m.Start(ctx, agentPrincipal(), "")
	require.NoError(t, err)

	sid, p := m.Authenticate(ctx, cred.AccessToken)
	require.NotNil(t, p)
	assert.Equal(t, cred.SessionID, sid)
	assert.Equal(t, "7", p.UserID)

	next, err := m.Refresh(ctx, cred.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, cred.AccessToken, next.AccessToken, "tokens minted in the same second still differ")

	_, p = m.Authenticate(ctx, cred.AccessToken)
	assert.Nil(t, p, "token replaced by refresh is no longer accepted")

	sid, p = m.Authenticate(ctx, next.AccessToken)
	require.NotNil(t, p)
	assert.Equal(t, cred.SessionID, sid)

	_, p = m.Authenticate(ctx, "not-a-jwt")
	assert.Nil(t, p)

	require.NoError(t, m.Invalidate(ctx, sid))
	_, p = m.Authenticate(ctx, next.AccessToken)
	assert.Nil(t, p)
}

func TestManager_RefreshCapsAccessAtSessionEnd(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	cred, err := m.Start(ctx, agentPrincipal(), "")
	require.NoError(t, err)

	clock.Advance(55 * time.Minute)
	next, err := m.Refresh(ctx, cred.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, next.RefreshExpiresAt, next.AccessExpiresAt)

	clock.Advance(5 * time.Minute)
	_, err = m.Refresh(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestManager_RefreshMalformed(t *testing.T) {
	m, _, _ := newTestManager(t)

	for _, token := range []string{"", "nodot", ".verifier", "sid."} {
		_, err := m.Refresh(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}

	_, err := m.Refresh(context.Background(), "missing.verifier")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestManager_InvalidateIsIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	cred, err := m.Start(ctx, agentPrincipal(), "")
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(ctx, cred.SessionID))
	require.NoError(t, m.Invalidate(ctx, cred.SessionID))
	require.NoError(t, m.Invalidate(ctx, ""))

	assert.Nil(t, m.Principal(ctx, cred.SessionID))
	assert.Nil(t, m.Credential(ctx, cred.SessionID))
}

func TestManager_UpdatePrincipal(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	employer := Principal{UserID: "e1", Role: roles.Employer, Status: roles.StatusPending, CompanyID: "c1"}
	cred, err := m.Start(ctx, employer, "")
	require.NoError(t, err)

	employer.Status = roles.StatusApproved
	require.NoError(t, m.UpdatePrincipal(ctx, cred.SessionID, employer))
	assert.Equal(t, roles.StatusApproved, m.Principal(ctx, cred.SessionID).Status)

	assert.ErrorIs(t, m.UpdatePrincipal(ctx, "gone", employer), ErrSessionExpired)
}

func TestManager_Sweep(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Start(ctx, agentPrincipal(), "")
	require.NoError(t, err)

	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * time.Hour)
	n, err = m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestManager_ParseAccessTokenRejectsForeignSecret(t *testing.T) {
	m, _, _ := newTestManager(t)
	other, _, _ := newTestManager(t)
	other.secret = []byte("another-secret")

	cred, err := other.Start(context.Background(), agentPrincipal(), "")
	require.NoError(t, err)

	_, err = m.ParseAccessToken(cred.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
