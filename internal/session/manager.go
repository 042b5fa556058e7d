package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Credential is the pair of tokens that keeps a session alive. RefreshToken
// is only populated when the credential is issued or rotated; the store keeps
// a bcrypt hash of it, never the token itself.
type Credential struct {
	SessionID        string    `json:"-"`
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken,omitempty"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Options configures a Manager.
type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

type accessClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Manager is the session store every request handler reads from. It is safe
// for concurrent use when its Backend is.
type Manager struct {
	backend    Backend
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	now        func() time.Time
	log        *logrus.Entry
}

// NewManager creates a Manager over the given backend.
func NewManager(backend Backend, opts Options, logger *logrus.Logger) *Manager {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		backend:    backend,
		secret:     []byte(opts.Secret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		cost:       opts.BcryptCost,
		now:        opts.Now,
		log:        logger.WithField("component", "session"),
	}
}

// Start opens a session for a principal that has already been validated.
// remoteToken is the bearer credential the remote API issued at login.
func (m *Manager) Start(ctx context.Context, p Principal, remoteToken string) (Credential, error) {
	if err := p.Validate(); err != nil {
		return Credential{}, err
	}

	now := m.now()
	rec := &Record{
		SessionID:        uuid.NewString(),
		Principal:        p,
		RemoteToken:      remoteToken,
		RefreshExpiresAt: now.Add(m.refreshTTL),
		CreatedAt:        now,
	}

	cred, err := m.issue(rec, now)
	if err != nil {
		return Credential{}, err
	}
	if err := m.backend.Put(ctx, rec); err != nil {
		return Credential{}, fmt.Errorf("store session: %w", err)
	}

	m.log.WithFields(logrus.Fields{"session": rec.SessionID, "role": p.Role}).Info("session started")
	return cred, nil
}

// Refresh rotates the access credential of the session named by the refresh
// token. The refresh token itself is rotated too; the absolute session
// lifetime does not move.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	sessionID, verifier, ok := strings.Cut(refreshToken, ".")
	if !ok || sessionID == "" || verifier == "" {
		return Credential{}, ErrInvalidToken
	}

	rec, err := m.backend.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credential{}, ErrSessionExpired
		}
		return Credential{}, err
	}

	now := m.now()
	if !now.Before(rec.RefreshExpiresAt) {
		_ = m.backend.Delete(ctx, sessionID)
		return Credential{}, ErrSessionExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.RefreshHash), []byte(verifier)); err != nil {
		return Credential{}, ErrInvalidToken
	}

	cred, err := m.issue(rec, now)
	if err != nil {
		return Credential{}, err
	}
	if err := m.backend.Put(ctx, rec); err != nil {
		return Credential{}, fmt.Errorf("store session: %w", err)
	}
	return cred, nil
}

// issue mints a fresh access token and refresh verifier into rec.
func (m *Manager) issue(rec *Record, now time.Time) (Credential, error) {
	accessExpires := now.Add(m.accessTTL)
	if accessExpires.After(rec.RefreshExpiresAt) {
		accessExpires = rec.RefreshExpiresAt
	}

	claims := accessClaims{
		SessionID: rec.SessionID,
		Role:      string(rec.Principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   rec.Principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpires),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("sign access token: %w", err)
	}

	verifier, err := randomToken()
	if err != nil {
		return Credential{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(verifier), m.cost)
	if err != nil {
		return Credential{}, fmt.Errorf("hash refresh token: %w", err)
	}

	rec.AccessToken = access
	rec.AccessExpiresAt = accessExpires
	rec.RefreshHash = string(hash)

	return Credential{
		SessionID:        rec.SessionID,
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     rec.SessionID + "." + verifier,
		RefreshExpiresAt: rec.RefreshExpiresAt,
	}, nil
}

// ParseAccessToken verifies an access token and returns its session id.
func (m *Manager) ParseAccessToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || claims.SessionID == "" {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}

// Authenticate resolves an access token to its session id and principal.
// Only the token most recently issued for the session is accepted, so a
// token replaced by Refresh stops working even before it expires.
func (m *Manager) Authenticate(ctx context.Context, token string) (string, *Principal) {
	sessionID, err := m.ParseAccessToken(token)
	if err != nil {
		return "", nil
	}
	rec := m.live(ctx, sessionID)
	if rec == nil || subtle.ConstantTimeCompare([]byte(rec.AccessToken), []byte(token)) != 1 {
		return "", nil
	}
	p := rec.Principal
	return sessionID, &p
}

// Principal returns the session's principal, or nil when there is no
// session or its access credential has expired. Backend failures are logged
// and reported as no session.
func (m *Manager) Principal(ctx context.Context, sessionID string) *Principal {
	rec := m.live(ctx, sessionID)
	if rec == nil {
		return nil
	}
	p := rec.Principal
	return &p
}

// Credential returns the session's current credential, or nil under the same
// conditions as Principal. The refresh token is never returned here.
func (m *Manager) Credential(ctx context.Context, sessionID string) *Credential {
	rec := m.live(ctx, sessionID)
	if rec == nil {
		return nil
	}
	return &Credential{
		SessionID:        rec.SessionID,
		AccessToken:      rec.AccessToken,
		AccessExpiresAt:  rec.AccessExpiresAt,
		RefreshExpiresAt: rec.RefreshExpiresAt,
	}
}

// RemoteToken returns the remote API bearer credential of a live session.
func (m *Manager) RemoteToken(ctx context.Context, sessionID string) string {
	rec := m.live(ctx, sessionID)
	if rec == nil {
		return ""
	}
	return rec.RemoteToken
}

// UpdatePrincipal replaces the principal of a live session, e.g. after the
// remote API reports an employer approval.
func (m *Manager) UpdatePrincipal(ctx context.Context, sessionID string, p Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}
	rec := m.live(ctx, sessionID)
	if rec == nil {
		return ErrSessionExpired
	}
	rec.Principal = p
	return m.backend.Put(ctx, rec)
}

// Invalidate drops principal and credential together. Invalidating an
// unknown or already invalidated session is not an error.
func (m *Manager) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.backend.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// Sweep removes sessions whose refresh credential has expired.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.backend.DeleteExpired(ctx, m.now())
}

func (m *Manager) live(ctx context.Context, sessionID string) *Record {
	if sessionID == "" {
		return nil
	}
	rec, err := m.backend.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.WithError(err).WithField("session", sessionID).Warn("session lookup failed")
		}
		return nil
	}
	if !m.now().Before(rec.AccessExpiresAt) {
		return nil
	}
	return rec
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
