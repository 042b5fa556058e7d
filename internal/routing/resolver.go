package routing

import (
	"errors"

	"complaintdesk/internal/roles"
	"complaintdesk/internal/session"
)

var (
	// ErrUnauthenticated means there is no valid session credential.
	ErrUnauthenticated = errors.New("routing: unauthenticated")
	// ErrUnauthorized means the session is valid but the role or account
	// status does not permit the requested route.
	ErrUnauthorized = errors.New("routing: unauthorized")
)

// Kind classifies a Decision.
type Kind int

const (
	KindAllow Kind = iota
	KindRedirect
	KindReject
)

func (k Kind) String() string {
	switch k {
	case KindAllow:
		return "allow"
	case KindRedirect:
		return "redirect"
	case KindReject:
		return "reject"
	}
	return "unknown"
}

// Decision is the outcome of Authorize.
type Decision struct {
	Kind     Kind
	Location string // set for KindRedirect
	Reason   error  // set for KindRedirect and KindReject
}

// Allow lets the navigation proceed.
func Allow() Decision { return Decision{Kind: KindAllow} }

// RedirectTo sends the caller to location instead.
func RedirectTo(location string, reason error) Decision {
	return Decision{Kind: KindRedirect, Location: location, Reason: reason}
}

// Reject refuses the navigation outright.
func Reject(reason error) Decision { return Decision{Kind: KindReject, Reason: reason} }

// CanonicalHome returns the single authoritative dashboard of a principal.
// A nil principal or an unrecognized role maps to the login page.
func CanonicalHome(p *session.Principal) string {
	if p == nil {
		return LoginPath
	}
	if p.Role == roles.Employer {
		if p.Status == roles.StatusPending {
			return EmployerPending
		}
		return EmployerHome
	}
	if home, ok := homeByRole[p.Role]; ok {
		return home
	}
	return LoginPath
}

// Authorize decides whether p may view requestedPath. It is pure: the same
// inputs always produce the same Decision.
//
// Gates run in order: session, admin-only families, the employer approval
// gate, then the role-scoped dashboard prefixes.
func Authorize(p *session.Principal, requestedPath string) Decision {
	if p == nil || p.UserID == "" || !p.Role.Valid() {
		return Reject(ErrUnauthenticated)
	}

	target := cleanPath(requestedPath)
	home := CanonicalHome(p)

	if IsAdminOnly(target) && !p.Role.IsPlatformAdmin() {
		return RedirectTo(home, ErrUnauthorized)
	}

	if p.Role == roles.Employer {
		pending := p.Status == roles.StatusPending
		onPendingPage := inFamily(target, EmployerPending)
		if pending && !onPendingPage {
			return RedirectTo(EmployerPending, ErrUnauthorized)
		}
		if !pending && onPendingPage {
			return RedirectTo(EmployerHome, ErrUnauthorized)
		}
	}

	if prefix, ok := scopedPrefix(target); ok && !inFamily(home, prefix) {
		return RedirectTo(home, ErrUnauthorized)
	}

	return Allow()
}
