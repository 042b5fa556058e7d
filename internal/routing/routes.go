// Package routing decides, for an authenticated principal, which dashboard
// route is authoritative and whether a requested route may be shown.
//
// Every guard in the gateway (page middleware, the navigation API used by the
// single-page client, the root redirect) calls into this package; none of
// them carries its own role or status rules.
package routing

import (
	"path"
	"strings"

	"complaintdesk/internal/roles"
)

// Route families. These strings are part of the client contract.
const (
	LoginPath         = "/login"
	AdminHome         = "/dashboard"
	AdminPrefix       = "/admin"
	EmployerHome      = "/employer/dashboard"
	EmployerPending   = "/employer/pending"
	SubAdminHome      = "/subadmin/dashboard"
	SupervisorHome    = "/supervisor/dashboard"
	AgentHome         = "/agent/dashboard"
	CitizenHome       = "/citizen/dashboard"
	OfficerMasterHome = "/officermaster/dashboard"
)

// roleScopedPrefixes are the dashboard families owned by exactly one role.
var roleScopedPrefixes = []string{
	EmployerHome,
	SubAdminHome,
	SupervisorHome,
	AgentHome,
	CitizenHome,
	OfficerMasterHome,
}

// adminOnlyPrefixes are reserved for platform administrators.
var adminOnlyPrefixes = []string{AdminHome, AdminPrefix}

var homeByRole = map[roles.Role]string{
	roles.Admin:         AdminHome,
	roles.SAdmin:        AdminHome,
	roles.SubAdmin:      SubAdminHome,
	roles.Supervisor:    SupervisorHome,
	roles.Agent:         AgentHome,
	roles.Citizen:       CitizenHome,
	roles.OfficerMaster: OfficerMasterHome,
}

// cleanPath drops any query or fragment and normalizes the path.
func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// inFamily reports whether p is prefix itself or lies below it.
func inFamily(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// IsAdminOnly reports whether the path belongs to a platform-admin family.
func IsAdminOnly(p string) bool {
	p = cleanPath(p)
	for _, prefix := range adminOnlyPrefixes {
		if inFamily(p, prefix) {
			return true
		}
	}
	return false
}

// scopedPrefix returns the role-scoped family p belongs to, if any.
func scopedPrefix(p string) (string, bool) {
	for _, prefix := range roleScopedPrefixes {
		if inFamily(p, prefix) {
			return prefix, true
		}
	}
	return "", false
}

// IsPendingPage reports whether the path is in the employer approval family.
func IsPendingPage(p string) bool {
	return inFamily(cleanPath(p), EmployerPending)
}
