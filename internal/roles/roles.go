// Package roles defines the closed set of account roles and the normalization
// applied to role and status values arriving from the remote API.
//
// Parse is the single ingestion boundary: legacy numeric role codes are mapped
// here and nowhere else.
package roles

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Role is one of the closed set of account roles.
type Role string

const (
	Unknown       Role = ""
	Admin         Role = "Admin"
	SAdmin        Role = "SAdmin"
	Employer      Role = "Employer"
	SubAdmin      Role = "SubAdmin"
	Supervisor    Role = "Supervisor"
	Agent         Role = "Agent"
	Citizen       Role = "Citizen"
	OfficerMaster Role = "OfficerMaster"
)

// All lists every recognized role.
var All = []Role{Admin, SAdmin, Employer, SubAdmin, Supervisor, Agent, Citizen, OfficerMaster}

// legacyCodes maps the numeric role codes still emitted by older endpoints.
var legacyCodes = map[int]Role{
	1: Admin,
	2: Employer,
	3: SubAdmin,
	4: Supervisor,
	5: Agent,
}

// byName is keyed by the folded form produced by fold.
var byName = map[string]Role{
	"admin":         Admin,
	"sadmin":        SAdmin,
	"superadmin":    SAdmin,
	"employer":      Employer,
	"subadmin":      SubAdmin,
	"supervisor":    Supervisor,
	"agent":         Agent,
	"citizen":       Citizen,
	"officermaster": OfficerMaster,
}

// Parse normalizes a raw role value. It accepts role names in any casing
// ("SubAdmin", "sub_admin", "sub-admin"), legacy numeric codes as numbers or
// numeric strings, and returns Unknown for anything else.
func Parse(raw interface{}) Role {
	switch v := raw.(type) {
	case Role:
		return ParseString(string(v))
	case string:
		return ParseString(v)
	case int:
		return legacyCodes[v]
	case int64:
		return legacyCodes[int(v)]
	case float64:
		if v != float64(int(v)) {
			return Unknown
		}
		return legacyCodes[int(v)]
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return Unknown
		}
		return legacyCodes[int(n)]
	}
	return Unknown
}

// ParseString normalizes a textual role value.
func ParseString(s string) Role {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	if n, err := strconv.Atoi(s); err == nil {
		return legacyCodes[n]
	}
	return byName[fold(s)]
}

// ParseJSON normalizes a role carried as a raw JSON value (string or number).
func ParseJSON(raw json.RawMessage) Role {
	if len(raw) == 0 {
		return Unknown
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseString(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return Parse(n)
	}
	return Unknown
}

func fold(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	for _, known := range All {
		if r == known {
			return true
		}
	}
	return false
}

// IsPlatformAdmin reports whether r administers the whole platform.
func (r Role) IsPlatformAdmin() bool {
	return r == Admin || r == SAdmin
}

// RequiresCompany reports whether a principal with this role must be linked
// to an employer tenant.
func (r Role) RequiresCompany() bool {
	switch r {
	case Employer, SubAdmin, Supervisor, Agent:
		return true
	}
	return false
}

func (r Role) String() string {
	if r == Unknown {
		return "unknown"
	}
	return string(r)
}
