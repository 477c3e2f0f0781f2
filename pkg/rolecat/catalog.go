package rolecat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role identifies one of the five operating roles of the admissions CRM.
// The same identifier space doubles as the permission namespace: granting a
// user the permission with ID N grants access to role N's capability set.
type Role int

const (
	// SystemAdmin has full access to every surface. Permission name "admin".
	SystemAdmin Role = 1
	// Consultant handles student consultations and chat sessions.
	Consultant Role = 2
	// ContentManager manages articles and templates.
	ContentManager Role = 3
	// AdmissionOfficer processes student applications.
	AdmissionOfficer Role = 4
	// Customer is the default role for student/parent accounts and the
	// fallback for records with a missing or unknown role_id.
	Customer Role = 5
)

// Canonical permission names, keyed by role ID. This table is the single
// source of truth for the ID<->name mapping; do not redefine it elsewhere.
var idToName = map[Role]string{
	SystemAdmin:      "admin",
	Consultant:       "consultant",
	ContentManager:   "content_manager",
	AdmissionOfficer: "admission_officer",
	Customer:         "customer",
}

// nameToID is the inverse of idToName plus accepted aliases. Keys are
// already normalized (lowercase).
var nameToID = map[string]Role{
	"admin":             SystemAdmin,
	"system_admin":      SystemAdmin,
	"consultant":        Consultant,
	"content_manager":   ContentManager,
	"admission_officer": AdmissionOfficer,
	"customer":          Customer,
}

var (
	// ErrUnknownPermission indicates a permission name that does not resolve
	// to any role after normalization.
	ErrUnknownPermission = errors.New("unknown permission name")
	// ErrUnknownPermissionID indicates a permission ID outside the catalog.
	ErrUnknownPermissionID = errors.New("unknown permission id")
)

// Normalize folds a permission name to its canonical form: whitespace
// trimmed, lowercased, and aliases collapsed (SYSTEM_ADMIN -> admin).
// Unknown names are returned trimmed and lowercased so callers can report
// them as received.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if id, ok := nameToID[n]; ok {
		return idToName[id]
	}
	return n
}

// NameToID resolves a permission name to its role ID. The name is normalized
// first, so uppercase role constants from the frontend (CONSULTANT,
// SYSTEM_ADMIN) resolve the same as canonical names.
func NameToID(name string) (Role, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	id, ok := nameToID[n]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
	}
	return id, nil
}

// IDToName resolves a role ID to its canonical permission name.
func IDToName(id Role) (string, error) {
	name, ok := idToName[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownPermissionID, id)
	}
	return name, nil
}

// Valid reports whether r is one of the five catalog roles.
func (r Role) Valid() bool {
	_, ok := idToName[r]
	return ok
}

// String returns the canonical permission name, or "role(N)" for IDs
// outside the catalog.
func (r Role) String() string {
	if name, ok := idToName[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// RoleFromID maps an upstream role_id to a Role. Records with a missing or
// unknown role_id default to Customer; the directory endpoints return null
// role IDs for self-registered accounts.
func RoleFromID(id *int64) Role {
	if id == nil {
		return Customer
	}
	r := Role(*id)
	if !r.Valid() {
		return Customer
	}
	return r
}

// MapPermissionNames translates a batch of permission names to role IDs for
// submission to the permissions update endpoint. Names that do not resolve
// are dropped rather than failing the batch; they are returned separately so
// callers can log the drops. The lenient behavior is deliberate: the
// frontend historically submitted stale names and the submission must still
// go through.
func MapPermissionNames(names []string) (ids []Role, dropped []string) {
	for _, name := range names {
		id, err := NameToID(name)
		if err != nil {
			dropped = append(dropped, name)
			continue
		}
		ids = append(ids, id)
	}
	return ids, dropped
}

// AllRoles returns the catalog roles in ID order.
func AllRoles() []Role {
	return []Role{SystemAdmin, Consultant, ContentManager, AdmissionOfficer, Customer}
}

// Set is an unordered set of roles. The zero value is not usable; use NewSet.
type Set map[Role]struct{}

// NewSet builds a set from the given roles, ignoring invalid IDs.
func NewSet(roles ...Role) Set {
	s := make(Set, len(roles))
	for _, r := range roles {
		if r.Valid() {
			s[r] = struct{}{}
		}
	}
	return s
}

// Has reports whether the set contains r.
func (s Set) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Add inserts r into the set. Invalid roles are ignored.
func (s Set) Add(r Role) {
	if r.Valid() {
		s[r] = struct{}{}
	}
}

// Len returns the number of roles in the set.
func (s Set) Len() int { return len(s) }

// Roles returns the set members in ID order.
func (s Set) Roles() []Role {
	roles := make([]Role, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Names returns the sorted canonical names of the set members. Sorting makes
// the result stable for change detection against a previous permission list.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, r.String())
	}
	sort.Strings(names)
	return names
}

// Equal reports whether two sets contain the same roles.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}

// Union returns a new set containing the members of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for r := range s {
		out[r] = struct{}{}
	}
	for r := range other {
		out[r] = struct{}{}
	}
	return out
}

// Clone returns a copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}
