package assignment

import (
	"errors"

	"github.com/enrollhq/accessgate/pkg/rolecat"
)

// Status is the account status. Users are soft-deleted by banning; this
// subsystem never hard-deletes.
type Status string

const (
	StatusActive Status = "active"
	StatusBanned Status = "banned"
)

var (
	// ErrPrimaryRoleRequired indicates a create request without a valid
	// primary role.
	ErrPrimaryRoleRequired = errors.New("primary role is required")
	// ErrPrimaryRoleImmutable indicates an update that tried to change the
	// primary role. The role is set once at creation; the only mutation
	// available afterwards is permission-set replacement.
	ErrPrimaryRoleImmutable = errors.New("primary role cannot be changed after creation")
	// ErrAdminBanGuard indicates a ban/unban attempt against a user whose
	// effective roles include admin. Admin accounts are never subject to the
	// ban workflow; the guard fires before any network call.
	ErrAdminBanGuard = errors.New("admin accounts cannot be banned or unbanned")
)

// User is the access-control view of a CRM account: the immutable primary
// role, the granted permission set, and the leadership flags derived from
// them.
// JSON encoding lives in json.go; permissions travel as canonical names.
type User struct {
	ID          int64
	FullName    string
	Email       string
	PhoneNumber string

	// PrimaryRole is assigned at creation and never changes. No operation in
	// this package mutates it; updates replace the permission set only.
	PrimaryRole rolecat.Role

	// Permissions are additional role grants beyond the primary role. May be
	// empty, in which case the effective capability set is the primary role
	// alone.
	Permissions rolecat.Set

	// Leadership flags are a computed projection of (PrimaryRole,
	// Permissions); see DeriveLeadership. They are recomputed on every
	// mutation and never hand-edited.
	ConsultantIsLeader     bool
	ContentManagerIsLeader bool

	Status Status
}

// NewUser creates a user with the given primary role and initial permission
// grants. The permission set may be nil.
func NewUser(primary rolecat.Role, perms rolecat.Set) (User, error) {
	if !primary.Valid() {
		return User{}, ErrPrimaryRoleRequired
	}
	if perms == nil {
		perms = rolecat.NewSet()
	}
	u := User{
		PrimaryRole: primary,
		Permissions: perms.Clone(),
		Status:      StatusActive,
	}
	u.ConsultantIsLeader, u.ContentManagerIsLeader = DeriveLeadership(primary, perms)
	return u, nil
}

// EffectiveRoles returns the union of the primary role and the granted
// permissions. All access decisions run against this set.
func (u User) EffectiveRoles() rolecat.Set {
	roles := u.Permissions.Clone()
	roles.Add(u.PrimaryRole)
	return roles
}

// IsAdmin reports whether the effective role set includes the system admin
// capability, either as primary role or as a granted permission.
func (u User) IsAdmin() bool {
	return u.EffectiveRoles().Has(rolecat.SystemAdmin)
}

// WithPermissions returns a copy of the user with the permission set
// replaced wholesale and the leadership flags recomputed. The second result
// reports whether the set actually changed; callers skip the remote update
// when it did not.
func (u User) WithPermissions(perms rolecat.Set) (User, bool) {
	if perms == nil {
		perms = rolecat.NewSet()
	}
	changed := !PermissionsEqual(u.Permissions, perms)
	out := u
	out.Permissions = perms.Clone()
	out.ConsultantIsLeader, out.ContentManagerIsLeader = DeriveLeadership(u.PrimaryRole, perms)
	return out, changed
}

// PermissionsEqual compares two permission sets by their sorted canonical
// name lists, mirroring the change detection the dashboard performs before
// issuing an update call.
func PermissionsEqual(a, b rolecat.Set) bool {
	an, bn := a.Names(), b.Names()
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i] != bn[i] {
			return false
		}
	}
	return true
}

// CheckBanAllowed rejects ban/unban requests for admin accounts. It must be
// consulted before the HTTP call is built: the request for an admin target
// is never sent.
func CheckBanAllowed(u User) error {
	if u.IsAdmin() {
		return ErrAdminBanGuard
	}
	return nil
}
