package assignment

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/enrollhq/accessgate/pkg/rolecat"
)

// PermissionValue decodes one element of an upstream "permissions" array.
// The CRM API returns permission entries in three shapes interchangeably: a
// bare number (the role ID), a bare string (the permission name), or an
// object carrying one of "id", "role_id" or "name". All shapes are
// normalized here at the ingestion boundary; nothing downstream branches on
// payload shape again.
type PermissionValue struct {
	role rolecat.Role
	ok   bool
}

// Role returns the decoded role and whether the entry resolved to a known
// permission. Unresolvable entries are dropped by Record.User.
func (p PermissionValue) Role() (rolecat.Role, bool) {
	return p.role, p.ok
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PermissionValue) UnmarshalJSON(data []byte) error {
	p.ok = false

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}

	// Bare number: the role ID.
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		p.set(rolecat.Role(id))
		return nil
	}

	// Bare string: the permission name, or a stringified ID.
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		p.setFromString(name)
		return nil
	}

	// Object: {"id": N} / {"role_id": N} / {"name": "..."}.
	var obj struct {
		ID     *int64 `json:"id"`
		RoleID *int64 `json:"role_id"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Unrecognized shape: treat as an unknown permission rather than
		// failing the whole directory response.
		return nil
	}
	switch {
	case obj.ID != nil:
		p.set(rolecat.Role(*obj.ID))
	case obj.RoleID != nil:
		p.set(rolecat.Role(*obj.RoleID))
	case obj.Name != "":
		p.setFromString(obj.Name)
	}
	return nil
}

func (p *PermissionValue) set(r rolecat.Role) {
	if r.Valid() {
		p.role = r
		p.ok = true
	}
}

func (p *PermissionValue) setFromString(s string) {
	if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		p.set(rolecat.Role(id))
		return
	}
	if r, err := rolecat.NameToID(s); err == nil {
		p.set(r)
	}
}

// Record is the wire shape of one user in the staff/student directory
// responses.
type Record struct {
	ID                     int64             `json:"id"`
	FullName               string            `json:"full_name"`
	Email                  string            `json:"email"`
	PhoneNumber            string            `json:"phone_number"`
	RoleID                 *int64            `json:"role_id"`
	Permissions            []PermissionValue `json:"permissions"`
	ConsultantIsLeader     bool              `json:"consultant_is_leader"`
	ContentManagerIsLeader bool              `json:"content_manager_is_leader"`
	Status                 string            `json:"status"`
}

// User transforms the wire record into the canonical User shape. A missing
// or unknown role_id defaults to Customer, unresolvable permission entries
// are dropped, and the leadership flags are recomputed from the role and
// permission state rather than trusted from the stored booleans.
func (r Record) User() User {
	perms := rolecat.NewSet()
	for _, pv := range r.Permissions {
		if role, ok := pv.Role(); ok {
			perms.Add(role)
		}
	}

	u := User{
		ID:          r.ID,
		FullName:    r.FullName,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		PrimaryRole: rolecat.RoleFromID(r.RoleID),
		Permissions: perms,
		Status:      StatusActive,
	}
	if strings.EqualFold(strings.TrimSpace(r.Status), string(StatusBanned)) {
		u.Status = StatusBanned
	}
	u.ConsultantIsLeader, u.ContentManagerIsLeader = DeriveLeadership(u.PrimaryRole, u.Permissions)
	return u
}
