package assignment

import (
	"encoding/json"

	"github.com/enrollhq/accessgate/pkg/rolecat"
)

// userJSON is the serialized form of User: permissions travel as canonical
// names, which keeps cached and API payloads readable and stable across
// role ID reordering.
type userJSON struct {
	ID                     int64    `json:"id"`
	FullName               string   `json:"full_name,omitempty"`
	Email                  string   `json:"email,omitempty"`
	PhoneNumber            string   `json:"phone_number,omitempty"`
	RoleID                 int64    `json:"role_id"`
	Permissions            []string `json:"permissions"`
	ConsultantIsLeader     bool     `json:"consultant_is_leader"`
	ContentManagerIsLeader bool     `json:"content_manager_is_leader"`
	Status                 Status   `json:"status"`
}

// MarshalJSON implements json.Marshaler.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(userJSON{
		ID:                     u.ID,
		FullName:               u.FullName,
		Email:                  u.Email,
		PhoneNumber:            u.PhoneNumber,
		RoleID:                 int64(u.PrimaryRole),
		Permissions:            u.Permissions.Names(),
		ConsultantIsLeader:     u.ConsultantIsLeader,
		ContentManagerIsLeader: u.ContentManagerIsLeader,
		Status:                 u.Status,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Unknown permission names are
// dropped per the catalog's lenient policy.
func (u *User) UnmarshalJSON(data []byte) error {
	var wire userJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	perms := rolecat.NewSet()
	for _, name := range wire.Permissions {
		if r, err := rolecat.NameToID(name); err == nil {
			perms.Add(r)
		}
	}
	*u = User{
		ID:                     wire.ID,
		FullName:               wire.FullName,
		Email:                  wire.Email,
		PhoneNumber:            wire.PhoneNumber,
		PrimaryRole:            rolecat.Role(wire.RoleID),
		Permissions:            perms,
		ConsultantIsLeader:     wire.ConsultantIsLeader,
		ContentManagerIsLeader: wire.ContentManagerIsLeader,
		Status:                 wire.Status,
	}
	return nil
}
