package switcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhq/accessgate/pkg/access"
	"github.com/enrollhq/accessgate/pkg/assignment"
	"github.com/enrollhq/accessgate/pkg/rolecat"
)

func newUser(t *testing.T, primary rolecat.Role, perms ...rolecat.Role) assignment.User {
	t.Helper()
	u, err := assignment.NewUser(primary, rolecat.NewSet(perms...))
	require.NoError(t, err)
	return u
}

func TestNewStartsAtPrimary(t *testing.T) {
	s := New(newUser(t, rolecat.AdmissionOfficer, rolecat.Consultant))
	assert.Equal(t, rolecat.AdmissionOfficer, s.ActiveRole())
	assert.Equal(t, []rolecat.Role{rolecat.Consultant, rolecat.AdmissionOfficer}, s.AccessibleRoles())
}

func TestSwitchTo(t *testing.T) {
	s := New(newUser(t, rolecat.AdmissionOfficer, rolecat.Consultant))

	page, err := s.SwitchTo(rolecat.Consultant)
	require.NoError(t, err)
	assert.Equal(t, access.PageConsultDashboard, page)
	assert.Equal(t, rolecat.Consultant, s.ActiveRole())

	// A role outside the accessible set has no transition.
	_, err = s.SwitchTo(rolecat.ContentManager)
	assert.ErrorIs(t, err, ErrRoleNotAccessible)
	assert.Equal(t, rolecat.Consultant, s.ActiveRole(), "rejected switch leaves state untouched")
}

func TestSwitchToActiveRoleIsNoop(t *testing.T) {
	s := New(newUser(t, rolecat.Consultant, rolecat.ContentManager))

	page, err := s.SwitchTo(rolecat.Consultant)
	require.NoError(t, err)
	assert.Equal(t, access.PageConsultDashboard, page)
	assert.Equal(t, rolecat.Consultant, s.ActiveRole())
}

func TestCanSwitchTo(t *testing.T) {
	s := New(newUser(t, rolecat.Consultant, rolecat.SystemAdmin))
	assert.True(t, s.CanSwitchTo(rolecat.SystemAdmin))
	assert.True(t, s.CanSwitchTo(rolecat.Consultant))
	assert.False(t, s.CanSwitchTo(rolecat.Customer))
}

func TestRefresh(t *testing.T) {
	u := newUser(t, rolecat.Consultant, rolecat.ContentManager)
	s := New(u)

	_, err := s.SwitchTo(rolecat.ContentManager)
	require.NoError(t, err)

	// Permission revoked while operating as content manager: the active
	// role falls back to the primary.
	revoked, _ := u.WithPermissions(rolecat.NewSet())
	reset := s.Refresh(revoked)
	assert.True(t, reset)
	assert.Equal(t, rolecat.Consultant, s.ActiveRole())

	// A refresh that keeps the active role accessible does not reset.
	granted, _ := u.WithPermissions(rolecat.NewSet(rolecat.ContentManager, rolecat.SystemAdmin))
	s2 := New(granted)
	_, err = s2.SwitchTo(rolecat.ContentManager)
	require.NoError(t, err)
	assert.False(t, s2.Refresh(granted))
	assert.Equal(t, rolecat.ContentManager, s2.ActiveRole())
}
