// Package switcher implements the runtime role-switch state machine: the
// set of roles a multi-permission user may operate as, and the transitions
// between them. The state is ephemeral session state; a fresh Switcher
// always starts at the primary role.
package switcher

import (
	"errors"
	"sync"

	"github.com/enrollhq/accessgate/pkg/access"
	"github.com/enrollhq/accessgate/pkg/assignment"
	"github.com/enrollhq/accessgate/pkg/rolecat"
)

// ErrRoleNotAccessible indicates a switch to a role outside the user's
// effective role set. No transition exists for such targets.
var ErrRoleNotAccessible = errors.New("role is not in the accessible set")

// Switcher tracks the accessible roles and the active role for one session.
// The decision core it wraps is pure; the mutex only exists because the
// service handles concurrent requests for the same session.
type Switcher struct {
	mu         sync.Mutex
	primary    rolecat.Role
	accessible rolecat.Set
	active     rolecat.Role
}

// New creates a switcher for the user with the active role initialized to
// the primary role.
func New(u assignment.User) *Switcher {
	return &Switcher{
		primary:    u.PrimaryRole,
		accessible: u.EffectiveRoles(),
		active:     u.PrimaryRole,
	}
}

// ActiveRole returns the role whose navigation surface is currently shown.
func (s *Switcher) ActiveRole() rolecat.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// AccessibleRoles returns the roles the user may operate as, in ID order.
func (s *Switcher) AccessibleRoles() []rolecat.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessible.Roles()
}

// CanSwitchTo reports whether target is a legal switch destination.
func (s *Switcher) CanSwitchTo(target rolecat.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessible.Has(target)
}

// SwitchTo activates the target role and returns its landing page. Targets
// outside the accessible set are rejected. Switching to the already-active
// role is a no-op that still reports the landing page, so the caller can
// treat it as a successful navigation.
func (s *Switcher) SwitchTo(target rolecat.Role) (access.PageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accessible.Has(target) {
		return "", ErrRoleNotAccessible
	}
	page, ok := access.LandingPage(target)
	if !ok {
		return "", ErrRoleNotAccessible
	}
	s.active = target
	return page, nil
}

// Refresh recomputes the accessible set after the user record changed
// (e.g. a permission update). If the active role fell out of the set, the
// switcher resets to the primary role and reports the reset.
func (s *Switcher) Refresh(u assignment.User) (reset bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.primary = u.PrimaryRole
	s.accessible = u.EffectiveRoles()
	if !s.accessible.Has(s.active) {
		s.active = s.primary
		return true
	}
	return false
}
