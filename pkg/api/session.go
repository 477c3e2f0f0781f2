package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/enrollhq/accessgate/pkg/assignment"
	"github.com/enrollhq/accessgate/pkg/crmclient"
	"github.com/enrollhq/accessgate/pkg/middleware"
	"github.com/enrollhq/accessgate/pkg/switcher"
)

// errUnknownCaller indicates a token whose subject could not be resolved in
// the CRM directory.
var errUnknownCaller = errors.New("caller not found in directory")

// session holds the per-caller switcher state. Sessions live for the
// lifetime of the bearer token and are never persisted.
type session struct {
	mu   sync.Mutex
	user assignment.User
	sw   *switcher.Switcher
}

// session resolves the caller's session, creating it on first use by
// looking the token's subject up in the CRM directory.
func (s *Server) session(r *http.Request) (*session, *crmclient.Credential, error) {
	cred := middleware.CredentialFromRequest(r)
	if cred == nil {
		return nil, nil, crmclient.ErrStaleCredential
	}
	if sess, ok := s.sessions.Get(cred.Raw()); ok {
		return sess, cred, nil
	}

	user, err := s.lookupUser(r.Context(), cred, cred.Subject())
	if err != nil {
		return nil, nil, err
	}
	sess := &session{user: user, sw: switcher.New(user)}
	if existing, ok, _ := s.sessions.PeekOrAdd(cred.Raw(), sess); ok {
		return existing, cred, nil
	}
	return sess, cred, nil
}

// lookupUser finds a user by ID across the staff and student directories.
func (s *Server) lookupUser(ctx context.Context, cred *crmclient.Credential, id int64) (assignment.User, error) {
	if id == 0 {
		return assignment.User{}, errUnknownCaller
	}
	for _, list := range []func(context.Context, *crmclient.Credential) ([]assignment.User, error){
		s.crm.ListStaff, s.crm.ListStudents,
	} {
		users, err := list(ctx, cred)
		// A stale-credential read may still carry cached users; search
		// whatever came back before giving up on the error.
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		if err != nil && len(users) == 0 {
			return assignment.User{}, err
		}
	}
	return assignment.User{}, errUnknownCaller
}

// refreshSessions recomputes the switcher for every session belonging to
// the updated user, resetting the active role when it fell out of the
// accessible set.
func (s *Server) refreshSessions(user assignment.User) {
	for _, sess := range s.sessions.Values() {
		sess.mu.Lock()
		if sess.user.ID == user.ID {
			sess.user = user
			if sess.sw.Refresh(user) {
				s.log.WithField("user_id", user.ID).Info("active role reset to primary after permission change")
			}
		}
		sess.mu.Unlock()
	}
}
