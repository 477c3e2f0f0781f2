package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/enrollhq/accessgate/pkg/assignment"
	"github.com/enrollhq/accessgate/pkg/audit"
	"github.com/enrollhq/accessgate/pkg/crmclient"
	"github.com/enrollhq/accessgate/pkg/httputil"
)

type updatePermissionsRequest struct {
	Permissions []string `json:"permissions"`

	// RoleID is accepted only to reject it explicitly: the primary role is
	// immutable and must not ride along on a permission update.
	RoleID *int64 `json:"role_id"`
}

// updatePermissions replaces a user's permission set. Concurrent
// submissions for the same user are rejected with a conflict; submissions
// for different users proceed independently.
func (s *Server) updatePermissions(w http.ResponseWriter, r *http.Request) {
	_, cred, err := s.session(r)
	if err != nil {
		s.writeClientError(w, err)
		return
	}
	targetID, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	var req updatePermissionsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.RoleID != nil {
		s.writeClientError(w, assignment.ErrPrimaryRoleImmutable)
		return
	}

	if _, inFlight := s.updates.LoadOrStore(targetID, struct{}{}); inFlight {
		httputil.WriteConflict(w, "an update for this user is already in flight")
		return
	}
	defer s.updates.Delete(targetID)

	target, err := s.lookupUser(r.Context(), cred, targetID)
	if err != nil {
		if errors.Is(err, errUnknownCaller) {
			httputil.WriteNotFound(w, "user not found")
			return
		}
		s.writeClientError(w, err)
		return
	}

	updated, err := s.crm.UpdatePermissions(r.Context(), cred, target, req.Permissions)
	if err != nil {
		s.writeClientError(w, err)
		return
	}

	s.refreshSessions(updated)
	s.record(r, audit.Event{
		Time:     time.Now().UTC(),
		Action:   audit.ActionPermissionUpdate,
		TargetID: targetID,
		Detail:   map[string]string{"permissions": strings.Join(updated.Permissions.Names(), ",")},
	})
	httputil.WriteSuccess(w, updated)
}

type registerUserRequest struct {
	FullName    string   `json:"full_name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	PhoneNumber string   `json:"phone_number"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// registerUser proxies account creation to the CRM.
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	_, cred, err := s.session(r)
	if err != nil {
		s.writeClientError(w, err)
		return
	}
	var req registerUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Role == "" {
		s.writeClientError(w, assignment.ErrPrimaryRoleRequired)
		return
	}

	created, err := s.crm.Register(r.Context(), cred, crmclient.RegisterRequest{
		FullName:        req.FullName,
		Email:           req.Email,
		Password:        req.Password,
		PhoneNumber:     req.PhoneNumber,
		RoleName:        req.Role,
		PermissionNames: req.Permissions,
	})
	if err != nil {
		s.writeClientError(w, err)
		return
	}

	s.record(r, audit.Event{
		Time:     time.Now().UTC(),
		Action:   audit.ActionUserRegister,
		TargetID: created.ID,
		Detail:   map[string]string{"role": created.PrimaryRole.String()},
	})
	httputil.WriteCreated(w, created)
}

func (s *Server) banUser(w http.ResponseWriter, r *http.Request) {
	s.banCall(w, r, audit.ActionUserBan, s.crm.Ban)
}

func (s *Server) unbanUser(w http.ResponseWriter, r *http.Request) {
	s.banCall(w, r, audit.ActionUserUnban, s.crm.Unban)
}

type banFunc func(ctx context.Context, cred *crmclient.Credential, target assignment.User) error

func (s *Server) banCall(w http.ResponseWriter, r *http.Request, action audit.Action, call banFunc) {
	_, cred, err := s.session(r)
	if err != nil {
		s.writeClientError(w, err)
		return
	}
	targetID, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	target, err := s.lookupUser(r.Context(), cred, targetID)
	if err != nil {
		if errors.Is(err, errUnknownCaller) {
			httputil.WriteNotFound(w, "user not found")
			return
		}
		s.writeClientError(w, err)
		return
	}

	if err := call(r.Context(), cred, target); err != nil {
		s.writeClientError(w, err)
		return
	}

	s.record(r, audit.Event{
		Time:     time.Now().UTC(),
		Action:   action,
		TargetID: targetID,
	})
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

type directoryResponse struct {
	Users []assignment.User `json:"users"`
	Stale bool              `json:"stale,omitempty"`
}

func (s *Server) listStaff(w http.ResponseWriter, r *http.Request) {
	s.listDirectory(w, r, s.crm.ListStaff)
}

func (s *Server) listStudents(w http.ResponseWriter, r *http.Request) {
	s.listDirectory(w, r, s.crm.ListStudents)
}

type listFunc func(ctx context.Context, cred *crmclient.Credential) ([]assignment.User, error)

// listDirectory proxies a directory read. When the upstream is unreachable
// or the credential went stale, cached data is still served, flagged stale,
// so the dashboard can render it behind a re-authentication prompt.
func (s *Server) listDirectory(w http.ResponseWriter, r *http.Request, list listFunc) {
	_, cred, err := s.session(r)
	if err != nil {
		s.writeClientError(w, err)
		return
	}

	users, err := list(r.Context(), cred)
	if err != nil {
		if len(users) > 0 {
			w.Header().Set("Warning", `110 - "Response is Stale"`)
			httputil.WriteSuccess(w, directoryResponse{Users: users, Stale: true})
			return
		}
		s.writeClientError(w, err)
		return
	}
	httputil.WriteSuccess(w, directoryResponse{Users: users})
}
