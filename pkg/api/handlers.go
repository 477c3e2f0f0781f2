package api

import (
	"net/http"
	"time"

	"github.com/enrollhq/accessgate/pkg/access"
	"github.com/enrollhq/accessgate/pkg/audit"
	"github.com/enrollhq/accessgate/pkg/httputil"
	"github.com/enrollhq/accessgate/pkg/middleware"
	"github.com/enrollhq/accessgate/pkg/nav"
	"github.com/enrollhq/accessgate/pkg/rolecat"
)

type accessCheckResponse struct {
	Page     access.PageID `json:"page"`
	Allowed  bool          `json:"allowed"`
	Fallback access.PageID `json:"fallback,omitempty"`
}

// checkAccess answers whether the caller may enter a page. A denial carries
// the fallback page so the client can redirect instead of erroring.
func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.session(r)
	if err != nil {
		s.writeClientError(w, err)
		return
	}
	page := access.PageID(r.URL.Query().Get("page"))
	if page == "" {
		httputil.WriteBadRequest(w, "page query parameter is required")
		return
	}

	sess.mu.Lock()
	roles := sess.user.EffectiveRoles()
	active := sess.sw.ActiveRole()
	sess.mu.Unlock()

	allowed := access.CanAccess(roles, page)
	resp := accessCheckResponse{Page: page, Allowed: allowed}
	if !allowed {
		if fallback, ok := access.FallbackPage(roles, active); ok {
			resp.Fallback = fallback
		}
	}
	if s.metrics != nil {
		decision := "deny"
		if allowed {
			decision = "allow"
		}
		s.metrics.AccessChecksTotal.WithLabelValues(decision).Inc()
	}
	httputil.WriteSuccess(w, resp)
}

type navResponse struct {
	ActiveRole      string      `json:"active_role"`
	AccessibleRoles []string    `json:"accessible_roles"`
	Entries         []nav.Entry `json:"entries"`
}

// getNav returns the navigation for the caller's active role.
func (s *Server) getNav(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.session(r)
	if err != nil {
		s.writeClientError(w, err)
		return
	}

	sess.mu.Lock()
	active := sess.sw.ActiveRole()
	accessible := sess.sw.AccessibleRoles()
	entries := nav.VisibleNav(active, sess.user.PrimaryRole, sess.user.EffectiveRoles())
	sess.mu.Unlock()

	names := make([]string, 0, len(accessible))
	for _, role := range accessible {
		if name, err := rolecat.IDToName(role); err == nil {
			names = append(names, name)
		}
	}
	httputil.WriteSuccess(w, navResponse{
		ActiveRole:      active.String(),
		AccessibleRoles: names,
		Entries:         entries,
	})
}

type switchRoleRequest struct {
	Role string `json:"role"`
}

type switchRoleResponse struct {
	ActiveRole  string        `json:"active_role"`
	LandingPage access.PageID `json:"landing_page"`
	Path        string        `json:"path,omitempty"`
}

// switchRole changes the caller's active role for this session. Switching
// to a role outside the accessible set is a conflict, not a crash; switching
// to the current role is a no-op success.
func (s *Server) switchRole(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.session(r)
	if err != nil {
		s.writeClientError(w, err)
		return
	}
	var req switchRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	target, err := rolecat.NameToID(req.Role)
	if err != nil {
		s.writeClientError(w, err)
		return
	}

	sess.mu.Lock()
	landing, err := sess.sw.SwitchTo(target)
	active := sess.sw.ActiveRole()
	sess.mu.Unlock()

	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "rejected"
		}
		s.metrics.RoleSwitchesTotal.WithLabelValues(target.String(), status).Inc()
	}
	if err != nil {
		s.writeClientError(w, err)
		return
	}

	s.record(r, audit.Event{
		Time:   time.Now().UTC(),
		Action: audit.ActionRoleSwitch,
		Detail: map[string]string{"target_role": target.String()},
	})

	resp := switchRoleResponse{ActiveRole: active.String(), LandingPage: landing}
	if path, ok := nav.PathFor(active, landing); ok {
		resp.Path = path
	}
	httputil.WriteSuccess(w, resp)
}

// record writes an audit event tagged with the request ID. Failures are
// logged, not surfaced; the mutation already happened.
func (s *Server) record(r *http.Request, ev audit.Event) {
	ev.RequestID = middleware.RequestIDFromContext(r.Context())
	if err := s.recorder.Record(r.Context(), ev); err != nil {
		s.log.WithError(err).Error("failed to record audit event")
	}
}
