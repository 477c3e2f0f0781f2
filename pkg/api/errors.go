package api

import (
	"errors"
	"net/http"

	"github.com/enrollhq/accessgate/pkg/assignment"
	"github.com/enrollhq/accessgate/pkg/crmclient"
	"github.com/enrollhq/accessgate/pkg/httputil"
	"github.com/enrollhq/accessgate/pkg/rolecat"
	"github.com/enrollhq/accessgate/pkg/switcher"
)

// writeClientError maps the domain error taxonomy to HTTP responses.
// Upstream messages pass through verbatim.
func (s *Server) writeClientError(w http.ResponseWriter, err error) {
	var remote *crmclient.RemoteError
	var invalid *crmclient.InvalidPermissionIDsError

	switch {
	case errors.Is(err, crmclient.ErrStaleCredential):
		httputil.WriteUnauthorized(w, err.Error())
	case errors.Is(err, errUnknownCaller):
		httputil.WriteUnauthorized(w, err.Error())
	case errors.Is(err, assignment.ErrAdminBanGuard):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, switcher.ErrRoleNotAccessible):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, rolecat.ErrUnknownPermission),
		errors.Is(err, rolecat.ErrUnknownPermissionID),
		errors.Is(err, assignment.ErrPrimaryRoleRequired),
		errors.Is(err, assignment.ErrPrimaryRoleImmutable):
		httputil.WriteBadRequest(w, err.Error())
	case errors.As(err, &invalid):
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{
			Error:   invalid.Error(),
			Details: invalid.IDs,
		})
	case errors.As(err, &remote):
		httputil.WriteErrorMessage(w, remote.StatusCode, remote.Error())
	default:
		s.log.WithError(err).Error("request failed")
		httputil.WriteInternalError(w, err)
	}
}
