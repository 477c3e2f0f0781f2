package crmclient

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrStaleCredential indicates a missing or expired bearer token. The call
// is short-circuited locally; no request is sent upstream. Read paths may
// still serve cached data alongside this error so the UI can show stale
// results next to a re-authentication prompt.
var ErrStaleCredential = errors.New("bearer token is missing or expired")

// RemoteError is a non-2xx response from the CRM API. The upstream message
// is carried verbatim so the dashboard can surface it unchanged, e.g.
// "Admin permission required" on a 403.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// InvalidPermissionIDsError is returned when the update endpoint rejects
// permission IDs it does not recognize.
type InvalidPermissionIDsError struct {
	IDs []int64
}

func (e *InvalidPermissionIDsError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return "upstream rejected unknown permission ids: " + strings.Join(ids, ", ")
}
