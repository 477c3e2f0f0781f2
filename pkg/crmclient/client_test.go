package crmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhq/accessgate/pkg/assignment"
	"github.com/enrollhq/accessgate/pkg/rolecat"
)

func freshCred(t *testing.T) *Credential {
	t.Helper()
	cred, err := ParseBearer("opaque-session-token")
	require.NoError(t, err)
	return cred
}

func staleCred(t *testing.T) *Credential {
	t.Helper()
	cred, err := ParseBearer(testJWT(t, time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	return cred
}

func mustUser(t *testing.T, primary rolecat.Role, perms ...rolecat.Role) assignment.User {
	t.Helper()
	u, err := assignment.NewUser(primary, rolecat.NewSet(perms...))
	require.NoError(t, err)
	return u
}

// countingServer wraps a handler and counts the requests it received.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestUpdatePermissionsDropsUnknownNames(t *testing.T) {
	var got updatePermissionsRequest
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users/permissions/update", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	user := mustUser(t, rolecat.Customer)
	user.ID = 42
	updated, err := c.UpdatePermissions(context.Background(), freshCred(t), user, []string{"consultant", "bogus_name"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, hits.Load(), "the bogus name is dropped, the request still goes out")
	assert.Equal(t, []int64{2}, got.PermissionIDs)
	assert.Equal(t, int64(42), got.UserID)
	assert.True(t, updated.Permissions.Has(rolecat.Consultant))
}

func TestUpdatePermissionsNoopSendsNothing(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent for an unchanged permission set")
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	user := mustUser(t, rolecat.Customer, rolecat.Consultant)
	got, err := c.UpdatePermissions(context.Background(), freshCred(t), user, []string{"consultant"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, hits.Load())
	assert.True(t, assignment.PermissionsEqual(user.Permissions, got.Permissions))
}

func TestUpdatePermissionsNoopSkipsCredentialCheck(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c, err := New(srv.URL)
	require.NoError(t, err)

	// Change detection runs first: an unchanged set succeeds even with an
	// expired session.
	user := mustUser(t, rolecat.Customer, rolecat.Consultant)
	_, err = c.UpdatePermissions(context.Background(), staleCred(t), user, []string{"consultant"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, hits.Load())
}

func TestUpdatePermissionsStaleCredential(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c, err := New(srv.URL)
	require.NoError(t, err)

	user := mustUser(t, rolecat.Customer)
	_, err = c.UpdatePermissions(context.Background(), staleCred(t), user, []string{"consultant"})
	assert.ErrorIs(t, err, ErrStaleCredential)
	assert.EqualValues(t, 0, hits.Load())
}

func TestUpdatePermissionsForbiddenMessageVerbatim(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Admin permission required"}`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	user := mustUser(t, rolecat.Customer)
	_, err = c.UpdatePermissions(context.Background(), freshCred(t), user, []string{"consultant"})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusForbidden, remote.StatusCode)
	assert.Equal(t, "Admin permission required", remote.Message)
}

func TestUpdatePermissionsMissingPermissionIDs(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"some permissions do not exist","missing_permission_ids":[7,9]}`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	user := mustUser(t, rolecat.Customer)
	_, err = c.UpdatePermissions(context.Background(), freshCred(t), user, []string{"consultant"})
	var invalid *InvalidPermissionIDsError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []int64{7, 9}, invalid.IDs)
}

func TestUpdatePermissionsUsesUpstreamRecord(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":42,"role_id":2,"permissions":[1,3],"status":"active"}`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	user := mustUser(t, rolecat.Consultant)
	user.ID = 42
	updated, err := c.UpdatePermissions(context.Background(), freshCred(t), user, []string{"admin", "content_manager"})
	require.NoError(t, err)
	assert.True(t, updated.Permissions.Has(rolecat.SystemAdmin))
	assert.True(t, updated.Permissions.Has(rolecat.ContentManager))
	assert.True(t, updated.ConsultantIsLeader, "leadership recomputed from the confirmed set")
}

func TestRegisterResolvesRoleBeforeCall(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Register(context.Background(), freshCred(t), RegisterRequest{
		FullName: "New Hire",
		Email:    "hire@example.com",
		RoleName: "no_such_role",
	})
	assert.ErrorIs(t, err, rolecat.ErrUnknownPermission)
	assert.EqualValues(t, 0, hits.Load())
}

func TestRegister(t *testing.T) {
	var got registerWireRequest
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/register", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"full_name":"New Hire","role_id":2,"permissions":[3],"status":"active"}`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	created, err := c.Register(context.Background(), freshCred(t), RegisterRequest{
		FullName:        "New Hire",
		Email:           "hire@example.com",
		Password:        "secret",
		RoleName:        "consultant",
		PermissionNames: []string{"content_manager", "bogus"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), got.RoleID)
	assert.Equal(t, []int64{3}, got.Permissions, "bogus name dropped, rest submitted")
	assert.True(t, got.ConsultantIsLeader)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, rolecat.Consultant, created.PrimaryRole)
}

func TestBanAdminGuardSendsNoRequest(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c, err := New(srv.URL)
	require.NoError(t, err)

	admin := mustUser(t, rolecat.SystemAdmin)
	assert.ErrorIs(t, c.Ban(context.Background(), freshCred(t), admin), assignment.ErrAdminBanGuard)

	// Same guard for a non-admin primary with an admin permission grant.
	granted := mustUser(t, rolecat.Consultant, rolecat.SystemAdmin)
	assert.ErrorIs(t, c.Ban(context.Background(), freshCred(t), granted), assignment.ErrAdminBanGuard)
	assert.ErrorIs(t, c.Unban(context.Background(), freshCred(t), granted), assignment.ErrAdminBanGuard)

	assert.EqualValues(t, 0, hits.Load(), "guard fires before any HTTP call")
}

func TestBanAndUnban(t *testing.T) {
	var paths []string
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body banRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(9), body.UserID)
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{}`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	target := mustUser(t, rolecat.Customer)
	target.ID = 9
	require.NoError(t, c.Ban(context.Background(), freshCred(t), target))
	require.NoError(t, c.Unban(context.Background(), freshCred(t), target))
	assert.Equal(t, []string{"/users/ban", "/users/unban"}, paths)
}

func TestListStaff(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/staffs", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":1,"full_name":"Ada","role_id":2,"permissions":["content_manager"],"status":"active"},
			{"id":2,"full_name":"Ben","role_id":3,"permissions":[],"status":"banned"}
		]`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	staff, err := c.ListStaff(context.Background(), freshCred(t))
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, rolecat.Consultant, staff[0].PrimaryRole)
	assert.True(t, staff[0].ConsultantIsLeader)
	assert.Equal(t, assignment.StatusBanned, staff[1].Status)
}

func TestListStaffStaleCredentialServesCache(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"full_name":"Ada","role_id":2,"status":"active"}]`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	// Warm the cache with a fresh credential.
	_, err = c.ListStaff(context.Background(), freshCred(t))
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())

	// The stale read returns the cached copy together with the error.
	staff, err := c.ListStaff(context.Background(), staleCred(t))
	assert.ErrorIs(t, err, ErrStaleCredential)
	require.Len(t, staff, 1)
	assert.Equal(t, "Ada", staff[0].FullName)
	assert.EqualValues(t, 1, hits.Load(), "no upstream call with a stale session")
}

func TestListStaffStaleCredentialNoCache(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c, err := New(srv.URL)
	require.NoError(t, err)

	staff, err := c.ListStaff(context.Background(), staleCred(t))
	assert.ErrorIs(t, err, ErrStaleCredential)
	assert.Nil(t, staff)
	assert.EqualValues(t, 0, hits.Load())
}

func TestListStaffUpstreamFailureFallsBack(t *testing.T) {
	var fail atomic.Bool
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"upstream unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"full_name":"Ada","role_id":2,"status":"active"}]`))
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.ListStaff(context.Background(), freshCred(t))
	require.NoError(t, err)

	fail.Store(true)
	staff, err := c.ListStaff(context.Background(), freshCred(t))
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Len(t, staff, 1, "cached copy rides along with the error")
}

func TestDirectorySharedRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"full_name":"Ada","role_id":2,"permissions":["content_manager"],"status":"active"}]`))
	})

	// First client warms both tiers.
	c1, err := New(srv.URL, WithRedis(rdb, time.Minute))
	require.NoError(t, err)
	_, err = c1.ListStudents(context.Background(), freshCred(t))
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())

	// A second instance with a cold LRU serves the stale read from redis.
	c2, err := New(srv.URL, WithRedis(rdb, time.Minute))
	require.NoError(t, err)
	students, err := c2.ListStudents(context.Background(), staleCred(t))
	assert.ErrorIs(t, err, ErrStaleCredential)
	require.Len(t, students, 1)
	assert.Equal(t, "Ada", students[0].FullName)
	assert.True(t, students[0].Permissions.Has(rolecat.ContentManager), "permissions survive the shared tier round trip")
	assert.EqualValues(t, 1, hits.Load())
}

func TestRemoteErrorWithoutBody(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	user := mustUser(t, rolecat.Customer)
	_, err = c.UpdatePermissions(context.Background(), freshCred(t), user, []string{"consultant"})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
}
