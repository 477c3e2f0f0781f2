package crmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/enrollhq/accessgate/pkg/assignment"
	"github.com/enrollhq/accessgate/pkg/observability"
	"github.com/enrollhq/accessgate/pkg/rolecat"
)

// Upstream endpoint paths. The contracts are owned by the CRM backend and
// must be preserved exactly.
const (
	endpointPermissionsUpdate = "/users/permissions/update"
	endpointRegister          = "/auth/register"
	endpointBan               = "/users/ban"
	endpointUnban             = "/users/unban"
	endpointStaffs            = "/users/staffs"
	endpointStudents          = "/users/students"
)

const defaultCacheSize = 32

// Client talks to the CRM backend on behalf of the dashboard. All calls
// require a fresh credential; reads keep a local fallback cache so an
// expired session can still render the last known directory while the user
// re-authenticates.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
	metrics    *observability.Metrics

	cache    *lru.Cache[string, []assignment.User]
	redis    *redis.Client
	redisTTL time.Duration

	group singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client's logrus entry.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics wires Prometheus metrics into the client.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRedis adds a shared directory cache tier on top of the in-process
// LRU, so multiple gateway instances serve the same fallback data.
func WithRedis(client *redis.Client, ttl time.Duration) Option {
	return func(c *Client) {
		c.redis = client
		c.redisTTL = ttl
	}
}

// New creates a CRM client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	cache, err := lru.New[string, []assignment.User](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create fallback cache: %w", err)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logrus.NewEntry(logrus.StandardLogger()),
		cache:      cache,
		redisTTL:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// updatePermissionsRequest is the wire shape of the permissions update call.
type updatePermissionsRequest struct {
	UserID               int64   `json:"user_id"`
	PermissionIDs        []int64 `json:"permission_ids"`
	ConsultantIsLeader   bool    `json:"consultant_is_leader"`
	ContentManagerLeader bool    `json:"content_manager_is_leader"`
}

// UpdatePermissions replaces a user's permission set wholesale. Permission
// names that do not resolve in the catalog are dropped (logged and counted)
// and the submission proceeds with the rest. When the resolved set equals
// the current one the call is a no-op success: no request is sent. The
// returned user reflects the new set and recomputed leadership flags, and is
// only produced after the upstream confirmed the write; callers must not
// apply the new set optimistically.
func (c *Client) UpdatePermissions(ctx context.Context, cred *Credential, user assignment.User, permissionNames []string) (assignment.User, error) {
	ids, dropped := rolecat.MapPermissionNames(permissionNames)
	if len(dropped) > 0 {
		c.log.WithField("dropped", dropped).Warn("dropping unknown permission names from update")
		if c.metrics != nil {
			c.metrics.PermissionDropsTotal.Add(float64(len(dropped)))
		}
	}

	newSet := rolecat.NewSet(ids...)
	if assignment.PermissionsEqual(user.Permissions, newSet) {
		return user, nil
	}

	if !cred.Valid() {
		return user, c.staleCredential()
	}

	consultantLeader, contentLeader := assignment.DeriveLeadership(user.PrimaryRole, newSet)
	req := updatePermissionsRequest{
		UserID:               user.ID,
		PermissionIDs:        roleIDs(newSet),
		ConsultantIsLeader:   consultantLeader,
		ContentManagerLeader: contentLeader,
	}

	var rec assignment.Record
	if err := c.do(ctx, cred, http.MethodPut, endpointPermissionsUpdate, req, &rec); err != nil {
		return user, err
	}
	if rec.ID == user.ID {
		return rec.User(), nil
	}
	updated, _ := user.WithPermissions(newSet)
	return updated, nil
}

// RegisterRequest is a create-user request as the dashboard submits it:
// role and permissions by name, resolved to IDs before the call.
type RegisterRequest struct {
	FullName        string
	Email           string
	Password        string
	PhoneNumber     string
	RoleName        string
	PermissionNames []string
}

type registerWireRequest struct {
	FullName             string  `json:"full_name"`
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	RoleID               int64   `json:"role_id"`
	Permissions          []int64 `json:"permissions"`
	PhoneNumber          string  `json:"phone_number"`
	ConsultantIsLeader   bool    `json:"consultant_is_leader"`
	ContentManagerLeader bool    `json:"content_manager_is_leader"`
}

// Register creates a user upstream. An unresolvable role name fails before
// any request is built; unresolvable permission names are dropped per the
// catalog's lenient batch policy.
func (c *Client) Register(ctx context.Context, cred *Credential, req RegisterRequest) (assignment.User, error) {
	primary, err := rolecat.NameToID(req.RoleName)
	if err != nil {
		return assignment.User{}, fmt.Errorf("cannot resolve role for registration: %w", err)
	}

	ids, dropped := rolecat.MapPermissionNames(req.PermissionNames)
	if len(dropped) > 0 {
		c.log.WithField("dropped", dropped).Warn("dropping unknown permission names from registration")
		if c.metrics != nil {
			c.metrics.PermissionDropsTotal.Add(float64(len(dropped)))
		}
	}

	if !cred.Valid() {
		return assignment.User{}, c.staleCredential()
	}

	perms := rolecat.NewSet(ids...)
	consultantLeader, contentLeader := assignment.DeriveLeadership(primary, perms)
	wire := registerWireRequest{
		FullName:             req.FullName,
		Email:                req.Email,
		Password:             req.Password,
		RoleID:               int64(primary),
		Permissions:          roleIDs(perms),
		PhoneNumber:          req.PhoneNumber,
		ConsultantIsLeader:   consultantLeader,
		ContentManagerLeader: contentLeader,
	}

	var rec assignment.Record
	if err := c.do(ctx, cred, http.MethodPost, endpointRegister, wire, &rec); err != nil {
		return assignment.User{}, err
	}
	return rec.User(), nil
}

type banRequest struct {
	UserID int64 `json:"user_id"`
}

// Ban soft-deletes a user. Admin accounts are rejected locally before any
// request is built.
func (c *Client) Ban(ctx context.Context, cred *Credential, target assignment.User) error {
	return c.banCall(ctx, cred, target, endpointBan)
}

// Unban restores a banned user. The admin guard applies here too: admin
// accounts are never subject to the ban workflow in either direction.
func (c *Client) Unban(ctx context.Context, cred *Credential, target assignment.User) error {
	return c.banCall(ctx, cred, target, endpointUnban)
}

func (c *Client) banCall(ctx context.Context, cred *Credential, target assignment.User, endpoint string) error {
	if err := assignment.CheckBanAllowed(target); err != nil {
		if c.metrics != nil {
			c.metrics.BanGuardTrippedTotal.Inc()
		}
		return err
	}
	if !cred.Valid() {
		return c.staleCredential()
	}
	return c.do(ctx, cred, http.MethodPost, endpoint, banRequest{UserID: target.ID}, nil)
}

// ListStaff fetches the staff directory. On success the result refreshes
// the fallback caches; with a stale credential the last cached copy is
// returned together with ErrStaleCredential so the UI can render stale data
// behind a re-authentication prompt. Mutations never fall back this way.
func (c *Client) ListStaff(ctx context.Context, cred *Credential) ([]assignment.User, error) {
	return c.listDirectory(ctx, cred, endpointStaffs)
}

// ListStudents fetches the student directory with the same fallback
// semantics as ListStaff.
func (c *Client) ListStudents(ctx context.Context, cred *Credential) ([]assignment.User, error) {
	return c.listDirectory(ctx, cred, endpointStudents)
}

func (c *Client) listDirectory(ctx context.Context, cred *Credential, endpoint string) ([]assignment.User, error) {
	if !cred.Valid() {
		cached, ok := c.cachedDirectory(ctx, endpoint)
		if ok {
			return cached, c.staleCredential()
		}
		return nil, c.staleCredential()
	}

	// Concurrent requests for the same directory share one upstream fetch.
	v, err, _ := c.group.Do(endpoint, func() (interface{}, error) {
		var recs []assignment.Record
		if err := c.do(ctx, cred, http.MethodGet, endpoint, nil, &recs); err != nil {
			return nil, err
		}
		users := make([]assignment.User, 0, len(recs))
		for _, rec := range recs {
			users = append(users, rec.User())
		}
		c.storeDirectory(ctx, endpoint, users)
		return users, nil
	})
	if err != nil {
		// Upstream failure on a read path: serve the cached copy alongside
		// the error so the caller can both notify and render.
		if cached, ok := c.cachedDirectory(ctx, endpoint); ok {
			return cached, err
		}
		return nil, err
	}
	return v.([]assignment.User), nil
}

func (c *Client) staleCredential() error {
	if c.metrics != nil {
		c.metrics.StaleCredentialTotal.Inc()
	}
	return ErrStaleCredential
}

// do issues one upstream request and decodes the response into out (when
// non-nil). Non-2xx responses become RemoteError or
// InvalidPermissionIDsError with the upstream message preserved verbatim.
func (c *Client) do(ctx context.Context, cred *Credential, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cred.SetAuthHeader(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.countUpstream(endpoint, "error")
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	c.countUpstream(endpoint, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeRemoteError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return nil
}

func (c *Client) countUpstream(endpoint, status string) {
	if c.metrics != nil {
		c.metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
	}
}

// decodeRemoteError maps an error response body to the client error
// taxonomy. Bodies carrying missing_permission_ids take precedence; the
// generic path surfaces the upstream message verbatim.
func decodeRemoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error                string  `json:"error"`
		Message              string  `json:"message"`
		MissingPermissionIDs []int64 `json:"missing_permission_ids"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if len(body.MissingPermissionIDs) > 0 {
			return &InvalidPermissionIDsError{IDs: body.MissingPermissionIDs}
		}
		msg := body.Error
		if msg == "" {
			msg = body.Message
		}
		if msg != "" {
			return &RemoteError{StatusCode: resp.StatusCode, Message: msg}
		}
	}
	return &RemoteError{StatusCode: resp.StatusCode}
}

func roleIDs(s rolecat.Set) []int64 {
	roles := s.Roles()
	ids := make([]int64, len(roles))
	for i, r := range roles {
		ids[i] = int64(r)
	}
	return ids
}
