package crmclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credential wraps the bearer token issued by the CRM's auth service. The
// token's embedded expiry and subject claims are decoded once at
// construction so every call can check freshness locally, without a network
// round trip.
type Credential struct {
	token   oauth2.Token
	subject int64
}

// ParseBearer builds a credential from an Authorization header value or a
// bare token. The "Bearer" scheme is matched case-insensitively; a scheme
// with no token is an error. When the token is a JWT, the "exp" claim
// becomes the oauth2 expiry and a numeric "sub" claim identifies the
// caller; opaque tokens are treated as non-expiring and left to the server
// to reject.
func ParseBearer(raw string) (*Credential, error) {
	var token string
	switch fields := strings.Fields(raw); {
	case len(fields) == 1 && !strings.EqualFold(fields[0], "bearer"):
		token = fields[0]
	case len(fields) == 2 && strings.EqualFold(fields[0], "bearer"):
		token = fields[1]
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrStaleCredential)
	}

	cred := &Credential{token: oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}}
	if claims, ok := jwtClaims(token); ok {
		if claims.Exp != nil {
			cred.token.Expiry = time.Unix(*claims.Exp, 0)
		}
		cred.subject = claims.subjectID()
	}
	return cred, nil
}

type tokenClaims struct {
	Exp *int64          `json:"exp"`
	Sub json.RawMessage `json:"sub"`
}

// subjectID parses the sub claim, which arrives as either a number or a
// numeric string depending on the CRM's token version.
func (c tokenClaims) subjectID() int64 {
	s := strings.Trim(strings.TrimSpace(string(c.Sub)), `"`)
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// jwtClaims decodes the payload of a three-part JWT. Returns false for
// anything else; the token is then treated as opaque.
func jwtClaims(raw string) (tokenClaims, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return tokenClaims{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return tokenClaims{}, false
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return tokenClaims{}, false
	}
	return claims, true
}

// Valid reports whether the credential can still be sent upstream. Delegates
// to oauth2's expiry check, which applies a small grace delta so tokens
// about to expire are refreshed instead of failing mid-request.
func (c *Credential) Valid() bool {
	if c == nil {
		return false
	}
	return c.token.Valid()
}

// SetAuthHeader attaches the Authorization header to an outgoing request.
func (c *Credential) SetAuthHeader(r *http.Request) {
	c.token.SetAuthHeader(r)
}

// Expiry returns the decoded expiry time; zero for opaque tokens.
func (c *Credential) Expiry() time.Time {
	return c.token.Expiry
}

// Subject returns the caller's user ID from the token's sub claim, or zero
// when the token carried none.
func (c *Credential) Subject() int64 {
	return c.subject
}

// Raw returns the bearer token string. Used as a session cache key.
func (c *Credential) Raw() string {
	return c.token.AccessToken
}
