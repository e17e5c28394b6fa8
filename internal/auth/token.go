package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects one of the codec's two independent signing contexts.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

// Claims is the payload embedded in issued tokens. Refresh tokens carry the
// same claim set as access tokens, mirroring the behavior of the system this
// service replaces.
type Claims struct {
	Email       string       `json:"email"`
	Roles       []string     `json:"roles"`
	Permissions []Permission `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenContext holds the secret and lifetime of one signing context.
type TokenContext struct {
	Secret []byte
	TTL    time.Duration
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Codec signs and verifies time-bounded session tokens. Access and refresh
// tokens use distinct secrets and lifetimes; a token signed in one context
// never verifies in the other.
type Codec struct {
	issuer  string
	access  TokenContext
	refresh TokenContext
	now     func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithIssuer sets the iss claim stamped into issued tokens.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

// WithNow overrides the codec's time source. Test hook.
func WithNow(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. Both secrets are required; zero TTLs fall back
// to the defaults.
func NewCodec(access, refresh TokenContext, opts ...CodecOption) (*Codec, error) {
	if len(access.Secret) == 0 || len(refresh.Secret) == 0 {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	if access.TTL <= 0 {
		access.TTL = DefaultAccessTTL
	}
	if refresh.TTL <= 0 {
		refresh.TTL = DefaultRefreshTTL
	}
	c := &Codec{access: access, refresh: refresh, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) context(kind TokenKind) TokenContext {
	if kind == RefreshToken {
		return c.refresh
	}
	return c.access
}

// TTL returns the configured lifetime of the given context.
func (c *Codec) TTL(kind TokenKind) time.Duration {
	return c.context(kind).TTL
}

// Issue signs claims in the given context, stamping issuer, issued-at, expiry
// and a unique jti. A signing failure is fatal and never retried.
func (c *Codec) Issue(claims Claims, kind TokenKind) (string, time.Time, error) {
	if strings.TrimSpace(claims.Subject) == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	tc := c.context(kind)
	now := c.now().UTC()
	expiresAt := now.Add(tc.TTL)

	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	claims.ID = uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Verify decodes a token against the given context's secret and checks its
// validity window. Failures are distinguishable: ErrTokenExpired,
// ErrTokenSignature or ErrTokenMalformed. Expiry is reported even when the
// signature does not verify, so diagnostics stay accurate for rotated
// secrets; callers must treat every outcome as unauthorized regardless.
func (c *Codec) Verify(token string, kind TokenKind) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	tc := c.context(kind)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenSignature
		}
		return tc.Secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }))
	if err != nil {
		return nil, c.classify(token, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenSignature
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (c *Codec) classify(token string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		// The parser rejects a bad signature before it looks at the validity
		// window. An already-expired token must still surface as expired.
		if c.expiredRegardless(token) {
			return ErrTokenExpired
		}
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}

func (c *Codec) expiredRegardless(token string) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && c.now().UTC().After(claims.ExpiresAt.Time)
}
