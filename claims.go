package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents structured session claims: the identity id plus a
// small set of denormalized display fields. Claims are never authoritative;
// validators re-fetch the identity on every request.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Name() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. It decodes every
// payload shape the service has issued: current tokens carry the id in uid
// or sub, legacy tokens wrap it in a dat envelope at most two levels deep.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string         `json:"uid,omitempty"`
	UserMail string         `json:"email,omitempty"`
	UserName string         `json:"name,omitempty"`
	Dat      map[string]any `json:"dat,omitempty"`      // legacy envelope payload
	Metadata map[string]any `json:"metadata,omitempty"` // extension payload
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID, falling back to the legacy envelope when the
// top-level claims carry none.
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	if sub := c.RegisteredClaims.Subject; sub != "" {
		return sub
	}
	return envelopeUserID(c.Dat)
}

// Email returns the denormalized email claim
func (c *JWTClaims) Email() string {
	if c.UserMail != "" {
		return c.UserMail
	}
	if email, ok := c.Dat["email"].(string); ok {
		return email
	}
	return ""
}

// Name returns the denormalized display name claim
func (c *JWTClaims) Name() string {
	return c.UserName
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issuance time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *JWTClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
