package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

// SessionObject is the non-persisted projection of a decoded session token.
type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s data=%v",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

// claimShape enumerates the claim payload layouts issued over the life of
// the service. New layouts must be added here explicitly; anything that does
// not match a known shape carries no identity and fails closed.
type claimShape int

const (
	// shapeUnknown carries no recognizable identity claim
	shapeUnknown claimShape = iota
	// shapeFlat has uid/email at the top level (current layout)
	shapeFlat
	// shapeEnvelope wraps the identity fields in a "dat" map (legacy)
	shapeEnvelope
	// shapeNestedEnvelope wraps them one level deeper, "dat.user" (legacy)
	shapeNestedEnvelope
)

func detectClaimShape(mp jwt.MapClaims) claimShape {
	if id, ok := mp["uid"].(string); ok && id != "" {
		return shapeFlat
	}
	if sub, ok := mp["sub"].(string); ok && sub != "" {
		return shapeFlat
	}

	dat, ok := mp["dat"].(map[string]any)
	if !ok {
		return shapeUnknown
	}

	if id, ok := dat["uid"].(string); ok && id != "" {
		return shapeEnvelope
	}
	if id, ok := dat["user_id"].(string); ok && id != "" {
		return shapeEnvelope
	}

	// two levels is the limit; deeper nesting is treated as no identity
	if user, ok := dat["user"].(map[string]any); ok {
		if id, ok := user["id"].(string); ok && id != "" {
			return shapeNestedEnvelope
		}
		if id, ok := user["uid"].(string); ok && id != "" {
			return shapeNestedEnvelope
		}
	}

	return shapeUnknown
}

// claimUserID extracts the identity id for the detected shape. An empty
// string means no identity was found.
func claimUserID(mp jwt.MapClaims) string {
	switch detectClaimShape(mp) {
	case shapeFlat:
		if id, ok := mp["uid"].(string); ok && id != "" {
			return id
		}
		if sub, ok := mp["sub"].(string); ok {
			return sub
		}
	case shapeEnvelope, shapeNestedEnvelope:
		dat, _ := mp["dat"].(map[string]any)
		return envelopeUserID(dat)
	}
	return ""
}

// envelopeUserID digs the identity id out of a legacy "dat" envelope. Two
// levels is the limit; anything deeper reads as no identity.
func envelopeUserID(dat map[string]any) string {
	if dat == nil {
		return ""
	}
	if id, ok := dat["uid"].(string); ok && id != "" {
		return id
	}
	if id, ok := dat["user_id"].(string); ok && id != "" {
		return id
	}
	if user, ok := dat["user"].(map[string]any); ok {
		if id, ok := user["id"].(string); ok && id != "" {
			return id
		}
		if id, ok := user["uid"].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// SessionFromMapClaims builds a session from loosely typed claims, accepting
// every historically issued payload shape. Unknown shapes fail closed.
func SessionFromMapClaims(mp jwt.MapClaims) (*SessionObject, error) {
	userID := claimUserID(mp)
	if userID == "" {
		return nil, ErrUnableToMapClaims
	}

	session := &SessionObject{UserID: userID}

	if aud, err := mp.GetAudience(); err == nil {
		session.Audience = aud
	}
	if iss, err := mp.GetIssuer(); err == nil {
		session.Issuer = iss
	}
	if iat, err := mp.GetIssuedAt(); err == nil && iat != nil {
		session.IssuedAt = &iat.Time
	}
	if eat, err := mp.GetExpirationTime(); err == nil && eat != nil {
		session.ExpirationDate = &eat.Time
	}
	if dat, ok := mp["dat"].(map[string]any); ok {
		session.Data = dat
	}

	return session, nil
}

// sessionFromAuthClaims creates a SessionObject from structured AuthClaims
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToParseData
	}

	if claims.UserID() == "" {
		return nil, ErrUnableToMapClaims
	}

	data := make(map[string]any)
	if claims.Email() != "" {
		data["email"] = claims.Email()
	}
	if claims.Name() != "" {
		data["name"] = claims.Name()
	}

	var audience []string
	var issuer string
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		for _, aud := range jwtClaims.RegisteredClaims.Audience {
			audience = append(audience, aud)
		}
		issuer = jwtClaims.RegisteredClaims.Issuer

		if len(jwtClaims.Metadata) > 0 {
			data["metadata"] = jwtClaims.Metadata
		}

		// legacy envelope contents travel with the session, the structured
		// fields win on key collisions
		for k, v := range jwtClaims.Dat {
			if _, taken := data[k]; !taken {
				data[k] = v
			}
		}
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID(),
		Audience:       audience,
		Issuer:         issuer,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}
