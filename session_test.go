package accounts

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectClaimShape(t *testing.T) {
	tests := []struct {
		name     string
		claims   jwt.MapClaims
		expected claimShape
	}{
		{
			name:     "flat uid",
			claims:   jwt.MapClaims{"uid": "abc"},
			expected: shapeFlat,
		},
		{
			name:     "flat subject only",
			claims:   jwt.MapClaims{"sub": "abc"},
			expected: shapeFlat,
		},
		{
			name:     "envelope uid",
			claims:   jwt.MapClaims{"dat": map[string]any{"uid": "abc"}},
			expected: shapeEnvelope,
		},
		{
			name:     "envelope user_id",
			claims:   jwt.MapClaims{"dat": map[string]any{"user_id": "abc"}},
			expected: shapeEnvelope,
		},
		{
			name:     "nested envelope id",
			claims:   jwt.MapClaims{"dat": map[string]any{"user": map[string]any{"id": "abc"}}},
			expected: shapeNestedEnvelope,
		},
		{
			name:     "nested envelope uid",
			claims:   jwt.MapClaims{"dat": map[string]any{"user": map[string]any{"uid": "abc"}}},
			expected: shapeNestedEnvelope,
		},
		{
			name:     "empty",
			claims:   jwt.MapClaims{},
			expected: shapeUnknown,
		},
		{
			name:     "dat without identity",
			claims:   jwt.MapClaims{"dat": map[string]any{"role": "admin"}},
			expected: shapeUnknown,
		},
		{
			name: "three levels is past the limit",
			claims: jwt.MapClaims{
				"dat": map[string]any{
					"user": map[string]any{
						"profile": map[string]any{"id": "abc"},
					},
				},
			},
			expected: shapeUnknown,
		},
		{
			name:     "non-string identity",
			claims:   jwt.MapClaims{"uid": 42},
			expected: shapeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detectClaimShape(tt.claims))
		})
	}
}

func TestClaimUserID(t *testing.T) {
	assert.Equal(t, "flat", claimUserID(jwt.MapClaims{"uid": "flat"}))
	assert.Equal(t, "sub", claimUserID(jwt.MapClaims{"sub": "sub"}))
	assert.Equal(t, "env", claimUserID(jwt.MapClaims{"dat": map[string]any{"uid": "env"}}))
	assert.Equal(t, "nested", claimUserID(jwt.MapClaims{
		"dat": map[string]any{"user": map[string]any{"id": "nested"}},
	}))
	assert.Equal(t, "", claimUserID(jwt.MapClaims{}))
}

func TestSessionFromMapClaims(t *testing.T) {
	now := time.Now()
	mp := jwt.MapClaims{
		"uid": "user-1",
		"iss": "accounts-test",
		"aud": "accounts-test",
		"iat": float64(now.Unix()),
		"exp": float64(now.Add(time.Hour).Unix()),
		"dat": map[string]any{"role": "admin"},
	}

	session, err := SessionFromMapClaims(mp)
	require.NoError(t, err)

	assert.Equal(t, "user-1", session.GetUserID())
	assert.Equal(t, "accounts-test", session.GetIssuer())
	assert.Equal(t, []string{"accounts-test"}, session.GetAudience())
	require.NotNil(t, session.GetIssuedAt())
	assert.WithinDuration(t, now, *session.GetIssuedAt(), time.Second)
	assert.Equal(t, "admin", session.GetData()["role"])
}

func TestSessionFromMapClaimsFailsClosed(t *testing.T) {
	// unknown shapes must never produce a session with a guessed identity
	_, err := SessionFromMapClaims(jwt.MapClaims{
		"dat": map[string]any{
			"user": map[string]any{
				"profile": map[string]any{"id": "too-deep"},
			},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnableToMapClaims)

	_, err = SessionFromMapClaims(jwt.MapClaims{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnableToMapClaims)
}

func TestSessionFromAuthClaims(t *testing.T) {
	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "accounts-test",
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"accounts-test"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:      "c8a5c21e-89f2-4a3d-b95a-6a45288f11ad",
		UserMail: "pepe.rone@example.com",
		UserName: "peperone",
	}

	session, err := sessionFromAuthClaims(claims)
	require.NoError(t, err)

	assert.Equal(t, "c8a5c21e-89f2-4a3d-b95a-6a45288f11ad", session.GetUserID())
	assert.Equal(t, "accounts-test", session.GetIssuer())
	assert.Equal(t, "pepe.rone@example.com", session.GetData()["email"])
	assert.Equal(t, "peperone", session.GetData()["name"])

	uid, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, "c8a5c21e-89f2-4a3d-b95a-6a45288f11ad", uid.String())
}

func TestJWTClaimsEnvelopeIdentity(t *testing.T) {
	claims := &JWTClaims{Dat: map[string]any{"user": map[string]any{"id": "abc"}}}
	assert.Equal(t, "abc", claims.UserID())

	claims = &JWTClaims{Dat: map[string]any{"uid": "def", "email": "pepe.rone@example.com"}}
	assert.Equal(t, "def", claims.UserID())
	assert.Equal(t, "pepe.rone@example.com", claims.Email())

	// the structured fields always win over the envelope
	claims = &JWTClaims{UID: "primary", Dat: map[string]any{"uid": "legacy"}}
	assert.Equal(t, "primary", claims.UserID())
}

func TestSessionFromAuthClaimsEnvelope(t *testing.T) {
	claims := &JWTClaims{
		Dat: map[string]any{"uid": "abc", "role": "admin"},
	}

	session, err := sessionFromAuthClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "abc", session.GetUserID())
	assert.Equal(t, "admin", session.GetData()["role"])
}

func TestSessionFromAuthClaimsRejectsEmpty(t *testing.T) {
	_, err := sessionFromAuthClaims(nil)
	assert.ErrorIs(t, err, ErrUnableToParseData)

	_, err = sessionFromAuthClaims(&JWTClaims{})
	assert.ErrorIs(t, err, ErrUnableToMapClaims)
}
