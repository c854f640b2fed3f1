package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLoginIssuesSessionToken(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)
	identity := newTestIdentity()

	provider.On("VerifyIdentity", ctx, identity.email, "password123").
		Return(identity, nil).Once()

	auther := accounts.NewAuthenticator(provider, newTestConfig())

	result, err := auther.Login(ctx, identity.email, "password123")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, identity.id, result.Identity.ID())
	assert.Equal(t, accounts.UserStatusActive, result.Identity.Status())

	claims, err := auther.TokenService().Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.id, claims.UserID())

	provider.AssertExpectations(t)
}

func TestLoginCarriesInactiveStatus(t *testing.T) {
	// authentication succeeds for inactive accounts; gating on status is the
	// caller's decision and the result carries what it needs
	ctx := context.Background()
	provider := new(MockIdentityProvider)
	identity := newTestIdentity()
	identity.status = accounts.UserStatusInactive

	provider.On("VerifyIdentity", ctx, identity.email, "password123").
		Return(identity, nil).Once()

	auther := accounts.NewAuthenticator(provider, newTestConfig())

	result, err := auther.Login(ctx, identity.email, "password123")
	require.NoError(t, err)
	assert.Equal(t, accounts.UserStatusInactive, result.Identity.Status())
}

func TestLoginPropagatesVerifyError(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)

	provider.On("VerifyIdentity", ctx, mock.Anything, mock.Anything).
		Return(nil, accounts.ErrMismatchedHashAndPassword).Once()

	auther := accounts.NewAuthenticator(provider, newTestConfig())

	result, err := auther.Login(ctx, "nobody@example.com", "wrong")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, accounts.ErrMismatchedHashAndPassword)
}

func TestLoginRejectsNilIdentity(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)

	provider.On("VerifyIdentity", ctx, mock.Anything, mock.Anything).
		Return(nil, nil).Once()

	auther := accounts.NewAuthenticator(provider, newTestConfig())

	_, err := auther.Login(ctx, "nobody@example.com", "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, accounts.ErrMismatchedHashAndPassword)
}

func TestSessionFromTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)
	identity := newTestIdentity()

	provider.On("VerifyIdentity", ctx, identity.email, "password123").
		Return(identity, nil).Once()

	auther := accounts.NewAuthenticator(provider, newTestConfig())

	result, err := auther.Login(ctx, identity.email, "password123")
	require.NoError(t, err)

	session, err := auther.SessionFromToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.id, session.GetUserID())
	assert.Equal(t, identity.email, session.GetData()["email"])
}

func TestSessionFromTokenRejectsTampered(t *testing.T) {
	provider := new(MockIdentityProvider)
	auther := accounts.NewAuthenticator(provider, newTestConfig())

	_, err := auther.SessionFromToken("eyJ.tampered.token")
	require.Error(t, err)
	assert.True(t, accounts.IsMalformedError(err))
}

func TestSessionFromTokenLegacyShapes(t *testing.T) {
	// tokens issued by older releases wrap the identity in a dat envelope;
	// they must resolve through the same path as current tokens
	cfg := newTestConfig()
	provider := new(MockIdentityProvider)
	auther := accounts.NewAuthenticator(provider, cfg)

	const id = "c8a5c21e-89f2-4a3d-b95a-6a45288f11ad"
	shapes := map[string]map[string]any{
		"envelope uid":       {"uid": id, "email": "pepe.rone@example.com"},
		"envelope user_id":   {"user_id": id},
		"nested envelope id": {"user": map[string]any{"id": id}},
	}

	for name, dat := range shapes {
		t.Run(name, func(t *testing.T) {
			claims := jwt.MapClaims{
				"iss": cfg.GetIssuer(),
				"aud": cfg.GetAudience()[0],
				"iat": time.Now().Unix(),
				"exp": time.Now().Add(time.Hour).Unix(),
				"dat": dat,
			}
			raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
				SignedString([]byte(cfg.GetSigningKey()))
			require.NoError(t, err)

			session, err := auther.SessionFromToken(raw)
			require.NoError(t, err)
			assert.Equal(t, id, session.GetUserID())
		})
	}
}

func TestIdentityFromSessionRefetches(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)
	identity := newTestIdentity()

	// the store is hit on every call, the session is only a pointer
	provider.On("FindIdentityByID", ctx, identity.id).
		Return(identity, nil).Once()

	auther := accounts.NewAuthenticator(provider, newTestConfig())

	session := &accounts.SessionObject{UserID: identity.id}
	got, err := auther.IdentityFromSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, identity.email, got.Email())

	provider.AssertExpectations(t)
}

func TestIdentityFromSessionDeletedAccount(t *testing.T) {
	ctx := context.Background()
	provider := new(MockIdentityProvider)

	provider.On("FindIdentityByID", ctx, "gone").
		Return(nil, accounts.ErrIdentityNotFound).Once()

	auther := accounts.NewAuthenticator(provider, newTestConfig())

	_, err := auther.IdentityFromSession(ctx, &accounts.SessionObject{UserID: "gone"})
	require.Error(t, err)
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)
}

func TestIdentityFromSessionEmpty(t *testing.T) {
	provider := new(MockIdentityProvider)
	auther := accounts.NewAuthenticator(provider, newTestConfig())

	_, err := auther.IdentityFromSession(context.Background(), nil)
	assert.ErrorIs(t, err, accounts.ErrUnableToFindSession)

	_, err = auther.IdentityFromSession(context.Background(), &accounts.SessionObject{})
	assert.ErrorIs(t, err, accounts.ErrUnableToFindSession)
}

func TestWithTokenValidatorOverride(t *testing.T) {
	provider := new(MockIdentityProvider)
	identity := newTestIdentity()

	custom := accounts.TokenValidatorFunc(func(tokenString string) (accounts.AuthClaims, error) {
		if tokenString != "external-token" {
			return nil, accounts.ErrTokenMalformed
		}
		cfg := newTestConfig()
		svc := accounts.NewTokenService([]byte(cfg.signingKey), cfg.expiration, cfg.issuer, cfg.audience, nil)
		signed, err := svc.Generate(identity)
		if err != nil {
			return nil, err
		}
		return svc.Validate(signed)
	})

	auther := accounts.NewAuthenticator(provider, newTestConfig()).
		WithTokenValidator(custom)

	session, err := auther.SessionFromToken("external-token")
	require.NoError(t, err)
	assert.Equal(t, identity.id, session.GetUserID())

	_, err = auther.SessionFromToken("something-else")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryAuth, richErr.Category)
}
