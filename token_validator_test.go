package accounts_test

import (
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidatorFuncNil(t *testing.T) {
	var fn accounts.TokenValidatorFunc
	_, err := fn.Validate("anything")
	assert.Error(t, err)
}

func TestMultiTokenValidatorFallsThrough(t *testing.T) {
	cfg := newTestConfig()

	primary := accounts.NewTokenService([]byte("primary-signing-key-0001"), cfg.expiration, cfg.issuer, cfg.audience, nil)
	secondary := accounts.NewTokenService([]byte("secondary-signing-key-01"), cfg.expiration, cfg.issuer, cfg.audience, nil)

	multi := accounts.NewMultiTokenValidator(primary, secondary)

	token, err := secondary.Generate(newTestIdentity())
	require.NoError(t, err)

	// primary rejects it as malformed, secondary accepts
	claims, err := multi.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, newTestIdentity().id, claims.UserID())
}

func TestMultiTokenValidatorAllFail(t *testing.T) {
	cfg := newTestConfig()

	primary := accounts.NewTokenService([]byte("primary-signing-key-0001"), cfg.expiration, cfg.issuer, cfg.audience, nil)
	secondary := accounts.NewTokenService([]byte("secondary-signing-key-01"), cfg.expiration, cfg.issuer, cfg.audience, nil)
	outsider := accounts.NewTokenService([]byte("outsider-signing-key-001"), cfg.expiration, cfg.issuer, cfg.audience, nil)

	token, err := outsider.Generate(newTestIdentity())
	require.NoError(t, err)

	multi := accounts.NewMultiTokenValidator(primary, secondary)
	_, err = multi.Validate(token)
	require.Error(t, err)
	assert.True(t, accounts.IsMalformedError(err))
}

func TestMultiTokenValidatorStopsOnNonMalformed(t *testing.T) {
	cfg := newTestConfig()

	expired := accounts.NewTokenService([]byte(cfg.signingKey), -1, cfg.issuer, cfg.audience, nil)
	fallback := accounts.NewTokenService([]byte(cfg.signingKey), cfg.expiration, cfg.issuer, cfg.audience, nil)

	token, err := expired.Generate(newTestIdentity())
	require.NoError(t, err)

	// the key matched, so expiry is a definitive verdict and must not be
	// retried against the remaining validators
	multi := accounts.NewMultiTokenValidator(expired, fallback)
	_, err = multi.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, accounts.ErrTokenExpired)
}

func TestMultiTokenValidatorEmpty(t *testing.T) {
	multi := accounts.NewMultiTokenValidator()
	_, err := multi.Validate("anything")
	assert.ErrorIs(t, err, accounts.ErrTokenMalformed)
}

func TestKeyRotationValidatorAcceptsPreviousKey(t *testing.T) {
	oldCfg := newTestConfig()
	oldSvc := accounts.NewTokenService([]byte(oldCfg.signingKey), oldCfg.expiration, oldCfg.issuer, oldCfg.audience, nil)

	token, err := oldSvc.Generate(newTestIdentity())
	require.NoError(t, err)

	newCfg := newTestConfig()
	newCfg.signingKey = "fresh-signing-key-rotation"

	// a session signed before the rotation still validates through the chain
	rotated := accounts.NewKeyRotationValidator(newCfg, oldCfg.signingKey)
	claims, err := rotated.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, newTestIdentity().id, claims.UserID())

	// without the previous key the session is gone
	current := accounts.NewKeyRotationValidator(newCfg)
	_, err = current.Validate(token)
	require.Error(t, err)
	assert.True(t, accounts.IsMalformedError(err))
}
