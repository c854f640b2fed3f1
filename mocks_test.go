package accounts_test

import (
	"context"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/mock"
)

// MockIdentityProvider implements accounts.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (accounts.Identity, error) {
	args := m.Called(ctx, identifier, password)
	identity, _ := args.Get(0).(accounts.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByID(ctx context.Context, id string) (accounts.Identity, error) {
	args := m.Called(ctx, id)
	identity, _ := args.Get(0).(accounts.Identity)
	return identity, args.Error(1)
}

// TestIdentity implements accounts.Identity
type TestIdentity struct {
	id       string
	username string
	email    string
	status   accounts.UserStatus
}

func (t TestIdentity) ID() string                  { return t.id }
func (t TestIdentity) Username() string            { return t.username }
func (t TestIdentity) Email() string               { return t.email }
func (t TestIdentity) Status() accounts.UserStatus { return t.status }

type testConfig struct {
	signingKey string
	expiration int
	issuer     string
	audience   []string
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey: "test-signing-key-please-rotate",
		expiration: 1,
		issuer:     "accounts-test",
		audience:   []string{"accounts-test"},
	}
}

func (c testConfig) GetSigningKey() string    { return c.signingKey }
func (c testConfig) GetSigningMethod() string { return "HS256" }
func (c testConfig) GetContextKey() string    { return "app:session" }
func (c testConfig) GetTokenExpiration() int  { return c.expiration }
func (c testConfig) GetTokenLookup() string   { return "header:Authorization" }
func (c testConfig) GetAuthScheme() string    { return "Bearer" }
func (c testConfig) GetIssuer() string        { return c.issuer }
func (c testConfig) GetAudience() []string    { return c.audience }

// capturingMailer records dispatched tokens instead of delivering them.
type capturingMailer struct {
	activationTokens []string
	resetTokens      []string
	failNext         error
}

func (m *capturingMailer) SendActivationEmail(_ context.Context, email, token string) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.activationTokens = append(m.activationTokens, token)
	return nil
}

func (m *capturingMailer) SendPasswordResetEmail(_ context.Context, email, token string) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

func (m *capturingMailer) lastActivationToken() string {
	if len(m.activationTokens) == 0 {
		return ""
	}
	return m.activationTokens[len(m.activationTokens)-1]
}

func (m *capturingMailer) lastResetToken() string {
	if len(m.resetTokens) == 0 {
		return ""
	}
	return m.resetTokens[len(m.resetTokens)-1]
}
