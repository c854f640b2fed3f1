package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the account lifecycle status
type UserStatus = string

const (
	// UserStatusInactive is the status of freshly registered accounts
	UserStatusInactive UserStatus = "inactive"
	// UserStatusActive is reached exactly once, through the activation flow
	UserStatusActive UserStatus = "active"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName      string         `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name,notnull" json:"last_name,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	Status         UserStatus     `bun:"status,notnull" json:"status,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	ActivatedAt    *time.Time     `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsActive reports whether the account finished activation.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// TokenPurpose namespaces action tokens; each purpose has its own TTL and
// redemption effect.
type TokenPurpose = string

const (
	// PurposeActivation tokens flip an account from inactive to active
	PurposeActivation TokenPurpose = "activation"
	// PurposePasswordReset tokens authorize a one-time password change
	PurposePasswordReset TokenPurpose = "password_reset"
)

const (
	// ActivationTokenTTL is how long an activation token stays redeemable
	ActivationTokenTTL = 24 * time.Hour
	// PasswordResetTokenTTL is how long a reset token stays redeemable
	PasswordResetTokenTTL = time.Hour
)

// TTLForPurpose returns the configured time to live for a token purpose.
func TTLForPurpose(purpose TokenPurpose) time.Duration {
	if purpose == PurposePasswordReset {
		return PasswordResetTokenTTL
	}
	return ActivationTokenTTL
}

// ActionToken is a single-use, expiring credential granting one specific
// capability. Rows are never recycled: a resend issues a fresh row and
// deletes the superseded one.
type ActionToken struct {
	bun.BaseModel `bun:"table:action_tokens,alias:atk"`
	Token         string       `bun:"token,pk" json:"-"`
	Purpose       TokenPurpose `bun:"purpose,notnull" json:"purpose,omitempty"`
	UserID        uuid.UUID    `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Email         string       `bun:"email,notnull" json:"email,omitempty"`
	ExpiresAt     time.Time    `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	UsedAt        *time.Time   `bun:"used_at,nullzero" json:"used_at,omitempty"`
	DeliveredAt   *time.Time   `bun:"delivered_at,nullzero" json:"delivered_at,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired checks the absolute expiry against the given instant.
func (t *ActionToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed checks if the token has already been redeemed.
func (t *ActionToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsRedeemable reports whether the token can still be consumed. Both checks
// run against the instant the caller passes in, not token-fetch time.
func (t *ActionToken) IsRedeemable(now time.Time) bool {
	return t != nil && !t.IsUsed() && !t.IsExpired(now)
}

const actionTokenBytes = 32

// NewActionTokenString generates an unguessable opaque token string.
func NewActionTokenString() string {
	b := make([]byte, actionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; uuid keeps us
		// unguessable enough if it somehow does.
		return uuid.NewString() + uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
