package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActionTokens is the single-use token store for one purpose. Two instances
// back the service, one per purpose, sharing the same table.
type ActionTokens interface {
	Purpose() TokenPurpose

	// Issue supersedes any live token for the user before inserting a fresh
	// one. Delete and insert run in one transaction.
	Issue(ctx context.Context, userID uuid.UUID, email string) (*ActionToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, email string) (*ActionToken, error)

	// Validate returns the record iff it exists, is unused, and is unexpired
	// at call time.
	Validate(ctx context.Context, token string) (*ActionToken, error)
	ValidateTx(ctx context.Context, tx bun.IDB, token string) (*ActionToken, error)

	// Consume marks the token used with a conditional update. Exactly one of
	// N concurrent consumers succeeds; the rest get ErrActionTokenInvalid.
	Consume(ctx context.Context, token string) error
	ConsumeTx(ctx context.Context, tx bun.IDB, token string) error

	// MarkDelivered records that the notification for the token went out.
	// Only delivered tokens rate limit reissue; an undelivered token is
	// superseded by the next request for the same user and purpose.
	MarkDelivered(ctx context.Context, token string) error

	// HasActive reports whether a delivered, unused, unexpired token exists
	// for the user. Used to rate limit repeat issuance; tokens whose
	// notification never went out do not count.
	HasActive(ctx context.Context, userID uuid.UUID) (bool, error)

	// PurgeExpired deletes expired unused rows. Consumed rows stay for audit.
	PurgeExpired(ctx context.Context) (int64, error)
}

type actionTokens struct {
	db      *bun.DB
	purpose TokenPurpose
	ttl     time.Duration
	now     func() time.Time
}

var _ ActionTokens = (*actionTokens)(nil)

// ActionTokensOption customizes the token store.
type ActionTokensOption func(*actionTokens)

// WithActionTokensClock injects a custom clock (useful for tests).
func WithActionTokensClock(clock func() time.Time) ActionTokensOption {
	return func(r *actionTokens) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithActionTokensTTL overrides the purpose default TTL.
func WithActionTokensTTL(ttl time.Duration) ActionTokensOption {
	return func(r *actionTokens) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewActionTokensRepository returns the token store bound to one purpose.
func NewActionTokensRepository(db *bun.DB, purpose TokenPurpose, opts ...ActionTokensOption) ActionTokens {
	repo := &actionTokens{
		db:      db,
		purpose: purpose,
		ttl:     TTLForPurpose(purpose),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (r *actionTokens) Purpose() TokenPurpose {
	return r.purpose
}

func (r *actionTokens) Issue(ctx context.Context, userID uuid.UUID, email string) (*ActionToken, error) {
	var record *ActionToken
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = r.IssueTx(ctx, tx, userID, email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// IssueTx deletes every unused token for (user, purpose) and inserts the
// replacement. Callers must run it inside a transaction so concurrent
// issuance cannot leave two live tokens; last writer wins.
func (r *actionTokens) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, email string) (*ActionToken, error) {
	_, err := tx.NewDelete().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.user_id = ?", userID.String()).
		Where("?TableAlias.purpose = ?", r.purpose).
		Where("?TableAlias.used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to supersede previous tokens")
	}

	now := r.now()
	record := &ActionToken{
		Token:     NewActionTokenString(),
		Purpose:   r.purpose,
		UserID:    userID,
		Email:     normalizeEmail(email),
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: &now,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert token")
	}

	return record, nil
}

func (r *actionTokens) Validate(ctx context.Context, token string) (*ActionToken, error) {
	return r.ValidateTx(ctx, r.db, token)
}

func (r *actionTokens) ValidateTx(ctx context.Context, tx bun.IDB, token string) (*ActionToken, error) {
	if token == "" {
		return nil, ErrActionTokenInvalid
	}

	record := &ActionToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.purpose = ?", r.purpose).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve token")
	}

	// used and expiry are both checked against validation-time now, never
	// token-fetch time
	if !record.IsRedeemable(r.now()) {
		return nil, ErrActionTokenInvalid
	}

	return record, nil
}

func (r *actionTokens) Consume(ctx context.Context, token string) error {
	return r.ConsumeTx(ctx, r.db, token)
}

// ConsumeTx is the atomic check-and-set on the token row. The used_at guard
// makes concurrent redeemers serialize on the row: zero rows affected means
// this caller lost the race or the token was already burned.
func (r *actionTokens) ConsumeTx(ctx context.Context, tx bun.IDB, token string) error {
	now := r.now()
	res, err := tx.NewUpdate().
		Model((*ActionToken)(nil)).
		Set("used_at = ?", now).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.purpose = ?", r.purpose).
		Where("?TableAlias.used_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume token")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read consume result")
	}

	if affected == 0 {
		return ErrActionTokenInvalid
	}

	return nil
}

func (r *actionTokens) MarkDelivered(ctx context.Context, token string) error {
	// zero rows affected means the token was superseded or burned in the
	// meantime; stamping nothing is the right outcome then
	_, err := r.db.NewUpdate().
		Model((*ActionToken)(nil)).
		Set("delivered_at = ?", r.now()).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.purpose = ?", r.purpose).
		Where("?TableAlias.used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record token delivery")
	}
	return nil
}

func (r *actionTokens) HasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	count, err := r.db.NewSelect().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.user_id = ?", userID.String()).
		Where("?TableAlias.purpose = ?", r.purpose).
		Where("?TableAlias.delivered_at IS NOT NULL").
		Where("?TableAlias.used_at IS NULL").
		Where("?TableAlias.expires_at > ?", r.now()).
		Count(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count active tokens")
	}
	return count > 0, nil
}

func (r *actionTokens) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.purpose = ?", r.purpose).
		Where("?TableAlias.used_at IS NULL").
		Where("?TableAlias.expires_at <= ?", r.now()).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge expired tokens")
	}
	return res.RowsAffected()
}
