package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories. The bun handle is injected at
// construction; nothing in the package reaches for ambient database state.
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	ActivationTokens() ActionTokens
	PasswordResetTokens() ActionTokens
}

type mngr struct {
	db          *bun.DB
	users       Users
	activations ActionTokens
	resets      ActionTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		users:       NewUsersRepository(db),
		activations: NewActionTokensRepository(db, PurposeActivation),
		resets:      NewActionTokensRepository(db, PurposePasswordReset),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.activations == nil {
		return errors.New("repository activationTokens should be initialized")
	}

	if m.resets == nil {
		return errors.New("repository passwordResetTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) ActivationTokens() ActionTokens {
	return m.activations
}

func (m mngr) PasswordResetTokens() ActionTokens {
	return m.resets
}
