package accounts_test

import (
	"context"
	"strings"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestUsersRegisterDefaults(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	user, err := repo.Register(ctx, &accounts.User{
		Username:     "peperone",
		Email:        "Pepe.Rone@Example.COM",
		PasswordHash: quickHash(t, "password123"),
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, accounts.UserStatusInactive, user.Status)
	assert.Equal(t, "pepe.rone@example.com", user.Email)
}

func TestUsersGetByEmailCaseInsensitive(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, accounts.UserStatusActive, "password123")

	found, err := repo.GetByEmail(ctx, seeded.Email)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)

	// different casing and padding still resolve the same row
	found, err = repo.GetByEmail(ctx, "  "+strings.ToUpper(seeded.Email)+" ")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)
}

func TestUsersGetByEmailNotFound(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))
}

func TestUsersGetByID(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, accounts.UserStatusActive, "password123")

	found, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, seeded.Email, found.Email)

	_, err = repo.GetByID(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))

	_, err = repo.GetByID(ctx, "not-a-uuid")
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))
}

func TestUsersGetByIDCriteria(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, accounts.UserStatusInactive, "password123")

	activeOnly := func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.status = ?", accounts.UserStatusActive)
	}

	_, err := repo.GetByID(ctx, seeded.ID.String(), activeOnly)
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))

	_, err = repo.UpdateStatus(ctx, seeded.ID, accounts.UserStatusActive)
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, seeded.ID.String(), activeOnly)
	require.NoError(t, err)
	assert.Equal(t, seeded.Email, found.Email)
}

func TestUsersUpdateStatus(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, accounts.UserStatusInactive, "password123")

	activatedAt := time.Now().UTC().Truncate(time.Second)
	_, err := repo.UpdateStatus(ctx, seeded.ID, accounts.UserStatusActive, accounts.WithActivatedAt(activatedAt))
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, accounts.UserStatusActive, found.Status)
	require.NotNil(t, found.ActivatedAt)
	assert.WithinDuration(t, activatedAt, *found.ActivatedAt, time.Second)
}

func TestUsersResetPassword(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, accounts.UserStatusActive, "old-password-1")

	newHash := quickHash(t, "new-password-1")
	err := repo.ResetPassword(ctx, seeded.ID, newHash)
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	assert.NoError(t, accounts.ComparePasswordAndHash("new-password-1", found.PasswordHash))
	assert.Error(t, accounts.ComparePasswordAndHash("old-password-1", found.PasswordHash))
}

func TestUsersResetPasswordUnknownID(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)

	err := repo.ResetPassword(context.Background(), uuid.New(), quickHash(t, "whatever-12"))
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))
}

func TestUsersTrackLoginAttempts(t *testing.T) {
	db := setupDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, accounts.UserStatusActive, "password123")

	require.NoError(t, repo.TrackAttemptedLogin(ctx, seeded))

	found, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, found.LoginAttempts)
	assert.NotNil(t, found.LoginAttemptAt)

	require.NoError(t, repo.TrackAttemptedLogin(ctx, found))

	found, err = repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, found.LoginAttempts)

	require.NoError(t, repo.TrackSucccessfulLogin(ctx, found))

	found, err = repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, found.LoginAttempts)
	assert.Nil(t, found.LoginAttemptAt)
	assert.NotNil(t, found.LoggedInAt)
}
