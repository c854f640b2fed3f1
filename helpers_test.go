package accounts_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

// setupDB opens an in-memory sqlite handle and applies the embedded
// migrations. A single connection keeps concurrent statements serialized.
func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	migrations := accounts.GetMigrationsFS()

	var files []string
	err = fs.WalkDir(migrations, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".up.sql") {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	require.NotEmpty(t, files)

	for _, file := range files {
		stmt, err := fs.ReadFile(migrations, file)
		require.NoError(t, err)

		_, err = db.Exec(string(stmt))
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// quickHash generates a minimum-cost hash; the production cost would slow the
// suite down without testing anything extra.
func quickHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func seedUser(t *testing.T, db *bun.DB, status accounts.UserStatus, password string) *accounts.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	user := &accounts.User{
		ID:           uuid.New(),
		Username:     "user-" + suffix,
		Email:        suffix + "@example.com",
		Status:       status,
		PasswordHash: quickHash(t, password),
	}

	_, err := db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)

	return user
}
