package accounts

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/templates
var templatesFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

func templatesHTTPFS() http.FileSystem {
	sub, err := fs.Sub(templatesFS, "data/templates")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
