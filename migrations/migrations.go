// Package migrations встраивает SQL-миграции в бинарник (goose).
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed client/*.sql
var clientFS embed.FS

// Postgres — миграции серверного хранилища пользователей.
func Postgres() fs.FS { return mustSub(postgresFS, "postgres") }

// Client — миграции локального хранилища сессии клиента (SQLite).
func Client() fs.FS { return mustSub(clientFS, "client") }

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
