package repositories

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/cbodonnell/roulette/pkg/history"
)

// Repository persists the single player's save data.
type Repository interface {
	Close(ctx context.Context) error
	// LoadSaveData returns ErrNotFound when nothing has been saved yet.
	LoadSaveData(ctx context.Context) (*history.SaveData, error)
	SaveGameData(ctx context.Context, data *history.SaveData) error
}

// Open creates a repository from a connection string. Supported schemes are
// file, sqlite and postgres/postgresql. migrationsDir holds one sub-directory
// per SQL dialect.
func Open(ctx context.Context, connStr string, migrationsDir string) (Repository, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "file":
		return NewFileRepository(urlPath(u))
	case "sqlite":
		return NewSQLiteRepository(ctx, urlPath(u), filepath.Join(migrationsDir, "sqlite"))
	case "postgres", "postgresql":
		return NewPostgresRepository(ctx, u.String(), filepath.Join(migrationsDir, "postgres"))
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}

func urlPath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}
