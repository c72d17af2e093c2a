package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Drmusab/taskstore/internal/pathutil"
)

// Open returns the configured blob store backend based on environment
// variables.
//
// Environment variables:
//   - TASKSTORE_BACKEND: "file" (default), "sqlite", or "postgres"
//   - TASKSTORE_DATA_DIR: custom file-backend directory (default: <workspaceDir>/.taskstore)
//   - TASKSTORE_SQLITE_PATH: custom SQLite path (default: <workspaceDir>/.taskstore/tasks.db)
//   - TASKSTORE_POSTGRES_DSN: PostgreSQL connection string (required for postgres)
//
// Returns an error if the backend type is unknown, a custom path escapes
// workspaceDir, or the postgres DSN is missing.
func Open(workspaceDir string) (Store, error) {
	backendType := strings.ToLower(strings.TrimSpace(os.Getenv("TASKSTORE_BACKEND")))
	if backendType == "" {
		backendType = "file"
	}

	switch backendType {
	case "file":
		dir, err := getDataDir(workspaceDir)
		if err != nil {
			return nil, fmt.Errorf("failed to determine data directory: %w", err)
		}
		return NewFileStore(dir), nil

	case "sqlite":
		path, err := getSQLitePath(workspaceDir)
		if err != nil {
			return nil, fmt.Errorf("failed to determine SQLite database path: %w", err)
		}
		return NewSQLiteStore(path)

	case "postgres":
		dsn := strings.TrimSpace(os.Getenv("TASKSTORE_POSTGRES_DSN"))
		if dsn == "" {
			return nil, fmt.Errorf("TASKSTORE_POSTGRES_DSN is required for the postgres backend")
		}
		return NewPostgresStore(dsn)

	default:
		return nil, fmt.Errorf("unknown storage backend: %q. Expected 'file', 'sqlite', or 'postgres'", backendType)
	}
}

// getDataDir returns the file-backend data directory.
//
// Reads TASKSTORE_DATA_DIR. If set, validates the path with
// pathutil.ResolveSafePath so it stays within workspaceDir. If not set,
// returns the default: <workspaceDir>/.taskstore.
func getDataDir(workspaceDir string) (string, error) {
	customDir := strings.TrimSpace(os.Getenv("TASKSTORE_DATA_DIR"))
	if customDir != "" {
		safeDir, err := pathutil.ResolveSafePath(workspaceDir, customDir)
		if err != nil {
			return "", fmt.Errorf("invalid TASKSTORE_DATA_DIR: %w", err)
		}
		return safeDir, nil
	}

	return filepath.Join(workspaceDir, ".taskstore"), nil
}

// getSQLitePath returns the SQLite database file path.
//
// Reads TASKSTORE_SQLITE_PATH. If set, validates the path with
// pathutil.ResolveSafePath so it stays within workspaceDir. If not set,
// returns the default: <workspaceDir>/.taskstore/tasks.db.
func getSQLitePath(workspaceDir string) (string, error) {
	customPath := strings.TrimSpace(os.Getenv("TASKSTORE_SQLITE_PATH"))
	if customPath != "" {
		safePath, err := pathutil.ResolveSafePath(workspaceDir, customPath)
		if err != nil {
			return "", fmt.Errorf("invalid TASKSTORE_SQLITE_PATH: %w", err)
		}
		return safePath, nil
	}

	return filepath.Join(workspaceDir, ".taskstore", "tasks.db"), nil
}
