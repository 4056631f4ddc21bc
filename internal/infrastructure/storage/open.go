package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"CreatorWatch/internal/ports"
)

// Config selects the ledger backend.
//
// Driver values:
//   - "file": JSON document at Path (default)
//   - "sqlite": SQLite database file at Path
//   - "postgres": Postgres reachable through DSN
type Config struct {
	Driver string
	Path   string
	DSN    string
}

// Open initializes the configured ledger.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (ports.Ledger, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.New("ledger.path is required for file driver")
		}
		return OpenFileLedger(cfg.Path, logger), nil
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg.Path)
	case "postgres", "postgresql":
		return openPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown ledger driver: %s", driver)
	}
}

func openSQLite(ctx context.Context, path string) (ports.Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = FULL")

	ledger, err := NewSQLLedger(ctx, db, sq.Question)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

func openPostgres(ctx context.Context, dsn string) (ports.Ledger, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("ledger.dsn is required for postgres driver")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	ledger, err := NewSQLLedger(ctx, db, sq.Dollar)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}
