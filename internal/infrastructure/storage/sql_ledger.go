package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"CreatorWatch/internal/ports"
)

const ledgerTable = "delivered_items"

// deliveredAtLayout is fixed-width so that text ordering matches time ordering.
const deliveredAtLayout = "2006-01-02T15:04:05.000000000Z"

const ledgerSchema = `CREATE TABLE IF NOT EXISTS delivered_items (
    item_id      TEXT PRIMARY KEY,
    delivered_at TEXT NOT NULL
)`

// SQLLedger persists delivered ids in a SQL table (SQLite or Postgres).
type SQLLedger struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.Ledger = (*SQLLedger)(nil)

// NewSQLLedger wires an opened sql.DB and creates the table when missing.
// placeholder must match the driver: sq.Question for SQLite, sq.Dollar for Postgres.
func NewSQLLedger(ctx context.Context, db *sql.DB, placeholder sq.PlaceholderFormat) (*SQLLedger, error) {
	if db == nil {
		return nil, errors.New("sql ledger: nil db")
	}
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &SQLLedger{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}, nil
}

// Contains reports whether id exists in the table.
func (r *SQLLedger) Contains(ctx context.Context, id string) (bool, error) {
	query, args, err := r.builder.
		Select("1").
		From(ledgerTable).
		Where(sq.Eq{"item_id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build contains query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return true, nil
}

// Add inserts id; an existing row is left untouched.
func (r *SQLLedger) Add(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("add empty id to ledger")
	}

	query, args, err := r.builder.
		Insert(ledgerTable).
		Columns("item_id", "delivered_at").
		Values(id, r.now().UTC().Format(deliveredAtLayout)).
		Suffix("ON CONFLICT (item_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, id, err)
	}
	return nil
}

// Snapshot returns all ids ordered by delivery time.
func (r *SQLLedger) Snapshot(ctx context.Context) ([]string, error) {
	query, args, err := r.builder.
		Select("item_id").
		From(ledgerTable).
		OrderBy("delivered_at", "item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build snapshot query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return ids, nil
}

// Close releases the database handle.
func (r *SQLLedger) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
