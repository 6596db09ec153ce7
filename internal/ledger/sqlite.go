package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	logx "quakepost/pkg/logx"

	_ "modernc.org/sqlite"
)

// Table names come from config, so they are restricted to plain
// identifiers before being spliced into SQL.
var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const defaultTable = "deliveries"

type sqliteStore struct {
	db    *sql.DB
	table string
	log   logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("ledger path is required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = defaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid ledger table name %q", table)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, table: table, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// The primary key over the full delivery key is the idempotency
// invariant; everything else leans on it.
const schemaTemplate = `CREATE TABLE IF NOT EXISTS %s (
	event_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	destination  TEXT NOT NULL,
	provider_ref TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (event_id, status, destination)
)`

func (s *sqliteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(schemaTemplate, s.table))
	if err != nil {
		return fmt.Errorf("migrate ledger table %s: %w", s.table, err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) HasDelivered(ctx context.Context, k Key) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE event_id = ? AND status = ? AND destination = ?`, s.table),
		k.EventID, k.Status, k.Destination,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return true, nil
}

func (s *sqliteStore) Record(ctx context.Context, d Delivery) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	// ON CONFLICT DO NOTHING keeps the check-or-insert atomic: the loser
	// of a concurrent race observes zero affected rows, never a partial
	// write or a second record.
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (event_id, status, destination, provider_ref, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (event_id, status, destination) DO NOTHING`, s.table),
		d.EventID, d.Status, d.Destination, d.ProviderRef,
		d.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ledger insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger insert result: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}
