package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Op names a server-confirmed change.
type Op string

const (
	OpAddFolder    Op = "add-folder"
	OpAddDocument  Op = "add-file"
	OpDeleteFolder Op = "delete-folder"
	OpDeleteFile   Op = "delete-file"
	OpSave         Op = "save"
)

// Entry is one confirmed change. The journal is history only; it is never
// read back to serve the tree or document content.
type Entry struct {
	ID        int64     `json:"id" yaml:"id"`
	At        time.Time `json:"at" yaml:"at"`
	Op        Op        `json:"op" yaml:"op"`
	NodeID    string    `json:"node_id" yaml:"node_id"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	ParentID  string    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	MovedPath string    `json:"moved_path,omitempty" yaml:"moved_path,omitempty"`
	User      string    `json:"user,omitempty" yaml:"user,omitempty"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Op     Op
	NodeID string
	Limit  int
}

type dialect struct {
	driver string
	schema string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	sqliteDialect = dialect{
		driver: "sqlite3",
		schema: `
	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TIMESTAMP NOT NULL,
		op TEXT NOT NULL,
		node_id TEXT NOT NULL,
		label TEXT,
		parent_id TEXT,
		moved_path TEXT,
		username TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entries_node ON journal_entries(node_id);
	CREATE INDEX IF NOT EXISTS idx_journal_entries_op ON journal_entries(op);
	`,
	}
	postgresDialect = dialect{
		driver:   "postgres",
		numbered: true,
		schema: `
	CREATE TABLE IF NOT EXISTS journal_entries (
		id BIGSERIAL PRIMARY KEY,
		at TIMESTAMPTZ NOT NULL,
		op TEXT NOT NULL,
		node_id TEXT NOT NULL,
		label TEXT,
		parent_id TEXT,
		moved_path TEXT,
		username TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entries_node ON journal_entries(node_id);
	CREATE INDEX IF NOT EXISTS idx_journal_entries_op ON journal_entries(op);
	`,
	}
)

// dialectFor picks Postgres for postgres:// URLs and sqlite for file paths.
func dialectFor(dsn string) dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgresDialect
	}
	return sqliteDialect
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Journal is an append-only log in sqlite or Postgres.
type Journal struct {
	db      *sql.DB
	dialect dialect
}

// Open opens or creates the journal. dsn is a sqlite file path or a
// postgres:// URL.
func Open(dsn string) (*Journal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("journal location is empty")
	}
	d := dialectFor(dsn)
	if d.driver == sqliteDialect.driver {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db, dialect: d}
	if err := j.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize journal: %w", err)
	}
	return j, nil
}

// init creates the database schema
func (j *Journal) init() error {
	_, err := j.db.Exec(j.dialect.schema)
	return err
}

// Record appends e. A zero timestamp is stamped with the current time.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Op == "" || e.NodeID == "" {
		return Entry{}, fmt.Errorf("journal entry needs an op and a node id")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	err = tx.QueryRowContext(ctx, j.dialect.rebind(`
		INSERT INTO journal_entries (at, op, node_id, label, parent_id, moved_path, username)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), e.At, string(e.Op), e.NodeID, e.Label, e.ParentID, e.MovedPath, e.User).Scan(&e.ID)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns matching entries, newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Op != "" {
		where = append(where, "op = ?")
		args = append(args, string(f.Op))
	}
	if f.NodeID != "" {
		where = append(where, "node_id = ?")
		args = append(args, f.NodeID)
	}

	query := "SELECT id, at, op, node_id, label, parent_id, moved_path, username FROM journal_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, j.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                Entry
			op                               string
			label, parentID, movedPath, user sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.At, &op, &e.NodeID, &label, &parentID, &movedPath, &user); err != nil {
			return nil, err
		}
		e.Op = Op(op)
		e.Label = label.String
		e.ParentID = parentID.String
		e.MovedPath = movedPath.String
		e.User = user.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
