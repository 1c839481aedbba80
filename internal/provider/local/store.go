// Package local provides an offline filing corpus backed by SQLite.
//
// Filings are imported once (from disk or another provider) and then served
// through the provider.Provider interface, so the engine runs without
// network access.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/provider"
)

// DefaultDBPath is the default corpus location.
const DefaultDBPath = "~/.filingintel/filings.db"

// dateLayout is how filing dates are stored. SQLite DATE() cannot parse Go's
// time format, so dates are kept as ISO days and compared as text.
const dateLayout = "2006-01-02"

// Filing is one imported document.
type Filing struct {
	ID          string
	Identifier  string
	Form        string
	FilingDate  time.Time
	URL         string
	Accession   string
	ContentType string // "html" or "text"; sniffed when empty
	Content     string
	ImportedAt  time.Time
}

// Stats summarizes the corpus.
type Stats struct {
	Filings     int64
	Identifiers int64
	DBSizeBytes int64
}

// Store is a SQLite-backed provider.Provider.
type Store struct {
	db     *sql.DB
	dbPath string
}

var (
	_ provider.Provider = (*Store)(nil)
	_ provider.Lookup   = (*Store)(nil)
)

// Open opens (and if needed creates) the corpus at path.
// Pass ":memory:" for in-memory databases (testing).
func Open(path string) (*Store, error) {
	if path == "" {
		path = expandPath(DefaultDBPath)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS filings (
			id           TEXT PRIMARY KEY,
			identifier   TEXT NOT NULL,
			form         TEXT NOT NULL,
			filing_date  TEXT NOT NULL,
			url          TEXT NOT NULL DEFAULT '',
			accession    TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL,
			content      TEXT NOT NULL,
			imported_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_filings_identifier_date ON filings(identifier, filing_date)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Import inserts or replaces a filing and returns its id. A filing without an
// id gets a generated one.
func (s *Store) Import(ctx context.Context, f *Filing) (string, error) {
	if strings.TrimSpace(f.Content) == "" {
		return "", errcode.Validationf("filing content cannot be empty")
	}
	if f.Identifier == "" || f.Form == "" || f.FilingDate.IsZero() {
		return "", errcode.Validationf("filing needs identifier, form and filing date")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.ContentType == "" {
		f.ContentType = "text"
		if document.LooksLikeHTML(f.Content) {
			f.ContentType = "html"
		}
	}
	f.ImportedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO filings (id, identifier, form, filing_date, url, accession, content_type, content, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Identifier, f.Form, f.FilingDate.UTC().Format(dateLayout), f.URL, f.Accession, f.ContentType, f.Content, f.ImportedAt,
	)
	if err != nil {
		return "", fmt.Errorf("inserting filing: %w", err)
	}
	return f.ID, nil
}

// ImportFile reads path and imports it as a filing.
func (s *Store) ImportFile(ctx context.Context, path string, f Filing) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	f.Content = string(data)
	if f.URL == "" {
		if abs, err := filepath.Abs(path); err == nil {
			f.URL = "file://" + abs
		}
	}
	return s.Import(ctx, &f)
}

// ListDocuments implements provider.Provider.
func (s *Store) ListDocuments(ctx context.Context, identifier string, r provider.DateRange, forms []string) ([]provider.Locator, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identifier, form, filing_date, url, accession FROM filings
		 WHERE identifier = ? AND filing_date >= ? AND filing_date <= ?
		 ORDER BY filing_date, id`,
		identifier, r.From.UTC().Format(dateLayout), r.To.UTC().Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("listing filings: %w", err)
	}
	defer rows.Close()

	var out []provider.Locator
	for rows.Next() {
		var loc provider.Locator
		var date string
		if err := rows.Scan(&loc.DocumentID, &loc.Identifier, &loc.Form, &date, &loc.URL, &loc.Accession); err != nil {
			return nil, fmt.Errorf("scanning filing: %w", err)
		}
		if loc.FilingDate, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("filing %s has bad date %q: %w", loc.DocumentID, date, err)
		}
		if provider.MatchForm(loc.Form, forms) {
			out = append(out, loc)
		}
	}
	return out, rows.Err()
}

// FetchDocument implements provider.Provider.
func (s *Store) FetchDocument(ctx context.Context, loc provider.Locator) (*document.Document, error) {
	f, err := s.Get(ctx, loc.DocumentID)
	if err != nil {
		return nil, err
	}
	meta := f.Locator().Meta()
	if f.ContentType == "html" {
		return document.FromHTML(meta, f.Content)
	}
	return document.FromText(meta, f.Content), nil
}

// Lookup implements provider.Lookup.
func (s *Store) Lookup(ctx context.Context, id string) (provider.Locator, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return provider.Locator{}, err
	}
	return f.Locator(), nil
}

// Locator returns the provider locator of the filing.
func (f *Filing) Locator() provider.Locator {
	return provider.Locator{
		DocumentID: f.ID,
		Identifier: f.Identifier,
		Form:       f.Form,
		FilingDate: f.FilingDate,
		URL:        f.URL,
		Accession:  f.Accession,
	}
}

// Get returns one filing by id.
func (s *Store) Get(ctx context.Context, id string) (*Filing, error) {
	f := &Filing{}
	var date string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, identifier, form, filing_date, url, accession, content_type, content, imported_at
		 FROM filings WHERE id = ?`, id,
	).Scan(&f.ID, &f.Identifier, &f.Form, &date, &f.URL, &f.Accession, &f.ContentType, &f.Content, &f.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, errcode.NotFoundf("document %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting filing %s: %w", id, err)
	}
	if f.FilingDate, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("filing %s has bad date %q: %w", id, date, err)
	}
	return f, nil
}

// Stats returns corpus counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT identifier) FROM filings`).Scan(&st.Filings, &st.Identifiers); err != nil {
		return nil, fmt.Errorf("counting filings: %w", err)
	}
	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}
	return st, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
