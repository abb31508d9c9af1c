package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteIndex is an embedded lexical backend on SQLite FTS5.
// Stored fields live in a plain chunks table joined on chunk_id.
type SQLiteIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var (
	_ LexicalSearcher = (*SQLiteIndex)(nil)
	_ ChunkWriter     = (*SQLiteIndex)(nil)
)

// NewSQLiteIndex opens or creates an FTS5 index at path.
// If path is empty, creates an in-memory index.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database is per-connection; keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteIndex{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id      TEXT PRIMARY KEY,
		doc_id        TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL DEFAULT '',
		chunk_index   INTEGER NOT NULL DEFAULT 0,
		chunk_text    TEXT NOT NULL,
		snippet       TEXT NOT NULL DEFAULT '',
		chunk_url     TEXT NOT NULL DEFAULT '',
		num_tokens    INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_type ON chunks(document_type);

	-- chunk_id is stored but not searchable
	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		chunk_id UNINDEXED,
		chunk_text,
		tokenize='unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// IndexChunks adds or replaces chunks in one transaction.
func (s *SQLiteIndex) IndexChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(chunk_id, doc_id, title, document_type, chunk_index, chunk_text, snippet, chunk_url, num_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk statement: %w", err)
	}
	defer upsert.Close()

	// FTS5 virtual tables don't support REPLACE, so delete first
	deleteFTS, err := tx.PrepareContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteFTS.Close()

	insertFTS, err := tx.PrepareContext(ctx, `INSERT INTO chunks_fts(chunk_id, chunk_text) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertFTS.Close()

	for _, c := range chunks {
		createdAt := ""
		if !c.CreatedAt.IsZero() {
			createdAt = c.CreatedAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := upsert.ExecContext(ctx,
			c.ChunkID, c.DocID, c.Title, string(c.DocumentType), c.ChunkIndex,
			c.ChunkText, c.Snippet, c.ChunkURL, c.NumTokens, createdAt,
		); err != nil {
			return fmt.Errorf("failed to store chunk %s: %w", c.ChunkID, err)
		}
		if _, err := deleteFTS.ExecContext(ctx, c.ChunkID); err != nil {
			return fmt.Errorf("failed to delete existing chunk %s: %w", c.ChunkID, err)
		}
		if _, err := insertFTS.ExecContext(ctx, c.ChunkID, c.ChunkText); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ChunkID, err)
		}
	}

	return tx.Commit()
}

// SearchLexical returns chunks containing every query term, best first.
// Equal scores are ordered by chunk id.
func (s *SQLiteIndex) SearchLexical(ctx context.Context, q LexicalQuery) ([]Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	match := ftsConjunction(q.Text)
	if match == "" {
		return []Hit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	// bm25() is negative; lower is a better match.
	stmt := `
		SELECT c.chunk_id, c.doc_id, c.title, c.document_type, c.chunk_index,
		       c.chunk_text, c.snippet, c.chunk_url, c.num_tokens, c.created_at,
		       bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.chunk_id = chunks_fts.chunk_id
		WHERE chunks_fts MATCH ?`
	args := []any{match}
	if q.DocumentType != "" {
		stmt += ` AND c.document_type = ?`
		args = append(args, string(q.DocumentType))
	}
	stmt += ` ORDER BY score, c.chunk_id LIMIT ?`
	args = append(args, q.Size)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("fts search failed: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var (
			c         Chunk
			docType   string
			createdAt string
			score     float64
		)
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.Title, &docType, &c.ChunkIndex,
			&c.ChunkText, &c.Snippet, &c.ChunkURL, &c.NumTokens, &createdAt, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		c.DocumentType = DocumentType(docType)
		if createdAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
				c.CreatedAt = t
			}
		}
		hits = append(hits, Hit{Chunk: c, Score: -score})
	}
	return hits, rows.Err()
}

// Count returns the number of stored chunks.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// ftsConjunction turns free text into an FTS5 expression requiring every term.
// Terms are quoted; user input is never parsed as FTS5 syntax.
func ftsConjunction(text string) string {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " AND ")
}
