package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path            TEXT PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	author          TEXT,
	last_position   INTEGER NOT NULL DEFAULT 0,
	total_length    INTEGER NOT NULL DEFAULT 0,
	current_chapter TEXT,
	progress        REAL NOT NULL DEFAULT 0,
	last_read_time  INTEGER NOT NULL DEFAULT 0,
	document_type   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS bookmarks (
	id             TEXT PRIMARY KEY,
	document_path  TEXT NOT NULL,
	document_title TEXT NOT NULL DEFAULT '',
	position       INTEGER NOT NULL DEFAULT 0,
	chapter_title  TEXT,
	note           TEXT,
	timestamp      INTEGER NOT NULL DEFAULT 0,
	is_auto        INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_bookmarks_document ON bookmarks(document_path, timestamp);
CREATE INDEX IF NOT EXISTS idx_documents_last_read ON documents(last_read_time);
`

const (
	documentColumns = `path, title, author, last_position, total_length, current_chapter, progress, last_read_time, document_type`
	bookmarkColumns = `id, document_path, document_title, position, chapter_title, note, timestamp, is_auto`
)

// SQLiteStore keeps the reading state in an embedded SQLite database
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens (or creates) the database file at dsn and applies the schema
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) UpsertDocument(ctx context.Context, rec types.DocumentRecord) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title           = excluded.title,
			author          = excluded.author,
			last_position   = excluded.last_position,
			total_length    = excluded.total_length,
			current_chapter = excluded.current_chapter,
			progress        = excluded.progress,
			last_read_time  = excluded.last_read_time,
			document_type   = excluded.document_type
	`, rec.Path, rec.Title, nullString(rec.Author), rec.LastPosition, rec.TotalLength,
		nullString(rec.CurrentChapter), rec.Progress, rec.LastReadTime.UnixNano(), string(rec.Type))
	if err != nil {
		return fmt.Errorf("store: upsert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, path string) (*types.DocumentRecord, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE path = ?`, path)
	rec, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) UpdateProgress(ctx context.Context, path string, position int, progress float64) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE documents SET last_position = ?, progress = ? WHERE path = ?`, position, progress, path)
	if err != nil {
		return fmt.Errorf("store: update progress: %w", err)
	}
	return requireAffected(res, "document "+path)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]types.DocumentRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY last_read_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	out := make([]types.DocumentRecord, 0)
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan document: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, path string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE document_path = ?`, path); err != nil {
		return fmt.Errorf("store: delete bookmarks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) InsertBookmark(ctx context.Context, b *types.Bookmark) error {
	if err := prepareBookmark(b); err != nil {
		return err
	}
	return insertBookmark(ctx, s.conn, b)
}

func (s *SQLiteStore) ReplaceAutoBookmark(ctx context.Context, b *types.Bookmark) error {
	b.IsAuto = true
	if err := prepareBookmark(b); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE document_path = ? AND is_auto = 1`, b.DocumentPath); err != nil {
		return fmt.Errorf("store: delete auto bookmark: %w", err)
	}
	if err := insertBookmark(ctx, tx, b); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteAutoBookmark(ctx context.Context, path string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE document_path = ? AND is_auto = 1`, path); err != nil {
		return fmt.Errorf("store: delete auto bookmark: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAutoBookmark(ctx context.Context, path string) (*types.Bookmark, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE document_path = ? AND is_auto = 1 LIMIT 1`, path)
	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auto bookmark for %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get auto bookmark: %w", err)
	}
	return &b, nil
}

func (s *SQLiteStore) ListBookmarks(ctx context.Context, path string) ([]types.Bookmark, error) {
	return s.queryBookmarks(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE document_path = ? ORDER BY timestamp DESC`, path)
}

func (s *SQLiteStore) ListAllBookmarks(ctx context.Context) ([]types.Bookmark, error) {
	return s.queryBookmarks(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks ORDER BY timestamp DESC`)
}

func (s *SQLiteStore) UpdateBookmark(ctx context.Context, b types.Bookmark) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE bookmarks SET
			document_path = ?, document_title = ?, position = ?, chapter_title = ?,
			note = ?, timestamp = ?, is_auto = ?
		WHERE id = ?
	`, b.DocumentPath, b.DocumentTitle, b.Position, nullString(b.ChapterTitle),
		nullString(b.Note), b.Timestamp.UnixNano(), b.IsAuto, b.ID)
	if err != nil {
		return fmt.Errorf("store: update bookmark: %w", err)
	}
	return requireAffected(res, "bookmark "+b.ID)
}

func (s *SQLiteStore) DeleteBookmark(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete bookmark: %w", err)
	}
	return requireAffected(res, "bookmark "+id)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) queryBookmarks(ctx context.Context, query string, args ...any) ([]types.Bookmark, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list bookmarks: %w", err)
	}
	defer rows.Close()

	out := make([]types.Bookmark, 0)
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBookmark(ctx context.Context, db execer, b *types.Bookmark) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO bookmarks (`+bookmarkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_path  = excluded.document_path,
			document_title = excluded.document_title,
			position       = excluded.position,
			chapter_title  = excluded.chapter_title,
			note           = excluded.note,
			timestamp      = excluded.timestamp,
			is_auto        = excluded.is_auto
	`, b.ID, b.DocumentPath, b.DocumentTitle, b.Position, nullString(b.ChapterTitle),
		nullString(b.Note), b.Timestamp.UnixNano(), b.IsAuto)
	if err != nil {
		return fmt.Errorf("store: insert bookmark: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (types.DocumentRecord, error) {
	var (
		rec            types.DocumentRecord
		author         sql.NullString
		currentChapter sql.NullString
		lastRead       int64
		docType        string
	)
	err := row.Scan(&rec.Path, &rec.Title, &author, &rec.LastPosition, &rec.TotalLength,
		&currentChapter, &rec.Progress, &lastRead, &docType)
	if err != nil {
		return rec, err
	}
	rec.Author = stringPtr(author)
	rec.CurrentChapter = stringPtr(currentChapter)
	rec.LastReadTime = time.Unix(0, lastRead).UTC()
	rec.Type = types.DocumentType(docType)
	return rec, nil
}

func scanBookmark(row scanner) (types.Bookmark, error) {
	var (
		b            types.Bookmark
		chapterTitle sql.NullString
		note         sql.NullString
		ts           int64
	)
	err := row.Scan(&b.ID, &b.DocumentPath, &b.DocumentTitle, &b.Position, &chapterTitle, &note, &ts, &b.IsAuto)
	if err != nil {
		return b, err
	}
	b.ChapterTitle = stringPtr(chapterTitle)
	b.Note = stringPtr(note)
	b.Timestamp = time.Unix(0, ts).UTC()
	return b, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
