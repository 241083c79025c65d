package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/litindex/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT PRIMARY KEY,
		document_name TEXT NOT NULL,
		document_type TEXT,
		source TEXT NOT NULL,
		source_path TEXT,
		created_dt TIMESTAMP NOT NULL,
		last_update_dt TIMESTAMP NOT NULL,
		document_file_size_in_bytes INTEGER NOT NULL DEFAULT 0,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	CREATE INDEX IF NOT EXISTS idx_documents_source_path ON documents(source_path);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_sequence INTEGER NOT NULL,
		chunk_type TEXT NOT NULL,
		vector_field_name TEXT NOT NULL,
		chunk_annotations_count INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		chunk_creation_dt TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(document_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_sequence);
	`
	_, err := db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// UpsertDocument inserts a document or updates it in place, keeping the
// original created_dt. Zero timestamps are set to now.
func (s *SQLiteCatalog) UpsertDocument(ctx context.Context, doc *models.Document) error {
	return upsertDocument(ctx, s.db, doc)
}

func upsertDocument(ctx context.Context, db execer, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	name := doc.Name
	if name == "" {
		name = doc.ID
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO documents (document_id, document_name, document_type, source, source_path,
			created_dt, last_update_dt, document_file_size_in_bytes, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET
			document_name = excluded.document_name,
			document_type = excluded.document_type,
			source = excluded.source,
			source_path = excluded.source_path,
			last_update_dt = excluded.last_update_dt,
			document_file_size_in_bytes = excluded.document_file_size_in_bytes,
			metadata = excluded.metadata`,
		doc.ID, name, doc.Type, doc.Source, doc.SourcePath,
		doc.CreatedAt, doc.UpdatedAt, doc.SizeBytes, string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}

const documentColumns = `document_id, document_name, document_type, source, source_path,
	created_dt, last_update_dt, document_file_size_in_bytes, metadata`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var doc models.Document
	var docType, sourcePath, metadataJSON sql.NullString
	if err := row.Scan(&doc.ID, &doc.Name, &docType, &doc.Source, &sourcePath,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.SizeBytes, &metadataJSON); err != nil {
		return nil, err
	}
	doc.Type = docType.String
	doc.SourcePath = sourcePath.String
	if metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata of %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

// GetDocument returns a document by ID, or models.ErrNotFound.
func (s *SQLiteCatalog) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE document_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents, most recently updated first.
func (s *SQLiteCatalog) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 ORDER BY last_update_dt DESC, document_id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DocumentsByIDs loads the listed documents; unknown IDs are absent from the map.
func (s *SQLiteCatalog) DocumentsByIDs(ctx context.Context, ids []string) (map[string]*models.Document, error) {
	out := make(map[string]*models.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE document_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out[doc.ID] = doc
	}
	return out, rows.Err()
}

// DocumentIDsBySourcePath lists documents whose source_path is path, in ID order.
func (s *SQLiteCatalog) DocumentIDsBySourcePath(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id FROM documents WHERE source_path = ? ORDER BY document_id`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument removes a document and its chunk rows. Returns models.ErrNotFound if absent.
func (s *SQLiteCatalog) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return tx.Commit()
}

// ReplaceChunks deletes the document's chunk rows and inserts rows in one transaction.
func (s *SQLiteCatalog) ReplaceChunks(ctx context.Context, docID string, rows []*models.ChunkRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := replaceChunks(ctx, tx, docID, rows); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceDocument upserts doc and replaces its chunk rows in one transaction.
func (s *SQLiteCatalog) ReplaceDocument(ctx context.Context, doc *models.Document, rows []*models.ChunkRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsertDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := replaceChunks(ctx, tx, doc.ID, rows); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceChunks(ctx context.Context, tx *sql.Tx, docID string, rows []*models.ChunkRow) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to clear chunks of %s: %w", docID, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (chunk_id, document_id, chunk_sequence, chunk_type, vector_field_name,
			chunk_annotations_count, source, chunk_creation_dt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if r.DocumentID != docID {
			return fmt.Errorf("%w: chunk %s belongs to %s, not %s", models.ErrMalformedInput, r.ChunkID, r.DocumentID, docID)
		}
		vectorField := r.VectorField
		if vectorField == "" {
			vectorField = models.VectorField
		}
		if _, err := stmt.ExecContext(ctx, r.ChunkID, r.DocumentID, r.Sequence, r.ChunkType,
			vectorField, r.AnnotationCount, r.Source, r.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", r.ChunkID, err)
		}
	}
	return nil
}

// GetChunks returns the document's chunk rows ordered by sequence.
func (s *SQLiteCatalog) GetChunks(ctx context.Context, docID string) ([]*models.ChunkRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, document_id, chunk_sequence, chunk_type, vector_field_name,
			chunk_annotations_count, source, chunk_creation_dt
		 FROM chunks WHERE document_id = ? ORDER BY chunk_sequence`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChunkRow
	for rows.Next() {
		var r models.ChunkRow
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Sequence, &r.ChunkType, &r.VectorField,
			&r.AnnotationCount, &r.Source, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteCatalog) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunk rows.
func (s *SQLiteCatalog) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
