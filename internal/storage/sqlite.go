package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	// Register the modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed width so timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	documentColumns  = []string{"id", "filename", "format", "uploaded_at", "file_size", "text_length", "chunk_count"}
	chunkColumns     = []string{"id", "document_id", "chunk_index", "text", "embedding"}
	telemetryColumns = []string{"id", "query", "answer", "latency_ms", "token_count", "timestamp", "success", "error"}
)

// SQLiteStore persists everything in a single SQLite database file.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
	sq        squirrel.StatementBuilderType
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// migrations. Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string, dimension int) (*SQLiteStore, error) {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	db, err := sql.Open("sqlite", buildSQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if isMemoryPath(path) {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := applyMigrations(ctx, db, "sqlite3", "migrations/sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &SQLiteStore{
		db:        db,
		dimension: dimension,
		sq:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func isMemoryPath(path string) bool {
	return path == "" || path == ":memory:"
}

func buildSQLiteDSN(path string) string {
	if isMemoryPath(path) {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *Document, chunks []*Chunk) (err error) {
	if err := validateInsert(doc, chunks, s.dimension); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("rollback failed: %w; original error: %v", rbErr, err)
			}
		}
	}()

	query, args, err := s.sq.Insert(DocumentsCollection).Columns(documentColumns...).Values(
		doc.ID, doc.Filename, doc.Format, doc.UploadedAt.UTC().Format(sqliteTimeLayout),
		doc.FileSize, doc.TextLength, doc.ChunkCount,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build document insert: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	for i, chunk := range chunks {
		query, args, err = s.sq.Insert(ChunksCollection).Columns(chunkColumns...).Values(
			chunk.ID, chunk.DocumentID, chunk.Index, chunk.Text, encodeVector(chunk.Embedding),
		).ToSql()
		if err != nil {
			return fmt.Errorf("build chunk insert: %w", err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	query, args, err := s.sq.Select(documentColumns...).From(DocumentsCollection).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document select: %w", err)
	}
	doc, err := scanSQLiteDocument(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	query, args, err := s.sq.Select(documentColumns...).From(DocumentsCollection).OrderBy("seq").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) (removed int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := s.sq.Delete(ChunksCollection).Where(squirrel.Eq{"document_id": id}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build chunk delete: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	chunksDeleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}

	query, args, err = s.sq.Delete(DocumentsCollection).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build document delete: %w", err)
	}
	res, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	docsDeleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	if docsDeleted == 0 {
		err = ErrDocumentNotFound
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(chunksDeleted), nil
}

func (s *SQLiteStore) CountDocuments(ctx context.Context) (int, error) {
	return s.count(ctx, s.sq.Select("COUNT(*)").From(DocumentsCollection))
}

func (s *SQLiteStore) ScanChunks(ctx context.Context, limit int) ([]*Chunk, error) {
	builder := s.sq.Select(chunkColumns...).From(ChunksCollection).OrderBy("seq")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.queryChunks(ctx, builder)
}

func (s *SQLiteStore) ListChunks(ctx context.Context, documentID string) ([]*Chunk, error) {
	return s.queryChunks(ctx, s.sq.Select(chunkColumns...).From(ChunksCollection).
		Where(squirrel.Eq{"document_id": documentID}).OrderBy("seq"))
}

func (s *SQLiteStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	builder := s.sq.Select("COUNT(*)").From(ChunksCollection)
	if documentID != "" {
		builder = builder.Where(squirrel.Eq{"document_id": documentID})
	}
	return s.count(ctx, builder)
}

func (s *SQLiteStore) InsertTelemetry(ctx context.Context, rec *TelemetryRecord) error {
	query, args, err := s.sq.Insert(TelemetryCollection).Columns(telemetryColumns...).Values(
		rec.ID, rec.Query, rec.Answer, rec.LatencyMS, rec.TokenCount,
		rec.Timestamp.UTC().Format(sqliteTimeLayout), rec.Success, rec.Error,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build telemetry insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTelemetry(ctx context.Context, limit int) ([]*TelemetryRecord, error) {
	builder := s.sq.Select(telemetryColumns...).From(TelemetryCollection).OrderBy("timestamp DESC", "seq DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build telemetry list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	defer rows.Close()

	records := []*TelemetryRecord{}
	for rows.Next() {
		var (
			rec       TelemetryRecord
			timestamp string
		)
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Answer, &rec.LatencyMS, &rec.TokenCount,
			&timestamp, &rec.Success, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		rec.Timestamp, _ = time.Parse(sqliteTimeLayout, timestamp)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) CountTelemetry(ctx context.Context) (int, error) {
	return s.count(ctx, s.sq.Select("COUNT(*)").From(TelemetryCollection))
}

func (s *SQLiteStore) count(ctx context.Context, builder squirrel.SelectBuilder) (int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryChunks(ctx context.Context, builder squirrel.SelectBuilder) ([]*Chunk, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build chunk select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*Chunk{}
	for rows.Next() {
		var (
			chunk Chunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if chunk.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner) (*Document, error) {
	var (
		doc        Document
		uploadedAt string
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Format, &uploadedAt,
		&doc.FileSize, &doc.TextLength, &doc.ChunkCount); err != nil {
		return nil, err
	}
	doc.UploadedAt, _ = time.Parse(sqliteTimeLayout, uploadedAt)
	return &doc, nil
}
