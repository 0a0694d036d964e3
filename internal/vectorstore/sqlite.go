package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists a vector index to a SQLite database so reindexing
// is only needed when the source data or the embedding version changes.
// Vectors are stored as little-endian float32 blobs; the index meta lives
// in a single-row table alongside them.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the index database at the given path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS index_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			fingerprint TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS records (
			doc_id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			vector BLOB NOT NULL,
			tbl TEXT NOT NULL,
			row INTEGER NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}

	return nil
}

// Save replaces the persisted index with the given meta and records
func (s *SQLiteStore) Save(ctx context.Context, meta Meta, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO index_meta (id, version, dimension, fingerprint) VALUES (1, ?, ?, ?)",
		meta.Version, meta.Dimension, meta.Fingerprint); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO records (doc_id, text, vector, tbl, row) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if len(rec.Vector) != meta.Dimension {
			return versionError(meta, Meta{Version: meta.Version, Dimension: len(rec.Vector)})
		}
		if _, err := stmt.ExecContext(ctx, rec.DocID, rec.Text, encodeVector(rec.Vector), rec.Table, rec.Row); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load returns the persisted meta and records. A database with no saved
// index returns a zero Meta and no records.
func (s *SQLiteStore) Load(ctx context.Context) (Meta, []Record, error) {
	var meta Meta
	err := s.db.QueryRowContext(ctx,
		"SELECT version, dimension, fingerprint FROM index_meta WHERE id = 1").
		Scan(&meta.Version, &meta.Dimension, &meta.Fingerprint)
	if err == sql.ErrNoRows {
		return Meta{}, nil, nil
	}
	if err != nil {
		return Meta{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT doc_id, text, vector, tbl, row FROM records")
	if err != nil {
		return Meta{}, nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		var blob []byte
		if err := rows.Scan(&rec.DocID, &rec.Text, &blob, &rec.Table, &rec.Row); err != nil {
			return Meta{}, nil, err
		}
		rec.Vector = decodeVector(blob)
		records = append(records, rec)
	}

	return meta, records, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeVector converts []float32 to a little-endian byte blob
func encodeVector(f []float32) []byte {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector converts a byte blob back to []float32
func decodeVector(b []byte) []float32 {
	f := make([]float32, len(b)/4)
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return f
}
