package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/triage/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// Writers from separate connections wait on the lock instead of failing.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS blobs (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS index_meta (
		name TEXT PRIMARY KEY,
		index_blob_id TEXT NOT NULL,
		records_blob_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (index_blob_id) REFERENCES blobs(id),
		FOREIGN KEY (records_blob_id) REFERENCES blobs(id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// GetProfile returns the profile for userID or ErrNotFound.
func (s *SQLiteStorage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profileJSON string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT profile, updated_at FROM profiles WHERE user_id = ?`, userID,
	).Scan(&profileJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var p models.Profile
	if err := json.Unmarshal([]byte(profileJSON), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	p.UserID = userID
	p.UpdatedAt = updatedAt
	return &p, nil
}

// UpsertProfile inserts or replaces the profile keyed by p.UserID.
func (s *SQLiteStorage) UpsertProfile(ctx context.Context, p *models.Profile) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	profileJSON, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to marshal profile: %w", err)
	}
	p.UpdatedAt = time.Now()

	// Each statement is atomic, so concurrent first writes cannot both insert.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, profile, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		p.UserID, string(profileJSON), p.UpdatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	if inserted, err := res.RowsAffected(); err != nil || inserted == 1 {
		return inserted == 1, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE profiles SET profile = ?, updated_at = ? WHERE user_id = ?`,
		string(profileJSON), p.UpdatedAt, p.UserID,
	)
	return false, err
}

// CountProfiles returns the number of stored profiles.
func (s *SQLiteStorage) CountProfiles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	return count, err
}

// GetIndexMeta returns the metadata record for a named index or ErrNotFound.
func (s *SQLiteStorage) GetIndexMeta(ctx context.Context, name string) (*IndexMeta, error) {
	var meta IndexMeta
	err := s.db.QueryRowContext(ctx,
		`SELECT name, index_blob_id, records_blob_id, created_at FROM index_meta WHERE name = ?`, name,
	).Scan(&meta.Name, &meta.IndexBlobID, &meta.RecordsBlobID, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetBlob returns the bytes stored under id or ErrNotFound.
func (s *SQLiteStorage) GetBlob(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PutIndex stores both blobs and points the named metadata record at them.
// Blobs referenced by a replaced metadata record are removed.
func (s *SQLiteStorage) PutIndex(ctx context.Context, meta *IndexMeta, indexBlob, recordsBlob []byte) error {
	if meta.Name == "" || meta.IndexBlobID == "" || meta.RecordsBlobID == "" {
		return fmt.Errorf("index metadata requires name and both blob ids")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var oldIndex, oldRecords string
	err = tx.QueryRowContext(ctx,
		`SELECT index_blob_id, records_blob_id FROM index_meta WHERE name = ?`, meta.Name,
	).Scan(&oldIndex, &oldRecords)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	meta.CreatedAt = time.Now()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO blobs (id, data, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	if _, err := stmt.ExecContext(ctx, meta.IndexBlobID, indexBlob, meta.CreatedAt); err != nil {
		return fmt.Errorf("failed to store index blob: %w", err)
	}
	if _, err := stmt.ExecContext(ctx, meta.RecordsBlobID, recordsBlob, meta.CreatedAt); err != nil {
		return fmt.Errorf("failed to store records blob: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO index_meta (name, index_blob_id, records_blob_id, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET index_blob_id = excluded.index_blob_id,
		 records_blob_id = excluded.records_blob_id, created_at = excluded.created_at`,
		meta.Name, meta.IndexBlobID, meta.RecordsBlobID, meta.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store index metadata: %w", err)
	}
	if oldIndex != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE id IN (?, ?)`, oldIndex, oldRecords); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
