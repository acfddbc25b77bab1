package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/TirthC27/HealthID/pkg/config"
	"github.com/TirthC27/HealthID/pkg/logger"
)

// PostgresStore is a Store backed by a single PostgreSQL documents table.
// Each document is written atomically as a whole row.
type PostgresStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPostgresStore opens a PostgreSQL connection and ensures the schema
func NewPostgresStore(cfg *config.DatabaseConfig, log *logger.Logger) (*PostgresStore, error) {
	connStr := buildConnectionString(cfg)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db, logger: log}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Database connection established successfully")
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing database handle; used in tests
func NewPostgresStoreWithDB(db *sql.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log}
}

// buildConnectionString constructs the PostgreSQL connection string
func buildConnectionString(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// ensureSchema creates the documents table if it does not exist
func (s *PostgresStore) ensureSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			doc JSONB NOT NULL,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// List returns every document in the collection, in insertion order
func (s *PostgresStore) List(collection string) ([]json.RawMessage, error) {
	query := `
		SELECT doc FROM documents
		WHERE collection = $1
		ORDER BY inserted_at, id`

	rows, err := s.db.Query(query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, json.RawMessage(raw))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection %s: %w", collection, err)
	}
	return docs, nil
}

// Get returns the document with the given id, or ErrNotFound
func (s *PostgresStore) Get(collection, id string) (json.RawMessage, error) {
	query := `SELECT doc FROM documents WHERE collection = $1 AND id = $2`

	var raw []byte
	err := s.db.QueryRow(query, collection, id).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return json.RawMessage(raw), nil
}

// Put inserts or replaces the document with the given id
func (s *PostgresStore) Put(collection, id string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc`

	if _, err := s.db.Exec(query, collection, id, raw); err != nil {
		return fmt.Errorf("failed to put document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the document with the given id
func (s *PostgresStore) Delete(collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	result, err := s.db.Exec(query, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Health checks the database connection health
func (s *PostgresStore) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
