package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// PostgresStore persists the user-to-thread mapping across restarts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(config DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	store := &PostgresStore{db: db}

	if err := store.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStore) GetThread(ctx context.Context, userID string) (string, error) {
	var threadID string
	query := `
		UPDATE user_threads
		SET last_used_at = NOW()
		WHERE user_id = $1
		RETURNING thread_id`

	err := s.db.QueryRowContext(ctx, query, userID).Scan(&threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error querying thread: %v", err)
	}
	return threadID, nil
}

func (s *PostgresStore) SaveThread(ctx context.Context, userID, threadID string) error {
	// The thread id of an existing mapping is left untouched.
	query := `
		INSERT INTO user_threads (user_id, thread_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET last_used_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, userID, threadID); err != nil {
		return fmt.Errorf("error saving thread: %v", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
