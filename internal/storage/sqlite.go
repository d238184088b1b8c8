package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	prefLastProject    = "last_project"
	prefLastCollection = "last_collection"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath and applies the
// embedded migrations. ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string, log logger.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: alive
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Debug("Opened view state store at %s", dbPath)
	return &SQLiteStore{db: db, log: log}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}
	// m.Close would close db, which the store still owns
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *SQLiteStore) LoadViewState(ctx context.Context, docID string) (models.ViewState, bool, error) {
	var state models.ViewState
	err := s.db.QueryRowContext(ctx,
		`SELECT page_number, zoom FROM view_states WHERE document_id = ?`, docID,
	).Scan(&state.PageNumber, &state.Zoom)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ViewState{}, false, nil
	}
	if err != nil {
		return models.ViewState{}, false, fmt.Errorf("failed to query view state: %w", err)
	}
	return state, true, nil
}

func (s *SQLiteStore) MergeViewState(ctx context.Context, docID string, update models.ViewStateUpdate) error {
	var page sql.NullInt64
	if update.PageNumber != nil {
		page = sql.NullInt64{Int64: int64(*update.PageNumber), Valid: true}
	}
	var zoom sql.NullFloat64
	if update.Zoom != nil {
		zoom = sql.NullFloat64{Float64: *update.Zoom, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO view_states (document_id, page_number, zoom, updated_at)
		VALUES (?, COALESCE(?, 1), COALESCE(?, 1.0), CURRENT_TIMESTAMP)
		ON CONFLICT(document_id) DO UPDATE SET
			page_number = COALESCE(?, view_states.page_number),
			zoom = COALESCE(?, view_states.zoom),
			updated_at = CURRENT_TIMESTAMP
	`, docID, page, zoom, page, zoom)
	if err != nil {
		return fmt.Errorf("failed to merge view state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteViewState(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM view_states WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete view state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSessionContext(ctx context.Context) (models.SessionContext, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM preferences WHERE key IN (?, ?)`, prefLastProject, prefLastCollection)
	if err != nil {
		return models.SessionContext{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	var sc models.SessionContext
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.SessionContext{}, fmt.Errorf("failed to scan preference: %w", err)
		}
		switch key {
		case prefLastProject:
			sc.LastProjectID = value
		case prefLastCollection:
			sc.LastCollectionID = value
		}
	}
	if err := rows.Err(); err != nil {
		return models.SessionContext{}, fmt.Errorf("failed to read preferences: %w", err)
	}
	return sc, nil
}

func (s *SQLiteStore) SaveSessionContext(ctx context.Context, sc models.SessionContext) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		prefLastProject:    sc.LastProjectID,
		prefLastCollection: sc.LastCollectionID,
	} {
		if value == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
				return fmt.Errorf("failed to clear preference %s: %w", key, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, key, value)
		if err != nil {
			return fmt.Errorf("failed to save preference %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit preferences: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
