// Package modelstore fetches model weights and records what is on disk.
// It never stores user data.
package modelstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Artifact is one downloaded model file.
type Artifact struct {
	ID           int64     `json:"id"`
	SourceRepo   string    `json:"source_repo"`
	FileName     string    `json:"file_name"`
	LocalPath    string    `json:"local_path"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Manifest records downloaded artifacts in SQLite.
type Manifest struct {
	db     *sql.DB
	dbPath string
}

// OpenManifest opens the manifest database at dbPath, creating it and
// applying pending migrations as needed.
func OpenManifest(dbPath string, logger *logrus.Logger) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := migrateUp(dbPath, logger); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &Manifest{db: db, dbPath: dbPath}, nil
}

// migrateUp applies the embedded migrations on a dedicated connection,
// which the migrate instance closes when done.
func migrateUp(dbPath string, logger *logrus.Logger) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("Model manifest schema is up to date")
			return nil
		}
		return fmt.Errorf("running migrations up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.WithError(err).Warn("Could not get manifest schema version after migration")
	} else {
		logger.WithFields(logrus.Fields{
			"version": version,
			"dirty":   dirty,
		}).Info("Model manifest migrations completed")
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(s scanner) (*Artifact, error) {
	a := &Artifact{}
	err := s.Scan(&a.ID, &a.SourceRepo, &a.FileName, &a.LocalPath, &a.SizeBytes, &a.SHA256, &a.DownloadedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Record inserts or replaces the entry for the artifact's repo and file.
func (m *Manifest) Record(ctx context.Context, a *Artifact) error {
	if a.DownloadedAt.IsZero() {
		a.DownloadedAt = time.Now().UTC()
	}

	err := m.db.QueryRowContext(ctx, `
		INSERT INTO model_artifacts (
			source_repo, file_name, local_path, size_bytes, sha256, downloaded_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_repo, file_name) DO UPDATE SET
			local_path = excluded.local_path,
			size_bytes = excluded.size_bytes,
			sha256 = excluded.sha256,
			downloaded_at = excluded.downloaded_at
		RETURNING id
	`,
		a.SourceRepo,
		a.FileName,
		a.LocalPath,
		a.SizeBytes,
		a.SHA256,
		a.DownloadedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}
	return nil
}

// Lookup returns the artifact for repo and file, or nil if none is recorded.
func (m *Manifest) Lookup(ctx context.Context, repo, file string) (*Artifact, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, source_repo, file_name, local_path, size_bytes, sha256, downloaded_at
		FROM model_artifacts
		WHERE source_repo = ? AND file_name = ?
	`, repo, file)

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return a, nil
}

// List returns every recorded artifact, newest first.
func (m *Manifest) List(ctx context.Context) ([]*Artifact, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, source_repo, file_name, local_path, size_bytes, sha256, downloaded_at
		FROM model_artifacts
		ORDER BY downloaded_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// Delete removes the entry for repo and file.
func (m *Manifest) Delete(ctx context.Context, repo, file string) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM model_artifacts WHERE source_repo = ? AND file_name = ?", repo, file)
	return err
}

// Close closes the database connection.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// Path returns the database file path.
func (m *Manifest) Path() string {
	return m.dbPath
}
