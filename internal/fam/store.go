package fam

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tagreview/pkg/models"
)

// Store handles database operations for import runs and the project list the
// background sync walks.
type Store struct {
	db *sql.DB
}

// NewStore creates a new FAM store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateImportRun inserts a running import run with a fresh id.
func (s *Store) CreateImportRun(ctx context.Context, run *models.ImportRun) error {
	run.ID = uuid.New().String()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO fam_import_runs (id, project_id, source, status, started_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING started_at
	`, run.ID, run.ProjectID, run.Source, run.Status).Scan(&run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert import run: %w", err)
	}

	return nil
}

// FinishImportRun records the outcome of a run.
func (s *Store) FinishImportRun(ctx context.Context, run *models.ImportRun) error {
	var finishedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		UPDATE fam_import_runs
		SET status = $1, rows_total = $2, rows_failed = $3, detail = $4, finished_at = NOW()
		WHERE id = $5
		RETURNING finished_at
	`, run.Status, run.RowsTotal, run.RowsFailed, run.Detail, run.ID).Scan(&finishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish import run: %w", err)
	}

	run.FinishedAt = &finishedAt
	return nil
}

// GetImportRun fetches a single run. A missing id yields (nil, nil).
func (s *Store) GetImportRun(ctx context.Context, id string) (*models.ImportRun, error) {
	query := `
		SELECT id, project_id, source, status, rows_total, rows_failed, detail, started_at, finished_at
		FROM fam_import_runs
		WHERE id = $1
	`

	run := &models.ImportRun{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.ProjectID,
		&run.Source,
		&run.Status,
		&run.RowsTotal,
		&run.RowsFailed,
		&run.Detail,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import run: %w", err)
	}

	return run, nil
}

// ListImportRuns returns a project's runs, newest first.
func (s *Store) ListImportRuns(ctx context.Context, projectID int64) ([]*models.ImportRun, error) {
	query := `
		SELECT id, project_id, source, status, rows_total, rows_failed, detail, started_at, finished_at
		FROM fam_import_runs
		WHERE project_id = $1
		ORDER BY started_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	runs := make([]*models.ImportRun, 0)
	for rows.Next() {
		run := &models.ImportRun{}
		err := rows.Scan(
			&run.ID,
			&run.ProjectID,
			&run.Source,
			&run.Status,
			&run.RowsTotal,
			&run.RowsFailed,
			&run.Detail,
			&run.StartedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import runs: %w", err)
	}

	return runs, nil
}

// ListActiveProjects returns the projects the background sync should walk.
func (s *Store) ListActiveProjects(ctx context.Context) ([]*models.Project, error) {
	query := `
		SELECT id, external_key, name, description, is_active, created_at, updated_at
		FROM projects
		WHERE is_active = TRUE
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project := &models.Project{}
		err := rows.Scan(
			&project.ID,
			&project.ExternalKey,
			&project.Name,
			&project.Description,
			&project.IsActive,
			&project.CreatedAt,
			&project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}
