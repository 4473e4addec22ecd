package tagdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tagreview/pkg/models"
)

// Store handles database operations for tag data and revision containers.
type Store struct {
	db *sql.DB
}

// NewStore creates a new tag data store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetTag fetches a single tag. A missing id yields (nil, nil).
func (s *Store) GetTag(ctx context.Context, id int64) (*models.TagData, error) {
	query := `
		SELECT id, project_id, tag_number, description, category, area, discipline,
		       version, revision_container_id, fam_guid, last_synced_at, created_at, updated_at
		FROM tag_data
		WHERE id = $1
	`

	tag := &models.TagData{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tag.ID,
		&tag.ProjectID,
		&tag.TagNumber,
		&tag.Description,
		&tag.Category,
		&tag.Area,
		&tag.Discipline,
		&tag.Version,
		&tag.RevisionContainerID,
		&tag.FamGUID,
		&tag.LastSyncedAt,
		&tag.CreatedAt,
		&tag.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}

	return tag, nil
}

// ListTagsForProject returns a project's tags ordered by tag number.
func (s *Store) ListTagsForProject(ctx context.Context, projectID int64) ([]*models.TagData, error) {
	query := `
		SELECT id, project_id, tag_number, description, category, area, discipline,
		       version, revision_container_id, fam_guid, last_synced_at, created_at, updated_at
		FROM tag_data
		WHERE project_id = $1
		ORDER BY tag_number ASC
	`

	return s.queryTags(ctx, query, projectID)
}

// ListTagsForContainer returns the tag snapshots grouped under a container.
func (s *Store) ListTagsForContainer(ctx context.Context, containerID int64) ([]*models.TagData, error) {
	query := `
		SELECT id, project_id, tag_number, description, category, area, discipline,
		       version, revision_container_id, fam_guid, last_synced_at, created_at, updated_at
		FROM tag_data
		WHERE revision_container_id = $1
		ORDER BY tag_number ASC
	`

	return s.queryTags(ctx, query, containerID)
}

// GetContainer fetches a single revision container. Missing id yields
// (nil, nil).
func (s *Store) GetContainer(ctx context.Context, id int64) (*models.RevisionContainer, error) {
	query := `
		SELECT id, project_id, name, revision_code, created_at, updated_at
		FROM revision_containers
		WHERE id = $1
	`

	container := &models.RevisionContainer{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&container.ID,
		&container.ProjectID,
		&container.Name,
		&container.RevisionCode,
		&container.CreatedAt,
		&container.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get revision container: %w", err)
	}

	return container, nil
}

// ListContainers returns all revision containers in insertion order.
func (s *Store) ListContainers(ctx context.Context) ([]*models.RevisionContainer, error) {
	query := `
		SELECT id, project_id, name, revision_code, created_at, updated_at
		FROM revision_containers
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query containers: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	containers := make([]*models.RevisionContainer, 0)
	for rows.Next() {
		container := &models.RevisionContainer{}
		err := rows.Scan(
			&container.ID,
			&container.ProjectID,
			&container.Name,
			&container.RevisionCode,
			&container.CreatedAt,
			&container.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		containers = append(containers, container)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate containers: %w", err)
	}

	return containers, nil
}

// CreateContainer persists a container and assigns the given tags to it in
// one transaction. Tags already owned by another container are reassigned.
func (s *Store) CreateContainer(ctx context.Context, container *models.RevisionContainer, tagIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO revision_containers (project_id, name, revision_code, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, container.ProjectID, container.Name, container.RevisionCode).Scan(
		&container.ID, &container.CreatedAt, &container.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert container: %w", err)
	}

	for _, tagID := range tagIDs {
		result, err := tx.ExecContext(ctx, `
			UPDATE tag_data
			SET revision_container_id = $1, updated_at = NOW()
			WHERE id = $2 AND project_id = $3
		`, container.ID, tagID, container.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to assign tag %d: %w", tagID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check tag assignment: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("tag %d not found in project %d", tagID, container.ProjectID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpsertFAMTag inserts or refreshes a tag from a FAM record, keyed by
// (project, tag number). The version counter bumps only when a descriptive
// field actually changed.
func (s *Store) UpsertFAMTag(ctx context.Context, tag *models.TagData, syncedAt time.Time) error {
	query := `
		INSERT INTO tag_data (project_id, tag_number, description, category, area, discipline,
		                      version, fam_guid, last_synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, NOW(), NOW())
		ON CONFLICT (project_id, tag_number) DO UPDATE SET
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			area = EXCLUDED.area,
			discipline = EXCLUDED.discipline,
			fam_guid = COALESCE(EXCLUDED.fam_guid, tag_data.fam_guid),
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW(),
			version = CASE
				WHEN tag_data.description IS DISTINCT FROM EXCLUDED.description
				  OR tag_data.category IS DISTINCT FROM EXCLUDED.category
				  OR tag_data.area IS DISTINCT FROM EXCLUDED.area
				  OR tag_data.discipline IS DISTINCT FROM EXCLUDED.discipline
				THEN tag_data.version + 1
				ELSE tag_data.version
			END
		RETURNING id, version, created_at, updated_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		tag.ProjectID,
		tag.TagNumber,
		tag.Description,
		tag.Category,
		tag.Area,
		tag.Discipline,
		tag.FamGUID,
		syncedAt,
	).Scan(&tag.ID, &tag.Version, &tag.CreatedAt, &tag.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert tag %s: %w", tag.TagNumber, err)
	}

	tag.LastSyncedAt = &syncedAt
	return nil
}

// GetProject fetches a project row. Missing id yields (nil, nil).
func (s *Store) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	query := `
		SELECT id, external_key, name, description, is_active, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	project := &models.Project{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.ExternalKey,
		&project.Name,
		&project.Description,
		&project.IsActive,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

func (s *Store) queryTags(ctx context.Context, query string, args ...interface{}) ([]*models.TagData, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	tags := make([]*models.TagData, 0)
	for rows.Next() {
		tag := &models.TagData{}
		err := rows.Scan(
			&tag.ID,
			&tag.ProjectID,
			&tag.TagNumber,
			&tag.Description,
			&tag.Category,
			&tag.Area,
			&tag.Discipline,
			&tag.Version,
			&tag.RevisionContainerID,
			&tag.FamGUID,
			&tag.LastSyncedAt,
			&tag.CreatedAt,
			&tag.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}
