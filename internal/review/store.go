package review

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tagreview/pkg/models"
)

// Store handles database operations for revision container reviews.
type Store struct {
	db *sql.DB
}

// NewStore creates a new review store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetByID fetches a single review. A missing id yields (nil, nil), not an
// error.
func (s *Store) GetByID(ctx context.Context, id int64) (*models.RevisionContainerReview, error) {
	query := `
		SELECT id, revision_container_id, approver_id, status, comment, created_at, updated_at
		FROM revision_reviews
		WHERE id = $1
	`

	review := &models.RevisionContainerReview{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&review.ID,
		&review.RevisionContainerID,
		&review.ApproverID,
		&review.Status,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return review, nil
}

// List returns all reviews in insertion order.
func (s *Store) List(ctx context.Context) ([]*models.RevisionContainerReview, error) {
	query := `
		SELECT id, revision_container_id, approver_id, status, comment, created_at, updated_at
		FROM revision_reviews
		ORDER BY id ASC
	`

	return s.queryReviews(ctx, query)
}

// ListForTag returns reviews attached to the container that owns the tag,
// in insertion order. A tag without a container has no reviews.
func (s *Store) ListForTag(ctx context.Context, tagID int64) ([]*models.RevisionContainerReview, error) {
	query := `
		SELECT r.id, r.revision_container_id, r.approver_id, r.status, r.comment, r.created_at, r.updated_at
		FROM revision_reviews r
		JOIN tag_data t ON t.revision_container_id = r.revision_container_id
		WHERE t.id = $1
		ORDER BY r.id ASC
	`

	return s.queryReviews(ctx, query, tagID)
}

// ListForProject returns reviews across all of a project's containers, in
// insertion order.
func (s *Store) ListForProject(ctx context.Context, projectID int64) ([]*models.RevisionContainerReview, error) {
	query := `
		SELECT r.id, r.revision_container_id, r.approver_id, r.status, r.comment, r.created_at, r.updated_at
		FROM revision_reviews r
		JOIN revision_containers c ON c.id = r.revision_container_id
		WHERE c.project_id = $1
		ORDER BY r.id ASC
	`

	return s.queryReviews(ctx, query, projectID)
}

// Create persists a new review and fills in its generated fields.
func (s *Store) Create(ctx context.Context, review *models.RevisionContainerReview) error {
	query := `
		INSERT INTO revision_reviews (revision_container_id, approver_id, status, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		review.RevisionContainerID,
		review.ApproverID,
		review.Status,
		review.Comment,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	return nil
}

// GetContainer fetches the revision container a review would reference.
// A missing container yields (nil, nil).
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

func (s *Store) queryReviews(ctx context.Context, query string, args ...interface{}) ([]*models.RevisionContainerReview, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	reviews := make([]*models.RevisionContainerReview, 0)
	for rows.Next() {
		review := &models.RevisionContainerReview{}
		err := rows.Scan(
			&review.ID,
			&review.RevisionContainerID,
			&review.ApproverID,
			&review.Status,
			&review.Comment,
			&review.CreatedAt,
			&review.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}

	return reviews, nil
}
