package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/tagreview/pkg/models"
)

// ErrContainerNotFound is returned by Create when the revision container
// named in the payload does not exist.
var ErrContainerNotFound = errors.New("revision container not found")

// reviewStore is the subset of Store the service uses; tests substitute an
// in-memory fake.
type reviewStore interface {
	GetByID(ctx context.Context, id int64) (*models.RevisionContainerReview, error)
	List(ctx context.Context) ([]*models.RevisionContainerReview, error)
	ListForTag(ctx context.Context, tagID int64) ([]*models.RevisionContainerReview, error)
	ListForProject(ctx context.Context, projectID int64) ([]*models.RevisionContainerReview, error)
	Create(ctx context.Context, review *models.RevisionContainerReview) error
	GetContainer(ctx context.Context, id int64) (*models.RevisionContainer, error)
}

// Service orchestrates the review lifecycle: fetch, list and create with
// container validation.
type Service struct {
	store reviewStore
}

// NewService creates a new review service
func NewService(store reviewStore) *Service {
	return &Service{store: store}
}

// Get returns the review with the given id, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*DTO, error) {
	review, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDTO(review), nil
}

// List returns all reviews in store order.
func (s *Service) List(ctx context.Context) ([]*DTO, error) {
	reviews, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return toDTOs(reviews), nil
}

// ListForTag returns the reviews attached to the container owning the tag.
func (s *Service) ListForTag(ctx context.Context, tagID int64) ([]*DTO, error) {
	reviews, err := s.store.ListForTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	return toDTOs(reviews), nil
}

// ListForProject returns the reviews across a project's containers.
func (s *Service) ListForProject(ctx context.Context, projectID int64) ([]*DTO, error) {
	reviews, err := s.store.ListForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return toDTOs(reviews), nil
}

// Create validates that the referenced revision container exists, then
// persists a pending review with the requester as approver. Nothing is
// written when validation fails. Duplicate reviews per container are
// allowed; only container existence is checked.
func (s *Service) Create(ctx context.Context, dto CreateDTO, requesterID int64) (*DTO, error) {
	container, err := s.store.GetContainer(ctx, dto.ContainerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up container: %w", err)
	}
	if container == nil {
		return nil, fmt.Errorf("%w: id %d", ErrContainerNotFound, dto.ContainerID)
	}

	review := &models.RevisionContainerReview{
		RevisionContainerID: container.ID,
		ApproverID:          requesterID,
		Status:              models.ReviewStatusPending,
		Comment:             dto.Comment,
	}

	if err := s.store.Create(ctx, review); err != nil {
		return nil, err
	}

	return toDTO(review), nil
}
