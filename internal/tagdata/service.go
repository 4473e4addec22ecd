package tagdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tagreview/pkg/models"
)

// ErrProjectNotFound signals that a container create referenced a project
// that does not exist.
var ErrProjectNotFound = errors.New("project not found")

// ErrTagNotInProject signals that a container create listed a tag that does
// not exist or belongs to another project.
var ErrTagNotInProject = errors.New("tag not found in project")

type tagStore interface {
	GetTag(ctx context.Context, id int64) (*models.TagData, error)
	ListTagsForProject(ctx context.Context, projectID int64) ([]*models.TagData, error)
	ListTagsForContainer(ctx context.Context, containerID int64) ([]*models.TagData, error)
	GetContainer(ctx context.Context, id int64) (*models.RevisionContainer, error)
	ListContainers(ctx context.Context) ([]*models.RevisionContainer, error)
	CreateContainer(ctx context.Context, container *models.RevisionContainer, tagIDs []int64) error
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	UpsertFAMTag(ctx context.Context, tag *models.TagData, syncedAt time.Time) error
}

// Service implements tag data and revision container reads plus container
// creation.
type Service struct {
	store tagStore
}

// NewService creates a new tag data service
func NewService(store tagStore) *Service {
	return &Service{store: store}
}

// GetTag returns a single tag, or (nil, nil) when it does not exist.
func (s *Service) GetTag(ctx context.Context, id int64) (*DTO, error) {
	tag, err := s.store.GetTag(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDTO(tag), nil
}

// ListTagsForProject returns a project's tags.
func (s *Service) ListTagsForProject(ctx context.Context, projectID int64) ([]*DTO, error) {
	tags, err := s.store.ListTagsForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return toDTOs(tags), nil
}

// GetContainer returns a container with its tags, or (nil, nil) when it does
// not exist.
func (s *Service) GetContainer(ctx context.Context, id int64) (*ContainerDTO, error) {
	container, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, nil
	}

	tags, err := s.store.ListTagsForContainer(ctx, container.ID)
	if err != nil {
		return nil, err
	}
	return toContainerDTO(container, tags), nil
}

// ListTagsForContainer returns the tag snapshots grouped under a container,
// or (nil, nil) when the container does not exist.
func (s *Service) ListTagsForContainer(ctx context.Context, containerID int64) ([]*DTO, error) {
	container, err := s.store.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, nil
	}

	tags, err := s.store.ListTagsForContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return toDTOs(tags), nil
}

// ListContainers returns all containers without their tags.
func (s *Service) ListContainers(ctx context.Context) ([]*ContainerDTO, error) {
	containers, err := s.store.ListContainers(ctx)
	if err != nil {
		return nil, err
	}

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	dtos := make([]*ContainerDTO, 0, len(containers))
	for _, container := range containers {
		dtos = append(dtos, toContainerDTO(container, nil))
	}
	return dtos, nil
}

// CreateContainer validates the project and the tag list, then persists the
// container with the tags assigned to it.
func (s *Service) CreateContainer(ctx context.Context, dto CreateContainerDTO) (*ContainerDTO, error) {
	project, err := s.store.GetProject(ctx, dto.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to check project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: id %d", ErrProjectNotFound, dto.ProjectID)
	}

	for _, tagID := range dto.TagIDs {
		tag, err := s.store.GetTag(ctx, tagID)
		if err != nil {
			return nil, fmt.Errorf("failed to check tag %d: %w", tagID, err)
		}
		if tag == nil || tag.ProjectID != dto.ProjectID {
			return nil, fmt.Errorf("%w: id %d", ErrTagNotInProject, tagID)
		}
	}

	container := &models.RevisionContainer{
		ProjectID:    dto.ProjectID,
		Name:         strings.TrimSpace(dto.Name),
		RevisionCode: strings.TrimSpace(dto.RevisionCode),
	}
	if err := s.store.CreateContainer(ctx, container, dto.TagIDs); err != nil {
		return nil, err
	}

	tags, err := s.store.ListTagsForContainer(ctx, container.ID)
	if err != nil {
		return nil, err
	}
	return toContainerDTO(container, tags), nil
}
