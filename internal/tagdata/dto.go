package tagdata

import (
	"time"

	"github.com/tagreview/pkg/models"
)

// DTO is the wire representation of a tag data record.
type DTO struct {
	ID           int64      `json:"id"`
	ProjectID    int64      `json:"projectId"`
	TagNumber    string     `json:"tagNumber"`
	Description  *string    `json:"description,omitempty"`
	Category     *string    `json:"category,omitempty"`
	Area         *string    `json:"area,omitempty"`
	Discipline   *string    `json:"discipline,omitempty"`
	Version      int        `json:"version"`
	ContainerID  *int64     `json:"containerId,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ContainerDTO is the wire representation of a revision container, optionally
// carrying the tags grouped under it.
type ContainerDTO struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"projectId"`
	Name         string    `json:"name"`
	RevisionCode string    `json:"revisionCode"`
	Tags         []*DTO    `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateContainerDTO is the payload for creating a revision container. The
// listed tags are assigned to the new container.
type CreateContainerDTO struct {
	ProjectID    int64   `json:"projectId"`
	Name         string  `json:"name"`
	RevisionCode string  `json:"revisionCode"`
	TagIDs       []int64 `json:"tagIds"`
}

func toDTO(tag *models.TagData) *DTO {
	if tag == nil {
		return nil
	}
	return &DTO{
		ID:           tag.ID,
		ProjectID:    tag.ProjectID,
		TagNumber:    tag.TagNumber,
		Description:  tag.Description,
		Category:     tag.Category,
		Area:         tag.Area,
		Discipline:   tag.Discipline,
		Version:      tag.Version,
		ContainerID:  tag.RevisionContainerID,
		LastSyncedAt: tag.LastSyncedAt,
		CreatedAt:    tag.CreatedAt,
		UpdatedAt:    tag.UpdatedAt,
	}
}

func toDTOs(tags []*models.TagData) []*DTO {
	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	dtos := make([]*DTO, 0, len(tags))
	for _, tag := range tags {
		dtos = append(dtos, toDTO(tag))
	}
	return dtos
}

func toContainerDTO(container *models.RevisionContainer, tags []*models.TagData) *ContainerDTO {
	if container == nil {
		return nil
	}
	dto := &ContainerDTO{
		ID:           container.ID,
		ProjectID:    container.ProjectID,
		Name:         container.Name,
		RevisionCode: container.RevisionCode,
		CreatedAt:    container.CreatedAt,
		UpdatedAt:    container.UpdatedAt,
	}
	if tags != nil {
		dto.Tags = toDTOs(tags)
	}
	return dto
}
