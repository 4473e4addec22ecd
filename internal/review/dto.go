package review

import (
	"time"

	"github.com/tagreview/pkg/models"
)

// DTO is the wire representation of a revision container review.
type DTO struct {
	ID          int64     `json:"id"`
	ContainerID int64     `json:"containerId"`
	ApproverID  int64     `json:"approverId"`
	Status      string    `json:"status"`
	Comment     *string   `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateDTO is the payload for creating a review. The approver is taken
// from the requester, never from the payload.
type CreateDTO struct {
	ContainerID int64   `json:"containerId"`
	Comment     *string `json:"comment,omitempty"`
}

func toDTO(review *models.RevisionContainerReview) *DTO {
	if review == nil {
		return nil
	}
	return &DTO{
		ID:          review.ID,
		ContainerID: review.RevisionContainerID,
		ApproverID:  review.ApproverID,
		Status:      review.Status,
		Comment:     review.Comment,
		CreatedAt:   review.CreatedAt,
		UpdatedAt:   review.UpdatedAt,
	}
}

func toDTOs(reviews []*models.RevisionContainerReview) []*DTO {
	dtos := make([]*DTO, 0, len(reviews))
	for _, review := range reviews {
		dtos = append(dtos, toDTO(review))
	}
	return dtos
}
