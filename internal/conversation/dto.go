package conversation

import (
	"time"

	"github.com/tagreview/pkg/models"
)

// DTO is the wire representation of a conversation thread.
type DTO struct {
	ID            int64            `json:"id"`
	ReviewID      int64            `json:"reviewId"`
	Property      *string          `json:"property,omitempty"`
	Participants  []ParticipantDTO `json:"participants"`
	LatestMessage *MessageDTO      `json:"latestMessage,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// ParticipantDTO pairs a participant's id with their resolved display name.
type ParticipantDTO struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// MessageDTO is the wire representation of a message. Deleted messages keep
// their content; clients decide how to render tombstones.
type MessageDTO struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	AuthorID       int64     `json:"authorId"`
	AuthorName     string    `json:"authorName"`
	Content        string    `json:"content"`
	IsDeleted      bool      `json:"isDeleted"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CreateDTO is the payload for opening a conversation on a review. Property
// is optional; when set it must name a field of one of the recognized
// schemas.
type CreateDTO struct {
	Property *string `json:"property,omitempty"`
}

// AddMessageDTO is the payload for posting a message. The author is the
// requester, never part of the payload.
type AddMessageDTO struct {
	Content string `json:"content"`
}

// UpdateMessageDTO is the payload for editing a message's content.
type UpdateMessageDTO struct {
	Content string `json:"content"`
}

func toMessageDTO(msg *models.Message, authorName string) *MessageDTO {
	if msg == nil {
		return nil
	}
	return &MessageDTO{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		AuthorID:       msg.AuthorID,
		AuthorName:     authorName,
		Content:        msg.Content,
		IsDeleted:      msg.IsDeleted,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      msg.UpdatedAt,
	}
}

func toDTO(conv *models.Conversation, participants []*models.Participant, names map[int64]string, latest *models.Message) *DTO {
	if conv == nil {
		return nil
	}
	dto := &DTO{
		ID:        conv.ID,
		ReviewID:  conv.ReviewID,
		Property:  conv.Property,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	dto.Participants = make([]ParticipantDTO, 0, len(participants))
	for _, p := range participants {
		dto.Participants = append(dto.Participants, ParticipantDTO{
			UserID:   p.UserID,
			Username: names[p.UserID],
		})
	}

	if latest != nil {
		dto.LatestMessage = toMessageDTO(latest, names[latest.AuthorID])
	}

	return dto
}
