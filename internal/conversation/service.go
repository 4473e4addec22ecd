package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tagreview/pkg/models"
)

// ErrReviewNotFound signals that a conversation create referenced a review
// that does not exist.
var ErrReviewNotFound = errors.New("review not found")

// ErrConversationNotFound signals that a message operation referenced a
// conversation that does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrUnknownProperty signals a conversation scoped to a property no
// recognized schema has.
var ErrUnknownProperty = errors.New("unknown property")

// ErrNotAuthor signals a delete attempted by someone other than the
// message's author.
var ErrNotAuthor = errors.New("only the author can delete a message")

type conversationStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation, firstParticipantID int64) error
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	ListConversations(ctx context.Context, reviewID int64) ([]*models.Conversation, error)
	ListParticipants(ctx context.Context, conversationID int64) ([]*models.Participant, error)
	AddParticipant(ctx context.Context, conversationID, userID int64) error
	GetReview(ctx context.Context, id int64) (*models.RevisionContainerReview, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]*models.Message, error)
	UpdateMessageContent(ctx context.Context, id int64, content string) (*models.Message, error)
	SoftDeleteMessage(ctx context.Context, id int64) error
	LatestMessages(ctx context.Context, conversationIDs []int64) (map[int64]*models.Message, error)
}

// UsernameResolver maps user ids to display names in one batched call.
// Unresolvable ids still get a placeholder entry, never a missing key.
type UsernameResolver interface {
	ResolveUsernames(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

// Service implements the conversation and message lifecycle.
type Service struct {
	store    conversationStore
	resolver UsernameResolver
}

// NewService creates a new conversation service
func NewService(store conversationStore, resolver UsernameResolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// Create opens a conversation on a review with the requester as its first
// participant. A set Property must name a field of one of the recognized
// schemas; an empty Property scopes the conversation to the review as a
// whole.
func (s *Service) Create(ctx context.Context, reviewID int64, dto CreateDTO, requesterID int64) (*DTO, error) {
	property := dto.Property
	if property != nil && strings.TrimSpace(*property) == "" {
		property = nil
	}
	if property != nil && !IsRecognizedProperty(*property) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, *property)
	}

	review, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to check review: %w", err)
	}
	if review == nil {
		return nil, fmt.Errorf("%w: id %d", ErrReviewNotFound, reviewID)
	}

	conv := &models.Conversation{
		ReviewID: review.ID,
		Property: property,
	}
	if err := s.store.CreateConversation(ctx, conv, requesterID); err != nil {
		return nil, err
	}

	return s.assemble(ctx, conv, nil)
}

// Get returns a single conversation with its participants, or (nil, nil)
// when it does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*DTO, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}
	return s.assemble(ctx, conv, nil)
}

// List returns a review's conversations in store order. With
// includeLatestMessage set, each DTO carries the newest non-deleted message,
// falling back to the newest deleted one when every message is deleted.
func (s *Service) List(ctx context.Context, reviewID int64, includeLatestMessage bool) ([]*DTO, error) {
	conversations, err := s.store.ListConversations(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	var latest map[int64]*models.Message
	if includeLatestMessage && len(conversations) > 0 {
		ids := make([]int64, 0, len(conversations))
		for _, conv := range conversations {
			ids = append(ids, conv.ID)
		}
		latest, err = s.store.LatestMessages(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	participants := make(map[int64][]*models.Participant, len(conversations))
	userIDs := make([]int64, 0, len(conversations))
	for _, conv := range conversations {
		list, err := s.store.ListParticipants(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		participants[conv.ID] = list
		for _, p := range list {
			userIDs = append(userIDs, p.UserID)
		}
		if msg := latest[conv.ID]; msg != nil {
			userIDs = append(userIDs, msg.AuthorID)
		}
	}

	names, err := s.ResolveUsernames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	dtos := make([]*DTO, 0, len(conversations))
	for _, conv := range conversations {
		dtos = append(dtos, toDTO(conv, participants[conv.ID], names, latest[conv.ID]))
	}
	return dtos, nil
}

// AddMessage appends a message authored by the caller, who joins the
// participant list if not already on it.
func (s *Service) AddMessage(ctx context.Context, conversationID int64, dto AddMessageDTO, authorID int64) (*MessageDTO, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to check conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: id %d", ErrConversationNotFound, conversationID)
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		AuthorID:       authorID,
		Content:        dto.Content,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.store.AddParticipant(ctx, conv.ID, authorID); err != nil {
		return nil, err
	}

	names, err := s.ResolveUsernames(ctx, []int64{authorID})
	if err != nil {
		return nil, err
	}
	return toMessageDTO(msg, names[authorID]), nil
}

// GetMessage returns a single message, or (nil, nil) when it does not exist.
func (s *Service) GetMessage(ctx context.Context, id int64) (*MessageDTO, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	names, err := s.ResolveUsernames(ctx, []int64{msg.AuthorID})
	if err != nil {
		return nil, err
	}
	return toMessageDTO(msg, names[msg.AuthorID]), nil
}

// ListMessages returns a conversation's messages in creation order, deleted
// ones included.
func (s *Service) ListMessages(ctx context.Context, conversationID int64) ([]*MessageDTO, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to check conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: id %d", ErrConversationNotFound, conversationID)
	}

	messages, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(messages))
	for _, msg := range messages {
		userIDs = append(userIDs, msg.AuthorID)
	}
	names, err := s.ResolveUsernames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	dtos := make([]*MessageDTO, 0, len(messages))
	for _, msg := range messages {
		dtos = append(dtos, toMessageDTO(msg, names[msg.AuthorID]))
	}
	return dtos, nil
}

// UpdateMessage replaces a message's content. It stays the same message:
// identity, author and creation timestamp are preserved. Returns (nil, nil)
// when the message does not exist.
func (s *Service) UpdateMessage(ctx context.Context, id int64, dto UpdateMessageDTO) (*MessageDTO, error) {
	msg, err := s.store.UpdateMessageContent(ctx, id, dto.Content)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	names, err := s.ResolveUsernames(ctx, []int64{msg.AuthorID})
	if err != nil {
		return nil, err
	}
	return toMessageDTO(msg, names[msg.AuthorID]), nil
}

// DeleteMessage soft-deletes a message. Only the original author may delete;
// anyone else gets ErrNotAuthor. Returns (nil, nil) when the message does
// not exist.
func (s *Service) DeleteMessage(ctx context.Context, id int64, requesterID int64) (*MessageDTO, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	if msg.AuthorID != requesterID {
		return nil, ErrNotAuthor
	}

	if err := s.store.SoftDeleteMessage(ctx, msg.ID); err != nil {
		return nil, err
	}
	msg.IsDeleted = true

	names, err := s.ResolveUsernames(ctx, []int64{msg.AuthorID})
	if err != nil {
		return nil, err
	}
	return toMessageDTO(msg, names[msg.AuthorID]), nil
}

// ResolveUsernames maps the given user ids to display names in one batched
// resolver call. Duplicate ids are collapsed first.
func (s *Service) ResolveUsernames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	seen := make(map[int64]struct{}, len(userIDs))
	unique := make([]int64, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[int64]string{}, nil
	}
	return s.resolver.ResolveUsernames(ctx, unique)
}

func (s *Service) assemble(ctx context.Context, conv *models.Conversation, latest *models.Message) (*DTO, error) {
	participants, err := s.store.ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(participants)+1)
	for _, p := range participants {
		userIDs = append(userIDs, p.UserID)
	}
	if latest != nil {
		userIDs = append(userIDs, latest.AuthorID)
	}

	names, err := s.ResolveUsernames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	return toDTO(conv, participants, names, latest), nil
}
