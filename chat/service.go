package chat

import (
	"context"
	"fmt"
	"strings"
)

// MessageStore abstracts repository operations for the service.
type MessageStore interface {
	Create(ctx context.Context, params CreateParams) (Message, error)
	List(ctx context.Context, filters Filters) ([]Message, error)
}

// Service exposes business-level chat operations. Blocked mitras keep chat
// access so they can ask an admin to unblock them.
type Service struct {
	repo MessageStore
}

// NewService builds a Service using the provided repository.
func NewService(repo MessageStore) *Service {
	return &Service{repo: repo}
}

// Send validates and stores a new message.
func (s *Service) Send(ctx context.Context, params CreateParams) (Message, error) {
	if params.SenderID == "" || params.ReceiverID == "" {
		return Message{}, fmt.Errorf("chat: sender and receiver are required")
	}
	if strings.TrimSpace(params.Body) == "" {
		return Message{}, fmt.Errorf("chat: message body is empty")
	}
	switch params.Type {
	case SenderUser, SenderMitra, SenderAdmin:
	default:
		return Message{}, fmt.Errorf("chat: unknown sender type %q", params.Type)
	}

	return s.repo.Create(ctx, params)
}

// List returns messages matching the filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]Message, error) {
	return s.repo.List(ctx, filters)
}
