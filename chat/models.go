package chat

import "time"

// SenderType tags who authored a message.
type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderMitra SenderType = "mitra"
	SenderAdmin SenderType = "admin"
)

// Message mirrors the chat_messages table.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Body       string
	Type       SenderType
	SentAt     time.Time
}

// CreateParams enumerates the fields a sender supplies.
type CreateParams struct {
	SenderID   string
	ReceiverID string
	Body       string
	Type       SenderType
}

// Filters narrows List results to messages a participant sent or received.
type Filters struct {
	ParticipantID string
}
