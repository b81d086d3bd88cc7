package model

import (
	"time"
)

// MessageType is the kind of message content.
type MessageType string

const (
	MessageTypeText MessageType = "text"
)

// Message is a single message inside a conversation.
type Message struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string      `gorm:"size:36;index;not null" json:"conversation_id"`
	SenderID       string      `gorm:"size:36;index;not null" json:"sender_id"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	MessageType    MessageType `gorm:"size:20;not null;default:text" json:"message_type"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
	ReadAt         *time.Time  `json:"read_at"`

	Sender *Profile `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// IsUnreadFor reports whether the message counts as unread for viewerID.
func (m *Message) IsUnreadFor(viewerID string) bool {
	return m.SenderID != viewerID && m.ReadAt == nil
}

// Before orders messages by creation time, then by id.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// SendMessageRequest is the request to send a message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// DraftRequest replaces the compose buffer.
type DraftRequest struct {
	Content string `json:"content"`
}

// SelectConversationRequest selects a conversation.
type SelectConversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

// StartConversationRequest starts a conversation with a connection.
type StartConversationRequest struct {
	ParticipantID string `json:"participant_id"`
}

// ConnectionRequest asks another profile to connect.
type ConnectionRequest struct {
	AddresseeID    string `json:"addressee_id"`
	ConnectionType string `json:"connection_type,omitempty"`
}

// RespondConnectionRequest accepts or declines a pending connection.
type RespondConnectionRequest struct {
	Status ConnectionStatus `json:"status"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
