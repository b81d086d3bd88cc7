package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/capitalize-ai/proconnect/internal/model"
)

// ListMessages returns a conversation's messages oldest first with senders embedded.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	err := orderedMessages(s.db.WithContext(ctx).Preload("Sender")).
		Where("conversation_id = ?", conversationID).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// GetMessage loads one message with its sender.
func (s *Store) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	if err := s.db.WithContext(ctx).Preload("Sender").First(&msg, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, notFound(err))
	}
	return &msg, nil
}

// InsertMessage stores a message and advances the conversation's
// last_message_at in the same transaction. It returns the stored message and
// the updated conversation row.
func (s *Store) InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, *model.Conversation, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return nil, nil, fmt.Errorf("%w: message content is empty", ErrInvalidArgument)
	}

	row := *msg
	row.Sender = nil
	if row.ID == "" {
		row.ID = newID()
	}
	if row.MessageType == "" {
		row.MessageType = model.MessageTypeText
	}
	row.ReadAt = nil

	var conv model.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&conv, "id = ?", row.ConversationID).Error; err != nil {
			return notFound(err)
		}
		if !conv.HasParticipant(row.SenderID) {
			return fmt.Errorf("%w: sender is not a participant", ErrForbidden)
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = s.now()
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		conv.LastMessageAt = row.CreatedAt
		return tx.Model(&conv).Update("last_message_at", row.CreatedAt).Error
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return &row, &conv, nil
}

// MarkMessagesAsRead stamps read_at on every unread message in the
// conversation that userID did not send, and returns the rows it changed.
// Calling it again with nothing unread changes nothing.
func (s *Store) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) ([]model.Message, error) {
	var changed []model.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.First(&conv, "id = ?", conversationID).Error; err != nil {
			return notFound(err)
		}
		if !conv.HasParticipant(userID) {
			return ErrNotFound
		}

		err := orderedMessages(tx).
			Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, userID).
			Find(&changed).Error
		if err != nil || len(changed) == 0 {
			return err
		}

		ids := make([]string, len(changed))
		for i := range changed {
			ids[i] = changed[i].ID
		}
		now := s.now()
		if err := tx.Model(&model.Message{}).Where("id IN ?", ids).Update("read_at", now).Error; err != nil {
			return err
		}
		for i := range changed {
			changed[i].ReadAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages as read: %w", err)
	}
	return changed, nil
}
