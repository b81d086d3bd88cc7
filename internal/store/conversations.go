package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/capitalize-ai/proconnect/internal/model"
)

func orderedMessages(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// ListConversations returns the conversations viewerID participates in, most
// recently active first, with both participant profiles and the message
// sequence embedded. Ties on last_message_at are broken by id.
func (s *Store) ListConversations(ctx context.Context, viewerID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Participant1").
		Preload("Participant2").
		Preload("Messages", orderedMessages).
		Where("participant_1_id = ? OR participant_2_id = ?", viewerID, viewerID).
		Order("last_message_at DESC").
		Order("id ASC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// GetConversation loads one conversation with its participants.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Participant1").
		Preload("Participant2").
		First(&conv, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, notFound(err))
	}
	return &conv, nil
}

// GetOrCreateConversation returns the conversation between user1ID and
// user2ID, creating it when absent. The pair is unordered and the two
// profiles must share an accepted connection. The boolean reports whether a
// row was created by this call.
func (s *Store) GetOrCreateConversation(ctx context.Context, user1ID, user2ID string) (*model.Conversation, bool, error) {
	if user1ID == "" || user2ID == "" || user1ID == user2ID {
		return nil, false, fmt.Errorf("%w: conversation needs two distinct participants", ErrInvalidArgument)
	}

	key := model.MakePairKey(user1ID, user2ID)
	var created bool
	var conv model.Conversation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := areConnected(tx, user1ID, user2ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotConnected
		}

		now := s.now()
		candidate := model.Conversation{
			ID:             newID(),
			Participant1ID: user1ID,
			Participant2ID: user2ID,
			PairKey:        key,
			LastMessageAt:  now,
			CreatedAt:      now,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).Create(&candidate)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1

		return tx.Preload("Participant1").Preload("Participant2").
			First(&conv, "pair_key = ?", key).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create conversation: %w", notFound(err))
	}
	return &conv, created, nil
}
