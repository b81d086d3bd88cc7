package model

import (
	"time"
)

// Conversation pairs exactly two participants.
type Conversation struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Participant1ID string    `gorm:"column:participant_1_id;size:36;index;not null" json:"participant_1_id"`
	Participant2ID string    `gorm:"column:participant_2_id;size:36;index;not null" json:"participant_2_id"`
	PairKey        string    `gorm:"size:80;uniqueIndex;not null" json:"-"`
	LastMessageAt  time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt      time.Time `json:"created_at"`

	Participant1 *Profile  `gorm:"foreignKey:Participant1ID" json:"participant_1,omitempty"`
	Participant2 *Profile  `gorm:"foreignKey:Participant2ID" json:"participant_2,omitempty"`
	Messages     []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// MakePairKey returns the order-independent key for two participants.
func MakePairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// HasParticipant reports whether profileID is one of the two participants.
func (c *Conversation) HasParticipant(profileID string) bool {
	return profileID != "" && (c.Participant1ID == profileID || c.Participant2ID == profileID)
}

// OtherParticipantID returns the participant id that is not viewerID.
func (c *Conversation) OtherParticipantID(viewerID string) string {
	if c.Participant1ID == viewerID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// OtherParticipant returns the embedded profile that is not viewerID.
func (c *Conversation) OtherParticipant(viewerID string) *Profile {
	if c.Participant1ID == viewerID {
		return c.Participant2
	}
	return c.Participant1
}

// ConversationView is a conversation as shown in a viewer's directory.
type ConversationView struct {
	ID                 string    `json:"id"`
	Participant1ID     string    `json:"participant_1_id"`
	Participant2ID     string    `json:"participant_2_id"`
	LastMessageAt      time.Time `json:"last_message_at"`
	CreatedAt          time.Time `json:"created_at"`
	OtherParticipantID string    `json:"other_participant_id"`
	OtherParticipant   *Profile  `json:"other_participant,omitempty"`
	LastMessage        *Message  `json:"last_message,omitempty"`
	UnreadCount        int       `json:"unread_count"`
}
