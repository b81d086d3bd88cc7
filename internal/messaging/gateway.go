// Package messaging implements the real-time chat core: the conversation directory,
// the message thread, the conversation initiator and the page controller that ties
// them together for one viewer.
package messaging

import (
	"context"

	"github.com/capitalize-ai/proconnect/internal/model"
)

// Gateway is the data gateway the messaging core reads from, writes to and
// subscribes on.
type Gateway interface {
	ListConversations(ctx context.Context, viewerID string) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	ListConnections(ctx context.Context, profileID string, status model.ConnectionStatus) ([]model.Connection, error)
	GetOrCreateConversation(ctx context.Context, user1ID, user2ID string) (*model.Conversation, error)
	MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error
	Subscribe(table model.Table, kind model.EventKind, filter model.Filter, handler func(model.ChangeEvent)) (model.Subscription, error)
}
