package messaging

import (
	"slices"

	"github.com/capitalize-ai/proconnect/internal/model"
)

// DeriveView builds viewerID's view of conv. It returns false when viewerID is not
// a participant.
func DeriveView(conv *model.Conversation, viewerID string) (model.ConversationView, bool) {
	if conv == nil || !conv.HasParticipant(viewerID) {
		return model.ConversationView{}, false
	}

	view := model.ConversationView{
		ID:                 conv.ID,
		Participant1ID:     conv.Participant1ID,
		Participant2ID:     conv.Participant2ID,
		LastMessageAt:      conv.LastMessageAt,
		CreatedAt:          conv.CreatedAt,
		OtherParticipantID: conv.OtherParticipantID(viewerID),
		OtherParticipant:   conv.OtherParticipant(viewerID),
	}

	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.IsUnreadFor(viewerID) {
			view.UnreadCount++
		}
		if view.LastMessage == nil || view.LastMessage.Before(m) {
			view.LastMessage = m
		}
	}
	if view.LastMessage != nil {
		last := *view.LastMessage
		view.LastMessage = &last
	}
	return view, true
}

// DeriveViews derives the views of convs that involve viewerID, most recently active
// first with ties broken by conversation id.
func DeriveViews(convs []model.Conversation, viewerID string) []model.ConversationView {
	views := make([]model.ConversationView, 0, len(convs))
	for i := range convs {
		if view, ok := DeriveView(&convs[i], viewerID); ok {
			views = append(views, view)
		}
	}
	slices.SortFunc(views, compareViews)
	return views
}

func compareViews(a, b model.ConversationView) int {
	if c := b.LastMessageAt.Compare(a.LastMessageAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
