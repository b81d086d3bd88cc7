package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/proconnect/internal/model"
)

func TestDeriveView(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	read := base.Add(time.Hour)
	bob := &model.Profile{ID: "bob", FirstName: "Bob"}
	conv := &model.Conversation{
		ID:             "c1",
		Participant1ID: "ada",
		Participant2ID: "bob",
		Participant2:   bob,
		LastMessageAt:  base.Add(3 * time.Minute),
		Messages: []model.Message{
			{ID: "m3", SenderID: "bob", CreatedAt: base.Add(3 * time.Minute)},
			{ID: "m1", SenderID: "bob", CreatedAt: base, ReadAt: &read},
			{ID: "m2", SenderID: "ada", CreatedAt: base.Add(time.Minute)},
			{ID: "m4", SenderID: "bob", CreatedAt: base.Add(2 * time.Minute)},
		},
	}

	view, ok := DeriveView(conv, "ada")
	require.True(t, ok)
	assert.Equal(t, 2, view.UnreadCount)
	require.NotNil(t, view.LastMessage)
	assert.Equal(t, "m3", view.LastMessage.ID)
	assert.Same(t, bob, view.OtherParticipant)
	assert.Equal(t, "bob", view.OtherParticipantID)

	again, _ := DeriveView(conv, "ada")
	assert.Equal(t, view.UnreadCount, again.UnreadCount)

	bobView, ok := DeriveView(conv, "bob")
	require.True(t, ok)
	assert.Equal(t, 1, bobView.UnreadCount)
	assert.Equal(t, "ada", bobView.OtherParticipantID)
	assert.Nil(t, bobView.OtherParticipant)

	_, ok = DeriveView(conv, "eve")
	assert.False(t, ok)
	_, ok = DeriveView(conv, "")
	assert.False(t, ok)
}

func TestDeriveViewWithoutMessages(t *testing.T) {
	view, ok := DeriveView(&model.Conversation{ID: "c1", Participant1ID: "a", Participant2ID: "b"}, "b")
	require.True(t, ok)
	assert.Nil(t, view.LastMessage)
	assert.Zero(t, view.UnreadCount)
	assert.Equal(t, "a", view.OtherParticipantID)
}

func TestDeriveViewsOrdersByActivityThenID(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	convs := []model.Conversation{
		{ID: "c-old", Participant1ID: "v", Participant2ID: "x", LastMessageAt: base},
		{ID: "c-z", Participant1ID: "y", Participant2ID: "v", LastMessageAt: base.Add(time.Hour)},
		{ID: "c-foreign", Participant1ID: "x", Participant2ID: "y", LastMessageAt: base.Add(2 * time.Hour)},
		{ID: "c-a", Participant1ID: "v", Participant2ID: "z", LastMessageAt: base.Add(time.Hour)},
	}

	views := DeriveViews(convs, "v")
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	assert.Equal(t, []string{"c-a", "c-z", "c-old"}, ids)
}

func TestFilterCandidates(t *testing.T) {
	profiles := []model.Profile{
		{ID: "1", FirstName: "Bob", LastName: "Stone", Title: "Recruiter"},
		{ID: "2", FirstName: "Alice", LastName: "Bobbins", Title: "Engineer"},
		{ID: "3", FirstName: "Carl", LastName: "Moss", Title: "Staff ENGINEER"},
	}

	ids := func(ps []model.Profile) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}

	assert.Equal(t, []string{"1", "2"}, ids(FilterCandidates(profiles, "BOB")))
	assert.Equal(t, []string{"2", "3"}, ids(FilterCandidates(profiles, "engineer")))
	assert.Equal(t, []string{"1", "2", "3"}, ids(FilterCandidates(profiles, "")))
	assert.Empty(t, FilterCandidates(profiles, "zed"))
}
