package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/proconnect/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProfile(t *testing.T, s *Store, first, last, title string) *model.Profile {
	t.Helper()
	p := &model.Profile{FirstName: first, LastName: last, Title: title}
	require.NoError(t, s.CreateProfile(context.Background(), p))
	return p
}

func connect(t *testing.T, s *Store, a, b *model.Profile, status model.ConnectionStatus) *model.Connection {
	t.Helper()
	c := &model.Connection{RequesterID: a.ID, AddresseeID: b.ID, Status: status}
	require.NoError(t, s.CreateConnection(context.Background(), c))
	return c
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "dsn", nil)
	assert.Error(t, err)
}

func TestCreateProfileDefaultsUserType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := seedProfile(t, s, "Ada", "Lovelace", "Engineer")
	got, err := s.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserTypeProfessional, got.UserType)
	assert.Equal(t, "Ada Lovelace", got.FullName())

	err = s.CreateProfile(ctx, &model.Profile{UserType: "robot"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrCreateConversationIsIdempotentForUnorderedPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedProfile(t, s, "Ada", "Lovelace", "")
	b := seedProfile(t, s, "Bob", "Byte", "")
	connect(t, s, a, b, model.ConnectionAccepted)

	first, created, err := s.GetOrCreateConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, first.Participant1)
	require.NotNil(t, first.Participant2)

	again, created, err := s.GetOrCreateConversation(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	convs, err := s.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestGetOrCreateConversationRequiresAcceptedConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedProfile(t, s, "Ada", "", "")
	b := seedProfile(t, s, "Bob", "", "")
	c := seedProfile(t, s, "Cy", "", "")
	connect(t, s, a, b, model.ConnectionPending)

	_, _, err := s.GetOrCreateConversation(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, _, err = s.GetOrCreateConversation(ctx, a.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, _, err = s.GetOrCreateConversation(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInsertMessageAdvancesConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedProfile(t, s, "Ada", "", "")
	b := seedProfile(t, s, "Bob", "", "")
	outsider := seedProfile(t, s, "Eve", "", "")
	connect(t, s, a, b, model.ConnectionAccepted)
	conv, _, err := s.GetOrCreateConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)

	msg, updated, err := s.InsertMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		SenderID:       a.ID,
		Content:        "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, model.MessageTypeText, msg.MessageType)
	assert.Nil(t, msg.ReadAt)
	assert.True(t, updated.LastMessageAt.Equal(msg.CreatedAt))

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Sender)
	assert.Equal(t, "Ada", got.Sender.FirstName)

	_, _, err = s.InsertMessage(ctx, &model.Message{ConversationID: conv.ID, SenderID: outsider.ID, Content: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = s.InsertMessage(ctx, &model.Message{ConversationID: conv.ID, SenderID: a.ID, Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = s.InsertMessage(ctx, &model.Message{ConversationID: "nope", SenderID: a.ID, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkMessagesAsReadOnlyTouchesOthersUnread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedProfile(t, s, "Ada", "", "")
	b := seedProfile(t, s, "Bob", "", "")
	connect(t, s, b, a, model.ConnectionAccepted)
	conv, _, err := s.GetOrCreateConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)

	for _, m := range []struct{ sender, text string }{{a.ID, "one"}, {b.ID, "two"}, {b.ID, "three"}} {
		_, _, err := s.InsertMessage(ctx, &model.Message{ConversationID: conv.ID, SenderID: m.sender, Content: m.text})
		require.NoError(t, err)
	}

	changed, err := s.MarkMessagesAsRead(ctx, conv.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, changed, 2)
	for _, m := range changed {
		assert.Equal(t, b.ID, m.SenderID)
		assert.NotNil(t, m.ReadAt)
	}

	changed, err = s.MarkMessagesAsRead(ctx, conv.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, changed)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Nil(t, msgs[0].ReadAt)

	outsider := seedProfile(t, s, "Eve", "", "")
	_, err = s.MarkMessagesAsRead(ctx, conv.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversationsOrdersByActivityThenID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := seedProfile(t, s, "Vee", "", "")
	b := seedProfile(t, s, "Bob", "", "")
	c := seedProfile(t, s, "Cy", "", "")
	d := seedProfile(t, s, "Dee", "", "")
	connect(t, s, v, b, model.ConnectionAccepted)
	connect(t, s, c, v, model.ConnectionAccepted)
	connect(t, s, b, c, model.ConnectionAccepted)
	connect(t, s, v, d, model.ConnectionAccepted)

	withB, _, err := s.GetOrCreateConversation(ctx, v.ID, b.ID)
	require.NoError(t, err)
	withC, _, err := s.GetOrCreateConversation(ctx, c.ID, v.ID)
	require.NoError(t, err)
	others, _, err := s.GetOrCreateConversation(ctx, b.ID, c.ID)
	require.NoError(t, err)
	withD, _, err := s.GetOrCreateConversation(ctx, v.ID, d.ID)
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	_, _, err = s.InsertMessage(ctx, &model.Message{ConversationID: withB.ID, SenderID: b.ID, Content: "b", CreatedAt: base})
	require.NoError(t, err)
	_, _, err = s.InsertMessage(ctx, &model.Message{ConversationID: withC.ID, SenderID: c.ID, Content: "c", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, _, err = s.InsertMessage(ctx, &model.Message{ConversationID: withD.ID, SenderID: d.ID, Content: "d", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, convs, 3)

	tied := []string{withC.ID, withD.ID}
	if tied[1] < tied[0] {
		tied[0], tied[1] = tied[1], tied[0]
	}
	assert.Equal(t, tied[0], convs[0].ID)
	assert.Equal(t, tied[1], convs[1].ID)
	assert.Equal(t, withB.ID, convs[2].ID)
	for _, conv := range convs {
		assert.NotEqual(t, others.ID, conv.ID)
		assert.True(t, conv.HasParticipant(v.ID))
		assert.Len(t, conv.Messages, 1)
	}
}
