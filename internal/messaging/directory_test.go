package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/proconnect/internal/model"
)

func viewIDs(views []model.ConversationView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestDirectoryWithoutViewerIsNoop(t *testing.T) {
	gw := newFakeGateway()
	d := NewDirectory(gw, "", Options{}, nil)
	defer d.Close()

	require.NoError(t, d.Start(context.Background()))
	d.Refresh(context.Background(), TriggerCounter)

	assert.Empty(t, d.Conversations())
	assert.False(t, d.Loading())
	assert.Zero(t, gw.count("Subscribe"))
	assert.Zero(t, gw.count("ListConversations"))
}

func TestDirectoryListsOnlyViewerConversations(t *testing.T) {
	gw := newFakeGateway()
	gw.addProfile("bob", "Bob", "", "")
	gw.addConversation("c1", "ada", "bob")
	gw.addConversation("c2", "bob", "eve")
	gw.addMessage("c1", "bob", "hi", false)
	gw.addMessage("c2", "eve", "psst", false)

	d := NewDirectory(gw, "ada", Options{}, nil)
	defer d.Close()
	require.NoError(t, d.Start(context.Background()))

	views := d.Conversations()
	require.Len(t, views, 1)
	assert.Equal(t, "c1", views[0].ID)
	assert.Equal(t, 1, views[0].UnreadCount)
	require.NotNil(t, views[0].OtherParticipant)
	assert.Equal(t, "bob", views[0].OtherParticipant.ID)
	assert.False(t, d.Loading())
}

func TestDirectoryRefreshesOnRelevantChanges(t *testing.T) {
	gw := newFakeGateway()
	gw.addConversation("c1", "ada", "bob")
	gw.addConversation("c2", "bob", "eve")

	d := NewDirectory(gw, "ada", Options{}, nil)
	defer d.Close()
	require.NoError(t, d.Start(context.Background()))
	require.Equal(t, 1, gw.count("ListConversations"))

	foreign := gw.addMessage("c2", "eve", "unrelated", false)
	gw.emit(messageInserted(foreign))
	assert.Equal(t, 1, gw.count("ListConversations"), "messages in unlisted conversations are ignored")

	mine := gw.addMessage("c1", "bob", "hello", false)
	gw.emit(messageInserted(mine))
	assert.Equal(t, 2, gw.count("ListConversations"))
	assert.Equal(t, 1, d.Conversations()[0].UnreadCount)

	gw.addConversation("c3", "cy", "ada")
	gw.emit(conversationChanged(model.EventInsert, "c3", "cy", "ada"))
	assert.Equal(t, 3, gw.count("ListConversations"))
	assert.ElementsMatch(t, []string{"c1", "c3"}, viewIDs(d.Conversations()))

	gw.emit(conversationChanged(model.EventUpdate, "c2", "bob", "eve"))
	assert.Equal(t, 3, gw.count("ListConversations"), "conversation filter is scoped to the viewer")
}

func TestDirectoryKeepsPreviousListOnFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.addConversation("c1", "ada", "bob")

	d := NewDirectory(gw, "ada", Options{}, nil)
	defer d.Close()
	require.NoError(t, d.Start(context.Background()))

	gw.setErr("ListConversations", errors.New("boom"))
	d.Refresh(context.Background(), TriggerCounter)

	assert.Equal(t, []string{"c1"}, viewIDs(d.Conversations()))
	assert.False(t, d.Loading())
}

func TestDirectoryDiscardsStaleResults(t *testing.T) {
	gw := newFakeGateway()
	gw.addConversation("c1", "ada", "bob")

	release := make(chan struct{})
	gw.listConversationsHook = func(call int) {
		if call == 1 {
			<-release
		}
	}

	d := NewDirectory(gw, "ada", Options{}, nil)
	defer d.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.Start(context.Background())
	}()
	require.Eventually(t, func() bool { return gw.count("ListConversations") == 1 }, time.Second, time.Millisecond)
	assert.True(t, d.Loading())

	gw.addConversation("c2", "ada", "cy")
	d.Refresh(context.Background(), TriggerCounter)
	assert.ElementsMatch(t, []string{"c1", "c2"}, viewIDs(d.Conversations()))

	close(release)
	wg.Wait()
	assert.ElementsMatch(t, []string{"c1", "c2"}, viewIDs(d.Conversations()))
	assert.False(t, d.Loading())
}

func TestDirectoryCloseCancelsSubscriptions(t *testing.T) {
	gw := newFakeGateway()
	gw.addConversation("c1", "ada", "bob")

	d := NewDirectory(gw, "ada", Options{}, nil)
	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, 2, gw.liveSubs())

	d.Close()
	assert.Zero(t, gw.liveSubs())

	gw.emit(conversationChanged(model.EventUpdate, "c1", "ada", "bob"))
	assert.Equal(t, 1, gw.count("ListConversations"))
}
