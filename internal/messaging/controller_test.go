package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/proconnect/internal/model"
)

func TestStartConversationWithConnection(t *testing.T) {
	gw := newFakeGateway()
	gw.addProfile("ada", "Ada", "Lovelace", "Engineer")
	gw.addProfile("bob", "Bob", "Stone", "Recruiter")
	gw.addProfile("cy", "Cy", "Pending", "")
	gw.addConnection("bob", "ada", model.ConnectionAccepted)
	gw.addConnection("ada", "cy", model.ConnectionPending)

	c := NewController(gw, "ada", Options{})
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.Empty(t, c.Directory().Conversations())

	in := c.Initiator()
	in.Open(ctx)
	in.SetFilter("bo")
	candidates := in.Candidates()
	require.Len(t, candidates, 1)
	assert.Equal(t, "bob", candidates[0].ID)

	conv, err := in.Start(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.count("GetOrCreateConversation"))
	assert.Equal(t, []string{"get_or_create:ada,bob"}, filterLog(gw.opLog(), "get_or_create"))
	assert.EqualValues(t, 1, c.RefreshCounter())

	views := c.Directory().Conversations()
	require.Len(t, views, 1)
	assert.Equal(t, conv.ID, views[0].ID)
	require.NotNil(t, views[0].OtherParticipant)
	assert.Equal(t, "bob", views[0].OtherParticipant.ID)

	snap := in.Snapshot()
	assert.False(t, snap.Open)
	assert.Empty(t, snap.Filter)
}

func filterLog(log []string, prefix string) []string {
	var out []string
	for _, entry := range log {
		if strings.HasPrefix(entry, prefix) {
			out = append(out, entry)
		}
	}
	return out
}

func TestInitiatorRejectsNonCandidates(t *testing.T) {
	gw := newFakeGateway()
	gw.addProfile("bob", "Bob", "", "")
	gw.addProfile("cy", "Cy", "", "")
	gw.addConnection("ada", "bob", model.ConnectionAccepted)
	gw.addConnection("ada", "cy", model.ConnectionDeclined)

	in := NewInitiator(gw, "ada", Options{}, nil, nil)
	ctx := context.Background()

	_, err := in.Start(ctx, "bob")
	assert.ErrorIs(t, err, ErrInitiatorClosed)

	in.Open(ctx)
	_, err = in.Start(ctx, "cy")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, gw.count("GetOrCreateConversation"))
}

func TestInitiatorFailureStaysOpen(t *testing.T) {
	gw := newFakeGateway()
	gw.addProfile("bob", "Bob", "", "")
	gw.addConnection("ada", "bob", model.ConnectionAccepted)
	gw.setErr("GetOrCreateConversation", errors.New("rpc failed"))

	created := 0
	in := NewInitiator(gw, "ada", Options{}, nil, func(context.Context, *model.Conversation) { created++ })
	ctx := context.Background()
	in.Open(ctx)
	in.SetFilter("bob")

	_, err := in.Start(ctx, "bob")
	require.Error(t, err)

	snap := in.Snapshot()
	assert.True(t, snap.Open)
	assert.Equal(t, "bob", snap.Filter)
	assert.Equal(t, "rpc failed", snap.Error)
	assert.Len(t, snap.Candidates, 1)
	assert.Zero(t, created)

	gw.setErr("GetOrCreateConversation", nil)
	var errDuringRetry string
	gw.getOrCreateHook = func() { errDuringRetry = in.Snapshot().Error }
	_, err = in.Start(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, errDuringRetry, "a retry clears the previous error")
	assert.Equal(t, 1, created)
}

func TestInitiatorStartIsSingleFlight(t *testing.T) {
	gw := newFakeGateway()
	gw.addProfile("ada", "Ada", "Lovelace", "")
	gw.addProfile("bob", "Bob", "Stone", "")
	gw.addConnection("ada", "bob", model.ConnectionAccepted)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gw.getOrCreateHook = func() {
		once.Do(func() { close(entered) })
		<-release
	}

	c := NewController(gw, "ada", Options{})
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	in := c.Initiator()
	in.Open(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := in.Start(ctx, "bob")
		done <- err
	}()
	<-entered
	assert.True(t, in.Snapshot().Starting)

	_, err := in.Start(ctx, "bob")
	assert.ErrorIs(t, err, ErrStartInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gw.count("GetOrCreateConversation"))
	assert.EqualValues(t, 1, c.RefreshCounter())
	assert.False(t, in.Snapshot().Starting)
}

func TestInitiatorFetchesOnlyWhileOpen(t *testing.T) {
	gw := newFakeGateway()
	gw.addProfile("bob", "Bob", "", "")
	gw.addConnection("ada", "bob", model.ConnectionAccepted)

	in := NewInitiator(gw, "ada", Options{}, nil, nil)
	assert.Zero(t, gw.count("ListConnections"))
	assert.Empty(t, in.Candidates())

	in.Open(context.Background())
	assert.Equal(t, 1, gw.count("ListConnections"))
	assert.Len(t, in.Candidates(), 1)

	in.Close()
	assert.Empty(t, in.Candidates())
	assert.Equal(t, 1, gw.count("ListConnections"))
}

func TestControllerSelect(t *testing.T) {
	gw := newFakeGateway()
	gw.addConversation("c1", "ada", "bob")
	gw.addConversation("c2", "ada", "cy")

	c := NewController(gw, "ada", Options{})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, "c1"))
	require.NoError(t, c.Select(ctx, "c1"))
	assert.Equal(t, 1, gw.count("ListMessages"), "reselecting is a no-op")
	assert.Equal(t, "c1", c.Selected())

	require.NoError(t, c.Select(ctx, "c2"))
	assert.Equal(t, "c2", c.Thread().Snapshot().ConversationID)

	require.NoError(t, c.Select(ctx, ""))
	assert.Equal(t, ThreadIdle, c.Thread().Snapshot().State)
	assert.Zero(t, gw.liveSubs())
}

func TestControllerConcurrentSelectsAgree(t *testing.T) {
	gw := newFakeGateway()
	gw.addConversation("c1", "ada", "bob")
	gw.addConversation("c2", "ada", "cy")

	c := NewController(gw, "ada", Options{})
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		require.NoError(t, c.Select(ctx, ""))

		var wg sync.WaitGroup
		for _, id := range []string{"c1", "c2"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				assert.NoError(t, c.Select(ctx, id))
			}(id)
		}
		wg.Wait()

		require.Equal(t, c.Selected(), c.Thread().Snapshot().ConversationID, "iteration %d", i)
	}
	assert.Equal(t, 1, gw.liveSubs())
}

func TestControllerPublishesUpdates(t *testing.T) {
	gw := newFakeGateway()
	gw.addConversation("c1", "ada", "bob")

	c := NewController(gw, "ada", Options{})
	require.NoError(t, c.Select(context.Background(), "c1"))

	kinds := map[UpdateKind]bool{}
	for len(c.Updates()) > 0 {
		u := <-c.Updates()
		kinds[u.Kind] = true
	}
	assert.True(t, kinds[UpdateSelection])
	assert.True(t, kinds[UpdateThread])

	c.Close()
	_, ok := <-c.Updates()
	assert.False(t, ok)
	assert.ErrorIs(t, c.Select(context.Background(), "c2"), ErrClosed)
}
