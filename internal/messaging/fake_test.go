package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capitalize-ai/proconnect/internal/model"
)

// fakeGateway is an in-memory Gateway. Change events are only delivered when a test
// calls emit, so tests control interleavings exactly.
type fakeGateway struct {
	mu            sync.Mutex
	profiles      map[string]model.Profile
	conversations []model.Conversation
	messages      map[string][]model.Message
	connections   []model.Connection
	subs          []*fakeSub
	calls         map[string]int
	log           []string
	clock         time.Time
	seq           int

	errs map[string]error

	// Hooks run after the gateway has read its data and before it returns.
	listConversationsHook func(call int)
	listMessagesHook      func(conversationID string)
	insertHook            func()
	getOrCreateHook       func()
}

type fakeSub struct {
	table     model.Table
	kind      model.EventKind
	filter    model.Filter
	handler   func(model.ChangeEvent)
	label     string
	cancelled bool
	gw        *fakeGateway
}

func (s *fakeSub) Cancel() error {
	s.gw.mu.Lock()
	defer s.gw.mu.Unlock()
	if !s.cancelled {
		s.cancelled = true
		s.gw.log = append(s.gw.log, "cancel:"+s.label)
	}
	return nil
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		profiles: map[string]model.Profile{},
		messages: map[string][]model.Message{},
		calls:    map[string]int{},
		errs:     map[string]error{},
		clock:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeGateway) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeGateway) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%03d", prefix, f.seq)
}

func (f *fakeGateway) addProfile(id, first, last, title string) model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := model.Profile{ID: id, FirstName: first, LastName: last, Title: title, UserType: model.UserTypeProfessional}
	f.profiles[id] = p
	return p
}

func (f *fakeGateway) addConnection(a, b string, status model.ConnectionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections = append(f.connections, model.Connection{
		ID:          f.nextID("conn"),
		RequesterID: a,
		AddresseeID: b,
		Status:      status,
	})
}

func (f *fakeGateway) addConversation(id, a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = append(f.conversations, model.Conversation{
		ID:             id,
		Participant1ID: a,
		Participant2ID: b,
		PairKey:        model.MakePairKey(a, b),
		CreatedAt:      f.tick(),
	})
}

// addMessage stores a message without emitting an event.
func (f *fakeGateway) addMessage(conversationID, senderID, content string, read bool) model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeMessageLocked(conversationID, senderID, content, read)
}

func (f *fakeGateway) storeMessageLocked(conversationID, senderID, content string, read bool) model.Message {
	now := f.tick()
	m := model.Message{
		ID:             f.nextID("msg"),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    model.MessageTypeText,
		CreatedAt:      now,
	}
	if read {
		m.ReadAt = &now
	}
	f.messages[conversationID] = append(f.messages[conversationID], m)
	for i := range f.conversations {
		if f.conversations[i].ID == conversationID {
			f.conversations[i].LastMessageAt = now
		}
	}
	return m
}

func (f *fakeGateway) record(op string) int {
	f.calls[op]++
	return f.calls[op]
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) opLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *fakeGateway) setErr(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeGateway) withProfile(id string) *model.Profile {
	p, ok := f.profiles[id]
	if !ok {
		return nil
	}
	return &p
}

// ListConversations returns every stored conversation so the caller's own
// participant filtering is exercised.
func (f *fakeGateway) ListConversations(_ context.Context, viewerID string) ([]model.Conversation, error) {
	f.mu.Lock()
	call := f.record("ListConversations")
	if err := f.errs["ListConversations"]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	out := make([]model.Conversation, len(f.conversations))
	for i, c := range f.conversations {
		c.Participant1 = f.withProfile(c.Participant1ID)
		c.Participant2 = f.withProfile(c.Participant2ID)
		c.Messages = append([]model.Message(nil), f.messages[c.ID]...)
		out[i] = c
	}
	hook := f.listConversationsHook
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return out, nil
}

func (f *fakeGateway) ListMessages(_ context.Context, conversationID string) ([]model.Message, error) {
	f.mu.Lock()
	f.record("ListMessages")
	if err := f.errs["ListMessages"]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	out := append([]model.Message(nil), f.messages[conversationID]...)
	for i := range out {
		out[i].Sender = f.withProfile(out[i].SenderID)
	}
	hook := f.listMessagesHook
	f.mu.Unlock()

	if hook != nil {
		hook(conversationID)
	}
	return out, nil
}

func (f *fakeGateway) GetMessage(_ context.Context, id string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetMessage")
	for _, msgs := range f.messages {
		for _, m := range msgs {
			if m.ID == id {
				m.Sender = f.withProfile(m.SenderID)
				return &m, nil
			}
		}
	}
	return nil, fmt.Errorf("message %s: not found", id)
}

func (f *fakeGateway) InsertMessage(_ context.Context, msg *model.Message) (*model.Message, error) {
	f.mu.Lock()
	f.record("InsertMessage")
	hook := f.insertHook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["InsertMessage"]; err != nil {
		return nil, err
	}
	m := f.storeMessageLocked(msg.ConversationID, msg.SenderID, msg.Content, false)
	return &m, nil
}

func (f *fakeGateway) ListConnections(_ context.Context, profileID string, status model.ConnectionStatus) ([]model.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListConnections")
	if err := f.errs["ListConnections"]; err != nil {
		return nil, err
	}
	var out []model.Connection
	for _, c := range f.connections {
		if !c.Involves(profileID) || (status != "" && c.Status != status) {
			continue
		}
		c.Requester = f.withProfile(c.RequesterID)
		c.Addressee = f.withProfile(c.AddresseeID)
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeGateway) GetOrCreateConversation(_ context.Context, user1ID, user2ID string) (*model.Conversation, error) {
	f.mu.Lock()
	hook := f.getOrCreateHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetOrCreateConversation")
	f.log = append(f.log, "get_or_create:"+user1ID+","+user2ID)
	if err := f.errs["GetOrCreateConversation"]; err != nil {
		return nil, err
	}
	key := model.MakePairKey(user1ID, user2ID)
	for _, c := range f.conversations {
		if c.PairKey == key {
			return &c, nil
		}
	}
	c := model.Conversation{
		ID:             f.nextID("conv"),
		Participant1ID: user1ID,
		Participant2ID: user2ID,
		PairKey:        key,
		CreatedAt:      f.tick(),
	}
	c.LastMessageAt = c.CreatedAt
	f.conversations = append(f.conversations, c)
	return &c, nil
}

func (f *fakeGateway) MarkMessagesAsRead(_ context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkMessagesAsRead")
	if err := f.errs["MarkMessagesAsRead"]; err != nil {
		return err
	}
	now := f.tick()
	msgs := f.messages[conversationID]
	for i := range msgs {
		if msgs[i].IsUnreadFor(userID) {
			msgs[i].ReadAt = &now
		}
	}
	return nil
}

func (f *fakeGateway) Subscribe(table model.Table, kind model.EventKind, filter model.Filter, handler func(model.ChangeEvent)) (model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Subscribe")
	label := string(table)
	for _, p := range filter {
		label += ":" + p.Value
	}
	f.log = append(f.log, "subscribe:"+label)
	sub := &fakeSub{table: table, kind: kind, filter: filter, handler: handler, label: label, gw: f}
	f.subs = append(f.subs, sub)
	return sub, nil
}

// emit delivers e synchronously to every live matching subscription.
func (f *fakeGateway) emit(e model.ChangeEvent) {
	f.mu.Lock()
	var targets []func(model.ChangeEvent)
	for _, s := range f.subs {
		if s.cancelled || s.table != e.Table {
			continue
		}
		if s.kind != model.EventAny && s.kind != e.Type {
			continue
		}
		if !s.filter.Matches(&e) {
			continue
		}
		targets = append(targets, s.handler)
	}
	f.mu.Unlock()

	for _, h := range targets {
		h(e)
	}
}

func (f *fakeGateway) liveSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if !s.cancelled {
			n++
		}
	}
	return n
}

func messageInserted(m model.Message) model.ChangeEvent {
	return model.ChangeEvent{
		Table: model.TableMessages,
		Type:  model.EventInsert,
		Record: map[string]any{
			"id":              m.ID,
			"conversation_id": m.ConversationID,
			"sender_id":       m.SenderID,
		},
	}
}

func conversationChanged(kind model.EventKind, id, a, b string) model.ChangeEvent {
	return model.ChangeEvent{
		Table: model.TableConversations,
		Type:  kind,
		Record: map[string]any{
			"id":               id,
			"participant_1_id": a,
			"participant_2_id": b,
		},
	}
}
