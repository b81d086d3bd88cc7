package messaging

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/pkg/logger"
	"github.com/capitalize-ai/proconnect/pkg/metrics"
)

// ThreadState is the load state of a thread.
type ThreadState int

const (
	ThreadIdle ThreadState = iota
	ThreadLoading
	ThreadReady
)

func (s ThreadState) String() string {
	switch s {
	case ThreadLoading:
		return "loading"
	case ThreadReady:
		return "ready"
	default:
		return "idle"
	}
}

// MarshalText renders the state by name.
func (s ThreadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *ThreadState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = ThreadIdle
	case "loading":
		*s = ThreadLoading
	case "ready":
		*s = ThreadReady
	default:
		return fmt.Errorf("unknown thread state %q", b)
	}
	return nil
}

// ThreadSnapshot is a point-in-time copy of a thread.
type ThreadSnapshot struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	State          ThreadState     `json:"state"`
	Messages       []model.Message `json:"messages"`
	Draft          string          `json:"draft"`
	Sending        bool            `json:"sending"`
	Error          string          `json:"error,omitempty"`
}

// Thread holds the message history of the selected conversation and the compose buffer.
type Thread struct {
	gw       Gateway
	viewerID string
	opts     Options
	logger   *logger.Logger
	notify   func(UpdateKind)

	mu             sync.Mutex
	ctx            context.Context
	cancel         context.CancelFunc
	gen            uint64
	conversationID string
	state          ThreadState
	messages       []model.Message
	draft          string
	sending        bool
	lastErr        error
	sub            model.Subscription
	closed         bool
}

// NewThread creates an idle thread for viewerID. notify may be nil.
func NewThread(gw Gateway, viewerID string, opts Options, notify func(UpdateKind)) *Thread {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	if notify == nil {
		notify = func(UpdateKind) {}
	}
	return &Thread{
		gw:       gw,
		viewerID: viewerID,
		opts:     opts,
		logger:   opts.Logger.Component("thread").WithViewer(viewerID),
		notify:   notify,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open switches the thread to conversationID. The previous subscription is cancelled
// before the new one is made. An empty id returns the thread to idle.
func (t *Thread) Open(ctx context.Context, conversationID string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}

	t.gen++
	gen := t.gen
	t.cancelSubLocked()
	t.conversationID = conversationID
	t.messages = nil
	t.draft = ""
	t.lastErr = nil

	if conversationID == "" {
		t.state = ThreadIdle
		t.mu.Unlock()
		t.notify(UpdateThread)
		return nil
	}
	t.state = ThreadLoading

	sub, err := t.gw.Subscribe(model.TableMessages, model.EventInsert, model.Eq("conversation_id", conversationID),
		func(e model.ChangeEvent) { t.onInsert(gen, e) })
	if err != nil {
		t.logger.Warn("message subscription failed", zap.String("conversation_id", conversationID), zap.Error(err))
		metrics.BackgroundFetchFailures.WithLabelValues("thread").Inc()
	} else {
		t.sub = sub
	}
	t.mu.Unlock()
	t.notify(UpdateThread)

	t.load(ctx, gen, conversationID)
	return nil
}

func (t *Thread) cancelSubLocked() {
	if t.sub == nil {
		return
	}
	if err := t.sub.Cancel(); err != nil {
		t.logger.Debug("subscription cancel failed", zap.Error(err))
	}
	t.sub = nil
}

// load fetches the history and enters Ready. Unread messages from others trigger one
// mark-as-read call.
func (t *Thread) load(ctx context.Context, gen uint64, conversationID string) {
	fetchCtx, cancel := context.WithTimeout(ctx, t.opts.FetchTimeout)
	defer cancel()
	msgs, err := t.gw.ListMessages(fetchCtx, conversationID)

	t.mu.Lock()
	if gen != t.gen || t.closed {
		t.mu.Unlock()
		metrics.StaleResultsDiscarded.WithLabelValues("thread").Inc()
		return
	}
	t.state = ThreadReady
	if err != nil {
		t.mu.Unlock()
		t.logger.Warn("message history fetch failed", zap.String("conversation_id", conversationID), zap.Error(err))
		metrics.BackgroundFetchFailures.WithLabelValues("thread").Inc()
		t.notify(UpdateThread)
		return
	}
	for _, m := range msgs {
		t.mergeLocked(m)
	}
	unread := t.hasUnreadLocked()
	t.mu.Unlock()
	t.notify(UpdateThread)

	if unread {
		t.markRead(ctx, gen, conversationID)
	}
}

// onInsert handles a message insert notification for the generation that subscribed.
func (t *Thread) onInsert(gen uint64, e model.ChangeEvent) {
	t.mu.Lock()
	if gen != t.gen || t.closed {
		t.mu.Unlock()
		metrics.StaleResultsDiscarded.WithLabelValues("thread").Inc()
		return
	}
	conversationID := t.conversationID
	t.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(t.ctx, t.opts.FetchTimeout)
	defer cancel()
	msg, err := t.gw.GetMessage(fetchCtx, e.Field("id"))
	if err != nil {
		t.logger.Warn("inserted message fetch failed", zap.String("message_id", e.Field("id")), zap.Error(err))
		metrics.BackgroundFetchFailures.WithLabelValues("thread").Inc()
		return
	}

	t.mu.Lock()
	if gen != t.gen || t.closed {
		t.mu.Unlock()
		metrics.StaleResultsDiscarded.WithLabelValues("thread").Inc()
		return
	}
	t.mergeLocked(*msg)
	t.mu.Unlock()
	t.notify(UpdateThread)

	if msg.IsUnreadFor(t.viewerID) {
		t.markRead(t.ctx, gen, conversationID)
	}
}

func (t *Thread) markRead(ctx context.Context, gen uint64, conversationID string) {
	metrics.MarkReadCalls.Inc()
	fetchCtx, cancel := context.WithTimeout(ctx, t.opts.FetchTimeout)
	defer cancel()
	if err := t.gw.MarkMessagesAsRead(fetchCtx, conversationID, t.viewerID); err != nil {
		t.logger.Warn("mark as read failed", zap.String("conversation_id", conversationID), zap.Error(err))
		metrics.BackgroundFetchFailures.WithLabelValues("thread").Inc()
		return
	}

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	for i := range t.messages {
		if t.messages[i].IsUnreadFor(t.viewerID) {
			t.messages[i].ReadAt = &now
		}
	}
	t.mu.Unlock()
	t.notify(UpdateThread)
}

// mergeLocked replaces the message with the same id or inserts it in creation order.
func (t *Thread) mergeLocked(m model.Message) {
	for i := range t.messages {
		if t.messages[i].ID == m.ID {
			t.messages[i] = m
			return
		}
	}
	t.messages = append(t.messages, m)
	if n := len(t.messages); n > 1 && t.messages[n-1].Before(&t.messages[n-2]) {
		slices.SortStableFunc(t.messages, func(a, b model.Message) int {
			switch {
			case a.Before(&b):
				return -1
			case b.Before(&a):
				return 1
			}
			return 0
		})
	}
}

func (t *Thread) hasUnreadLocked() bool {
	for i := range t.messages {
		if t.messages[i].IsUnreadFor(t.viewerID) {
			return true
		}
	}
	return false
}

// SetDraft replaces the compose buffer.
func (t *Thread) SetDraft(content string) {
	t.mu.Lock()
	t.draft = content
	t.mu.Unlock()
	t.notify(UpdateThread)
}

// Draft returns the compose buffer.
func (t *Thread) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft
}

// Submit sends the compose buffer. The buffer is cleared only when the insert succeeds.
func (t *Thread) Submit(ctx context.Context) (*model.Message, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if t.conversationID == "" {
		t.mu.Unlock()
		return nil, ErrNoConversation
	}
	draft := t.draft
	content := strings.TrimSpace(draft)
	if content == "" {
		t.mu.Unlock()
		return nil, ErrEmptyMessage
	}
	if t.sending {
		t.mu.Unlock()
		return nil, ErrSendInFlight
	}
	t.sending = true
	t.lastErr = nil
	gen := t.gen
	conversationID := t.conversationID
	t.mu.Unlock()
	t.notify(UpdateThread)

	msg, err := t.gw.InsertMessage(ctx, &model.Message{
		ConversationID: conversationID,
		SenderID:       t.viewerID,
		Content:        content,
		MessageType:    model.MessageTypeText,
	})

	t.mu.Lock()
	t.sending = false
	if err != nil {
		if gen == t.gen {
			t.lastErr = err
		}
		t.mu.Unlock()
		metrics.MessagesSent.WithLabelValues("failed").Inc()
		t.logger.Warn("send failed", zap.String("conversation_id", conversationID), zap.Error(err))
		t.notify(UpdateThread)
		return nil, err
	}
	if gen == t.gen {
		if t.draft == draft {
			t.draft = ""
		}
		t.mergeLocked(*msg)
	}
	t.mu.Unlock()
	metrics.MessagesSent.WithLabelValues("sent").Inc()
	t.notify(UpdateThread)
	return msg, nil
}

// Snapshot returns a copy of the thread's state.
func (t *Thread) Snapshot() ThreadSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := ThreadSnapshot{
		ConversationID: t.conversationID,
		State:          t.state,
		Messages:       slices.Clone(t.messages),
		Draft:          t.draft,
		Sending:        t.sending,
	}
	if snap.Messages == nil {
		snap.Messages = []model.Message{}
	}
	if t.lastErr != nil {
		snap.Error = t.lastErr.Error()
	}
	return snap
}

// Close cancels the subscription and any notification-driven fetches.
func (t *Thread) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.gen++
	t.cancelSubLocked()
	t.mu.Unlock()
	t.cancel()
}
