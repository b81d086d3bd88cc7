package messaging

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/pkg/logger"
	"github.com/capitalize-ai/proconnect/pkg/metrics"
)

// Refresh triggers.
const (
	TriggerInitial      = "initial"
	TriggerCounter      = "counter"
	TriggerConversation = "conversation"
	TriggerMessage      = "message"
	TriggerSelection    = "selection"
)

// Directory keeps the viewer's conversation list current.
type Directory struct {
	gw       Gateway
	viewerID string
	opts     Options
	logger   *logger.Logger
	notify   func(UpdateKind)

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64
	views   []model.ConversationView
	listed  map[string]struct{}
	loading bool
	subs    []model.Subscription
	closed  bool
}

// NewDirectory creates a directory for viewerID. notify may be nil.
func NewDirectory(gw Gateway, viewerID string, opts Options, notify func(UpdateKind)) *Directory {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	if notify == nil {
		notify = func(UpdateKind) {}
	}
	return &Directory{
		gw:       gw,
		viewerID: viewerID,
		opts:     opts,
		logger:   opts.Logger.Component("directory").WithViewer(viewerID),
		notify:   notify,
		ctx:      ctx,
		cancel:   cancel,
		listed:   map[string]struct{}{},
	}
}

// Start subscribes to conversation and message changes and performs the first query.
// An empty viewer id makes the directory a permanent no-op.
func (d *Directory) Start(ctx context.Context) error {
	if d.viewerID == "" {
		return nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if len(d.subs) > 0 {
		d.mu.Unlock()
		return nil
	}

	participant := model.Eq("participant_1_id", d.viewerID).Or("participant_2_id", d.viewerID)
	convSub, err := d.gw.Subscribe(model.TableConversations, model.EventAny, participant, func(model.ChangeEvent) {
		d.Refresh(d.ctx, TriggerConversation)
	})
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to subscribe to conversation changes: %w", err)
	}
	msgSub, err := d.gw.Subscribe(model.TableMessages, model.EventAny, nil, d.onMessage)
	if err != nil {
		_ = convSub.Cancel()
		d.mu.Unlock()
		return fmt.Errorf("failed to subscribe to message changes: %w", err)
	}
	d.subs = []model.Subscription{convSub, msgSub}
	d.mu.Unlock()

	d.Refresh(ctx, TriggerInitial)
	return nil
}

// onMessage refreshes only when the message belongs to a listed conversation.
func (d *Directory) onMessage(e model.ChangeEvent) {
	convID := e.Field("conversation_id")

	d.mu.Lock()
	_, ok := d.listed[convID]
	d.mu.Unlock()
	if !ok {
		return
	}
	d.Refresh(d.ctx, TriggerMessage)
}

// Refresh re-queries the conversation list. Failures keep the previous list.
func (d *Directory) Refresh(ctx context.Context, trigger string) {
	if d.viewerID == "" {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.gen++
	gen := d.gen
	d.loading = true
	d.mu.Unlock()
	d.notify(UpdateDirectory)

	metrics.DirectoryRefreshes.WithLabelValues(trigger).Inc()

	fetchCtx, cancel := context.WithTimeout(ctx, d.opts.FetchTimeout)
	defer cancel()
	convs, err := d.gw.ListConversations(fetchCtx, d.viewerID)

	d.mu.Lock()
	if gen != d.gen || d.closed {
		d.mu.Unlock()
		metrics.StaleResultsDiscarded.WithLabelValues("directory").Inc()
		return
	}
	d.loading = false
	if err != nil {
		d.mu.Unlock()
		d.logger.Warn("conversation refresh failed", zap.String("trigger", trigger), zap.Error(err))
		metrics.BackgroundFetchFailures.WithLabelValues("directory").Inc()
		d.notify(UpdateDirectory)
		return
	}

	d.views = DeriveViews(convs, d.viewerID)
	d.listed = make(map[string]struct{}, len(d.views))
	for _, v := range d.views {
		d.listed[v.ID] = struct{}{}
	}
	d.mu.Unlock()
	d.notify(UpdateDirectory)
}

// Conversations returns the current list.
func (d *Directory) Conversations() []model.ConversationView {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.ConversationView, len(d.views))
	copy(out, d.views)
	return out
}

// Has reports whether conversationID is in the current list.
func (d *Directory) Has(conversationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.listed[conversationID]
	return ok
}

// Loading reports whether a query is outstanding.
func (d *Directory) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// Close cancels the directory's subscriptions.
func (d *Directory) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()

	d.cancel()
	for _, sub := range subs {
		if err := sub.Cancel(); err != nil {
			d.logger.Debug("subscription cancel failed", zap.Error(err))
		}
	}
}
