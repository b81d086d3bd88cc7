package messaging

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/pkg/logger"
)

const (
	defaultFetchTimeout = 10 * time.Second
	updateBuffer        = 64
)

// Options configures the messaging components.
type Options struct {
	// FetchTimeout bounds each gateway read issued by a component.
	FetchTimeout time.Duration
	Logger       *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = defaultFetchTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// UpdateKind names the part of the chat page that changed.
type UpdateKind string

const (
	UpdateDirectory UpdateKind = "directory"
	UpdateThread    UpdateKind = "thread"
	UpdateInitiator UpdateKind = "initiator"
	UpdateSelection UpdateKind = "selection"
)

// Update tells a listener that part of the page changed.
type Update struct {
	Kind UpdateKind `json:"kind"`
	At   time.Time  `json:"at"`
}

// Controller owns one viewer's chat page: the selected conversation, the refresh
// counter, and the directory, thread and initiator.
type Controller struct {
	viewerID  string
	logger    *logger.Logger
	directory *Directory
	thread    *Thread
	initiator *Initiator
	updates   chan Update

	// selectMu serializes Select so the selection and the open thread agree.
	selectMu sync.Mutex

	mu       sync.Mutex
	selected string
	refresh  uint64
	closed   bool
}

// NewController wires the chat components for viewerID against gw.
func NewController(gw Gateway, viewerID string, opts Options) *Controller {
	opts = opts.withDefaults()
	c := &Controller{
		viewerID: viewerID,
		logger:   opts.Logger.Component("controller").WithViewer(viewerID),
		updates:  make(chan Update, updateBuffer),
	}
	c.directory = NewDirectory(gw, viewerID, opts, c.publish)
	c.thread = NewThread(gw, viewerID, opts, c.publish)
	c.initiator = NewInitiator(gw, viewerID, opts, c.publish, func(ctx context.Context, conv *model.Conversation) {
		c.logger.Info("conversation started", zap.String("conversation_id", conv.ID))
		c.BumpRefresh(ctx)
	})
	return c
}

// Start starts the directory.
func (c *Controller) Start(ctx context.Context) error {
	return c.directory.Start(ctx)
}

// Select makes conversationID the selected conversation and opens it in the thread.
// Selecting the current conversation again does nothing.
func (c *Controller) Select(ctx context.Context, conversationID string) error {
	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.selected == conversationID {
		c.mu.Unlock()
		return nil
	}
	c.selected = conversationID
	c.mu.Unlock()
	c.publish(UpdateSelection)

	return c.thread.Open(ctx, conversationID)
}

// Selected returns the selected conversation id, or "".
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// BumpRefresh increments the refresh counter and re-queries the directory.
func (c *Controller) BumpRefresh(ctx context.Context) uint64 {
	c.mu.Lock()
	c.refresh++
	n := c.refresh
	c.mu.Unlock()

	c.directory.Refresh(ctx, TriggerCounter)
	return n
}

// RefreshCounter returns the refresh counter.
func (c *Controller) RefreshCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh
}

func (c *Controller) Directory() *Directory { return c.directory }

func (c *Controller) Thread() *Thread { return c.thread }

func (c *Controller) Initiator() *Initiator { return c.initiator }

// Updates delivers change notices. Notices are dropped while the buffer is full.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

func (c *Controller) publish(kind UpdateKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.updates <- Update{Kind: kind, At: time.Now().UTC()}:
	default:
	}
}

// Close shuts down all components and closes the update channel.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.updates)
	c.mu.Unlock()

	c.thread.Close()
	c.directory.Close()
	c.initiator.Close()
}
