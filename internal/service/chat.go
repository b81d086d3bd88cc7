// Package service provides the per-viewer chat sessions and the network operations
// behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/messaging"
	"github.com/capitalize-ai/proconnect/pkg/logger"
	"github.com/capitalize-ai/proconnect/pkg/metrics"
)

// ErrServiceClosed is returned after Close.
var ErrServiceClosed = errors.New("chat service closed")

const listenerBuffer = 16

// ChatConfig configures the chat service.
type ChatConfig struct {
	IdleTimeout  time.Duration
	FetchTimeout time.Duration
}

// ChatService keeps one chat session per viewer.
type ChatService struct {
	gw     messaging.Gateway
	cfg    ChatConfig
	logger *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewChatService creates a chat service.
func NewChatService(gw messaging.Gateway, cfg ChatConfig, log *logger.Logger) *ChatService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 15 * time.Minute
	}
	return &ChatService{
		gw:       gw,
		cfg:      cfg,
		logger:   log.Component("chat"),
		now:      time.Now,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
}

// Session is one viewer's chat page.
type Session struct {
	viewerID   string
	controller *messaging.Controller
	now        func() time.Time

	mu        sync.Mutex
	listeners map[chan messaging.Update]struct{}
	lastUsed  time.Time
}

// Controller returns the session's page controller.
func (s *Session) Controller() *messaging.Controller {
	return s.controller
}

// Listen registers a listener for page updates. The returned function unregisters it.
// The channel is closed when the session ends.
func (s *Session) Listen() (<-chan messaging.Update, func()) {
	ch := make(chan messaging.Update, listenerBuffer)
	s.mu.Lock()
	if s.listeners == nil {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.listeners[ch]; ok {
				delete(s.listeners, ch)
				close(ch)
			}
			s.lastUsed = s.now()
			s.mu.Unlock()
		})
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// idle reports whether the session has no listeners and has not been used since cutoff.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners) == 0 && s.lastUsed.Before(cutoff)
}

// fanOut copies controller updates to every listener until the controller closes.
func (s *Session) fanOut() {
	for u := range s.controller.Updates() {
		s.mu.Lock()
		for ch := range s.listeners {
			select {
			case ch <- u:
			default:
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	for ch := range s.listeners {
		close(ch)
	}
	s.listeners = nil
	s.mu.Unlock()
}

// Session returns viewerID's session, creating and starting it on first use.
func (c *ChatService) Session(ctx context.Context, viewerID string) (*Session, error) {
	now := c.now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrServiceClosed
	}
	if s, ok := c.sessions[viewerID]; ok {
		c.mu.Unlock()
		s.touch(now)
		return s, nil
	}
	c.mu.Unlock()

	ctrl := messaging.NewController(c.gw, viewerID, messaging.Options{
		FetchTimeout: c.cfg.FetchTimeout,
		Logger:       c.logger,
	})
	if err := ctrl.Start(ctx); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("failed to start chat session: %w", err)
	}
	s := &Session{
		viewerID:   viewerID,
		controller: ctrl,
		now:        c.now,
		listeners:  make(map[chan messaging.Update]struct{}),
		lastUsed:   now,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ctrl.Close()
		return nil, ErrServiceClosed
	}
	if existing, ok := c.sessions[viewerID]; ok {
		c.mu.Unlock()
		ctrl.Close()
		existing.touch(now)
		return existing, nil
	}
	c.sessions[viewerID] = s
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		s.fanOut()
	}()

	metrics.ChatSessionsActive.Inc()
	c.logger.Info("chat session started", zap.String("viewer_id", viewerID))
	return s, nil
}

// Start runs the idle session reaper until ctx is done or the service is closed.
func (c *ChatService) Start(ctx context.Context) {
	interval := c.cfg.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				if n := c.Reap(); n > 0 {
					c.logger.Debug("reaped idle chat sessions", zap.Int("count", n))
				}
			}
		}
	}()
}

// Reap closes sessions without listeners that have been idle longer than the idle
// timeout and returns how many were closed.
func (c *ChatService) Reap() int {
	cutoff := c.now().Add(-c.cfg.IdleTimeout)

	c.mu.Lock()
	var expired []*Session
	for id, s := range c.sessions {
		if s.idle(cutoff) {
			expired = append(expired, s)
			delete(c.sessions, id)
		}
	}
	c.mu.Unlock()

	for _, s := range expired {
		c.endSession(s)
	}
	return len(expired)
}

func (c *ChatService) endSession(s *Session) {
	s.controller.Close()
	metrics.ChatSessionsActive.Dec()
	c.logger.Info("chat session ended", zap.String("viewer_id", s.viewerID))
}

// Sessions returns the number of live sessions.
func (c *ChatService) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close ends every session and stops the reaper.
func (c *ChatService) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.stop)
	sessions := c.sessions
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()

	for _, s := range sessions {
		c.endSession(s)
	}
	c.wg.Wait()
}
