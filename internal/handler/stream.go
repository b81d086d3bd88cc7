package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/messaging"
	"github.com/capitalize-ai/proconnect/internal/middleware"
	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/internal/service"
	"github.com/capitalize-ai/proconnect/pkg/logger"
	"github.com/capitalize-ai/proconnect/pkg/metrics"
)

const defaultHeartbeat = 30 * time.Second

// StreamHandler pushes chat page changes over server-sent events.
type StreamHandler struct {
	chat      *service.ChatService
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler. A non-positive heartbeat uses 30s.
func NewStreamHandler(chat *service.ChatService, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &StreamHandler{
		chat:      chat,
		heartbeat: heartbeat,
		logger:    log.Component("stream_handler"),
	}
}

// Stream handles GET /api/v1/chat/events
//
// The stream opens with a "connected" event and a "snapshot" of the page, then
// sends one event per change named after the changed part of the page.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID := middleware.GetUserID(ctx)

	sess, err := h.chat.Session(ctx, viewerID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to open chat session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	updates, stop := sess.Listen()
	defer stop()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	ctrl := sess.Controller()
	sendSSEEvent(w, flusher, "connected", map[string]string{
		"viewer_id": viewerID,
	})
	sendSSEEvent(w, flusher, "snapshot", pageState(ctrl))

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("viewer_id", viewerID))
			return

		case u, ok := <-updates:
			if !ok {
				sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
					Code:    "session_closed",
					Message: "chat session ended",
				})
				return
			}
			if err := sendSSEEvent(w, flusher, string(u.Kind), updatePayload(ctrl, u.Kind)); err != nil {
				h.logger.Warn("failed to write SSE event", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

// updatePayload returns the current state of the part of the page named by kind.
func updatePayload(c *messaging.Controller, kind messaging.UpdateKind) interface{} {
	switch kind {
	case messaging.UpdateDirectory:
		return directoryResponse(c)
	case messaging.UpdateThread:
		return c.Thread().Snapshot()
	case messaging.UpdateInitiator:
		return c.Initiator().Snapshot()
	default:
		return map[string]string{"selected": c.Selected()}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
