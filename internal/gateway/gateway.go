// Package gateway exposes the relational store and the change feed as a single data
// gateway. Every committed write publishes the change events its rows produce.
package gateway

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/model"
	natsclient "github.com/capitalize-ai/proconnect/internal/nats"
	"github.com/capitalize-ai/proconnect/internal/store"
	"github.com/capitalize-ai/proconnect/pkg/logger"
	"github.com/capitalize-ai/proconnect/pkg/metrics"
)

const (
	tracerName     = "github.com/capitalize-ai/proconnect/internal/gateway"
	publishTimeout = 5 * time.Second
)

// Gateway composes the store and the change feed.
type Gateway struct {
	store  *store.Store
	feed   *natsclient.ChangeFeed
	tracer trace.Tracer
	logger *logger.Logger
}

// New creates a gateway.
func New(st *store.Store, feed *natsclient.ChangeFeed, log *logger.Logger) *Gateway {
	return &Gateway{
		store:  st,
		feed:   feed,
		tracer: otel.Tracer(tracerName),
		logger: log.Component("gateway"),
	}
}

func (g *Gateway) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ListConversations returns the viewer's conversations with participants and messages embedded.
func (g *Gateway) ListConversations(ctx context.Context, viewerID string) (convs []model.Conversation, err error) {
	ctx, span := g.start(ctx, "ListConversations", attribute.String("viewer.id", viewerID))
	defer func() { finish(span, err) }()

	convs, err = g.store.ListConversations(ctx, viewerID)
	span.SetAttributes(attribute.Int("conversations.count", len(convs)))
	return convs, err
}

// ListMessages returns a conversation's messages oldest first.
func (g *Gateway) ListMessages(ctx context.Context, conversationID string) (msgs []model.Message, err error) {
	ctx, span := g.start(ctx, "ListMessages", attribute.String("conversation.id", conversationID))
	defer func() { finish(span, err) }()

	return g.store.ListMessages(ctx, conversationID)
}

// GetMessage returns one message with its sender embedded.
func (g *Gateway) GetMessage(ctx context.Context, id string) (msg *model.Message, err error) {
	ctx, span := g.start(ctx, "GetMessage", attribute.String("message.id", id))
	defer func() { finish(span, err) }()

	return g.store.GetMessage(ctx, id)
}

// GetProfile returns a profile by id.
func (g *Gateway) GetProfile(ctx context.Context, id string) (p *model.Profile, err error) {
	ctx, span := g.start(ctx, "GetProfile", attribute.String("profile.id", id))
	defer func() { finish(span, err) }()

	return g.store.GetProfile(ctx, id)
}

// ListConnections returns a profile's connections, optionally narrowed to one status.
func (g *Gateway) ListConnections(ctx context.Context, profileID string, status model.ConnectionStatus) (conns []model.Connection, err error) {
	ctx, span := g.start(ctx, "ListConnections",
		attribute.String("profile.id", profileID),
		attribute.String("connection.status", string(status)),
	)
	defer func() { finish(span, err) }()

	return g.store.ListConnections(ctx, profileID, status)
}

// CountConnections counts a profile's connections with the given status.
func (g *Gateway) CountConnections(ctx context.Context, profileID string, status model.ConnectionStatus) (n int64, err error) {
	ctx, span := g.start(ctx, "CountConnections",
		attribute.String("profile.id", profileID),
		attribute.String("connection.status", string(status)),
	)
	defer func() { finish(span, err) }()

	return g.store.CountConnections(ctx, profileID, status)
}

// InsertMessage stores a message and advances its conversation.
func (g *Gateway) InsertMessage(ctx context.Context, msg *model.Message) (out *model.Message, err error) {
	ctx, span := g.start(ctx, "InsertMessage",
		attribute.String("conversation.id", msg.ConversationID),
		attribute.String("sender.id", msg.SenderID),
	)
	defer func() { finish(span, err) }()

	out, conv, err := g.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	g.publish(ctx, model.TableMessages, model.EventInsert, messageRow(out), nil)
	g.publish(ctx, model.TableConversations, model.EventUpdate, conversationRow(conv), nil)
	return out, nil
}

// GetOrCreateConversation returns the conversation between two connected profiles,
// creating it on first use.
func (g *Gateway) GetOrCreateConversation(ctx context.Context, user1ID, user2ID string) (conv *model.Conversation, err error) {
	ctx, span := g.start(ctx, "GetOrCreateConversation",
		attribute.String("user1.id", user1ID),
		attribute.String("user2.id", user2ID),
	)
	defer func() { finish(span, err) }()

	conv, created, err := g.store.GetOrCreateConversation(ctx, user1ID, user2ID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("conversation.created", created))
	metrics.ConversationsStarted.WithLabelValues(strconv.FormatBool(created)).Inc()

	if created {
		g.publish(ctx, model.TableConversations, model.EventInsert, conversationRow(conv), nil)
	}
	return conv, nil
}

// MarkMessagesAsRead marks every unread message from the other participant as read.
func (g *Gateway) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) (err error) {
	ctx, span := g.start(ctx, "MarkMessagesAsRead",
		attribute.String("conversation.id", conversationID),
		attribute.String("user.id", userID),
	)
	defer func() { finish(span, err) }()

	changed, err := g.store.MarkMessagesAsRead(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("messages.marked", len(changed)))

	for i := range changed {
		g.publish(ctx, model.TableMessages, model.EventUpdate, messageRow(&changed[i]), nil)
	}
	return nil
}

// RequestConnection creates a pending connection request.
func (g *Gateway) RequestConnection(ctx context.Context, requesterID, addresseeID, connectionType string) (conn *model.Connection, err error) {
	ctx, span := g.start(ctx, "RequestConnection",
		attribute.String("requester.id", requesterID),
		attribute.String("addressee.id", addresseeID),
	)
	defer func() { finish(span, err) }()

	conn, err = g.store.RequestConnection(ctx, requesterID, addresseeID, connectionType)
	if err != nil {
		return nil, err
	}
	g.publish(ctx, model.TableConnections, model.EventInsert, connectionRow(conn), nil)
	return conn, nil
}

// RespondToConnection accepts or declines a pending request addressed to responderID.
func (g *Gateway) RespondToConnection(ctx context.Context, connectionID, responderID string, status model.ConnectionStatus) (conn *model.Connection, err error) {
	ctx, span := g.start(ctx, "RespondToConnection",
		attribute.String("connection.id", connectionID),
		attribute.String("connection.status", string(status)),
	)
	defer func() { finish(span, err) }()

	conn, err = g.store.RespondToConnection(ctx, connectionID, responderID, status)
	if err != nil {
		return nil, err
	}
	g.publish(ctx, model.TableConnections, model.EventUpdate, connectionRow(conn), nil)
	return conn, nil
}

// CancelConnection withdraws a pending request sent by requesterID.
func (g *Gateway) CancelConnection(ctx context.Context, connectionID, requesterID string) (err error) {
	ctx, span := g.start(ctx, "CancelConnection", attribute.String("connection.id", connectionID))
	defer func() { finish(span, err) }()

	conn, err := g.store.CancelConnection(ctx, connectionID, requesterID)
	if err != nil {
		return err
	}
	g.publish(ctx, model.TableConnections, model.EventDelete, nil, connectionRow(conn))
	return nil
}

// FindConnectionPath returns the shortest chain of accepted connections between two profiles.
func (g *Gateway) FindConnectionPath(ctx context.Context, startID, targetID string, maxDepth int) (path *model.ConnectionPath, err error) {
	ctx, span := g.start(ctx, "FindConnectionPath",
		attribute.String("start.id", startID),
		attribute.String("target.id", targetID),
		attribute.Int("max_depth", maxDepth),
	)
	defer func() { finish(span, err) }()

	return g.store.FindConnectionPath(ctx, startID, targetID, maxDepth)
}

// Subscribe delivers changes of kind on table that satisfy filter to handler until
// the returned subscription is cancelled.
func (g *Gateway) Subscribe(table model.Table, kind model.EventKind, filter model.Filter, handler func(model.ChangeEvent)) (model.Subscription, error) {
	sub, err := g.feed.Subscribe(table, kind, filter, handler)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// publish emits a change event for a committed write. Failures are logged because
// the write itself has already succeeded.
func (g *Gateway) publish(ctx context.Context, table model.Table, kind model.EventKind, row, oldRow any) {
	event := &model.ChangeEvent{Table: table, Type: kind}

	var err error
	if row != nil {
		if event.Record, err = model.ToRecord(row); err != nil {
			g.logger.Error("failed to encode change record", zap.String("table", string(table)), zap.Error(err))
			return
		}
	}
	if oldRow != nil {
		if event.OldRecord, err = model.ToRecord(oldRow); err != nil {
			g.logger.Error("failed to encode change record", zap.String("table", string(table)), zap.Error(err))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if _, err := g.feed.Publish(ctx, event); err != nil {
		g.logger.Error("failed to publish change event",
			zap.String("table", string(table)),
			zap.String("type", string(kind)),
			zap.Error(err),
		)
	}
}

// Rows carried by change events hold the table's own columns only.

func messageRow(m *model.Message) *model.Message {
	row := *m
	row.Sender = nil
	return &row
}

func conversationRow(c *model.Conversation) *model.Conversation {
	row := *c
	row.Participant1 = nil
	row.Participant2 = nil
	row.Messages = nil
	return &row
}

func connectionRow(c *model.Connection) *model.Connection {
	row := *c
	row.Requester = nil
	row.Addressee = nil
	return &row
}
