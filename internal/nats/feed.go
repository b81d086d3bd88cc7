package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/pkg/logger"
	"github.com/capitalize-ai/proconnect/pkg/metrics"
)

const (
	// StreamName is the name of the table change stream.
	StreamName = "CHANGES"

	// SubjectPrefix is the prefix for all change subjects.
	SubjectPrefix = "changes"
)

// ChangeFeed publishes table change events and delivers them to filtered subscribers.
type ChangeFeed struct {
	client *Client
	logger *logger.Logger
}

// NewChangeFeed creates a change feed on top of a connected client.
func NewChangeFeed(client *Client, log *logger.Logger) *ChangeFeed {
	return &ChangeFeed{client: client, logger: log.Component("feed")}
}

// EnsureStream ensures the change stream exists with proper configuration.
func (f *ChangeFeed) EnsureStream(ctx context.Context) error {
	js := f.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Duplicates:  2 * time.Minute,
		Description: "Row change events for all tables",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Subject returns the subject a change of the given kind on table is published to.
// EventAny yields a wildcard subject suitable for subscribing.
func Subject(table model.Table, kind model.EventKind) string {
	token := "*"
	if kind != model.EventAny && kind != "" {
		token = strings.ToLower(string(kind))
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, table, token)
}

// Publish writes a change event to the stream and returns its stream sequence.
func (f *ChangeFeed) Publish(ctx context.Context, event *model.ChangeEvent) (uint64, error) {
	if event.Type == model.EventAny || event.Type == "" {
		return 0, fmt.Errorf("cannot publish change event of type %q", event.Type)
	}
	if event.ID == "" {
		event.ID = uuid.Must(uuid.NewV7()).String()
	}
	if event.CommitTimestamp.IsZero() {
		event.CommitTimestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := f.client.JetStream().Publish(ctx, Subject(event.Table, event.Type), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.ChangeEventsPublished.WithLabelValues(string(event.Table), string(event.Type)).Inc()
	return ack.Sequence, nil
}

// Handler receives matching change events. Calls for one subscription are serialized
// in arrival order.
type Handler func(model.ChangeEvent)

// Subscribe registers handler for changes of kind on table that satisfy filter.
func (f *ChangeFeed) Subscribe(table model.Table, kind model.EventKind, filter model.Filter, handler Handler) (*Subscription, error) {
	log := f.logger.With(zap.String("table", string(table)), zap.String("kind", string(kind)))

	sub, err := f.client.Conn().Subscribe(Subject(table, kind), func(msg *nats.Msg) {
		var event model.ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Warn("dropping undecodable change event", zap.Error(err))
			return
		}
		if !filter.Matches(&event) {
			return
		}
		metrics.ChangeEventsDelivered.WithLabelValues(string(table)).Inc()
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s changes: %w", table, err)
	}

	// Interest must be registered before the caller issues its initial fetch.
	if err := f.client.Conn().Flush(); err != nil {
		log.Warn("flush after subscribe failed", zap.Error(err))
	}

	metrics.SubscriptionsActive.Inc()
	return &Subscription{sub: sub}, nil
}

// Subscription is a live change subscription.
type Subscription struct {
	sub  *nats.Subscription
	once sync.Once
	err  error
}

// Cancel ends delivery. It is safe to call more than once.
func (s *Subscription) Cancel() error {
	s.once.Do(func() {
		s.err = s.sub.Unsubscribe()
		metrics.SubscriptionsActive.Dec()
	})
	return s.err
}
