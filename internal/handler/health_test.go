package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	tests := []struct {
		name   string
		feed   Pinger
		db     Pinger
		status int
		reason string
	}{
		{name: "all up", feed: up, db: up, status: http.StatusOK},
		{name: "feed down", feed: down, db: up, status: http.StatusServiceUnavailable, reason: "NATS unreachable"},
		{name: "database down", feed: up, db: down, status: http.StatusServiceUnavailable, reason: "database unreachable"},
		{name: "missing", feed: up, db: nil, status: http.StatusServiceUnavailable, reason: "database unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.feed, tt.db).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.reason, body["reason"])
		})
	}
}
