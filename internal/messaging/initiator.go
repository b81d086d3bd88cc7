package messaging

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/pkg/logger"
	"github.com/capitalize-ai/proconnect/pkg/metrics"
)

// InitiatorSnapshot is a point-in-time copy of the initiator.
type InitiatorSnapshot struct {
	Open       bool            `json:"open"`
	Loading    bool            `json:"loading"`
	Starting   bool            `json:"starting"`
	Filter     string          `json:"filter"`
	Candidates []model.Profile `json:"candidates"`
	Error      string          `json:"error,omitempty"`
}

// Initiator lets the viewer pick one of their accepted connections and obtain the
// conversation with them.
type Initiator struct {
	gw        Gateway
	viewerID  string
	opts      Options
	logger    *logger.Logger
	notify    func(UpdateKind)
	onCreated func(context.Context, *model.Conversation)

	mu         sync.Mutex
	open       bool
	gen        uint64
	loading    bool
	candidates []model.Profile
	filter     string
	starting   bool
	lastErr    error
}

// NewInitiator creates a closed initiator. onCreated runs after each successful start.
func NewInitiator(gw Gateway, viewerID string, opts Options, notify func(UpdateKind), onCreated func(context.Context, *model.Conversation)) *Initiator {
	opts = opts.withDefaults()
	if notify == nil {
		notify = func(UpdateKind) {}
	}
	if onCreated == nil {
		onCreated = func(context.Context, *model.Conversation) {}
	}
	return &Initiator{
		gw:        gw,
		viewerID:  viewerID,
		opts:      opts,
		logger:    opts.Logger.Component("initiator").WithViewer(viewerID),
		notify:    notify,
		onCreated: onCreated,
	}
}

// Open shows the initiator and loads the viewer's accepted connections.
func (in *Initiator) Open(ctx context.Context) {
	in.mu.Lock()
	in.open = true
	in.gen++
	gen := in.gen
	in.lastErr = nil
	in.loading = in.viewerID != ""
	in.mu.Unlock()
	in.notify(UpdateInitiator)

	if in.viewerID == "" {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, in.opts.FetchTimeout)
	defer cancel()
	conns, err := in.gw.ListConnections(fetchCtx, in.viewerID, model.ConnectionAccepted)

	in.mu.Lock()
	if gen != in.gen || !in.open {
		in.mu.Unlock()
		metrics.StaleResultsDiscarded.WithLabelValues("initiator").Inc()
		return
	}
	in.loading = false
	if err != nil {
		in.mu.Unlock()
		in.logger.Warn("connection fetch failed", zap.Error(err))
		metrics.BackgroundFetchFailures.WithLabelValues("initiator").Inc()
		in.notify(UpdateInitiator)
		return
	}

	in.candidates = in.candidates[:0]
	for i := range conns {
		p := conns[i].Counterparty(in.viewerID)
		if p == nil {
			in.logger.Debug("connection without profile", zap.String("profile_id", conns[i].CounterpartyID(in.viewerID)))
			continue
		}
		in.candidates = append(in.candidates, *p)
	}
	in.mu.Unlock()
	in.notify(UpdateInitiator)
}

// Close hides the initiator and forgets its connections and filter.
func (in *Initiator) Close() {
	in.mu.Lock()
	in.closeLocked()
	in.mu.Unlock()
	in.notify(UpdateInitiator)
}

func (in *Initiator) closeLocked() {
	in.open = false
	in.gen++
	in.loading = false
	in.candidates = nil
	in.filter = ""
	in.lastErr = nil
}

// SetFilter sets the candidate search term.
func (in *Initiator) SetFilter(q string) {
	in.mu.Lock()
	in.filter = q
	in.mu.Unlock()
	in.notify(UpdateInitiator)
}

// Candidates returns the connections matching the current filter.
func (in *Initiator) Candidates() []model.Profile {
	in.mu.Lock()
	defer in.mu.Unlock()
	return FilterCandidates(in.candidates, in.filter)
}

// Start obtains the conversation with profileID, who must be a listed candidate.
// On failure the initiator stays open with its filter intact. A second Start while
// one is outstanding returns ErrStartInFlight.
func (in *Initiator) Start(ctx context.Context, profileID string) (*model.Conversation, error) {
	in.mu.Lock()
	if !in.open {
		in.mu.Unlock()
		return nil, ErrInitiatorClosed
	}
	if in.starting {
		in.mu.Unlock()
		return nil, ErrStartInFlight
	}
	found := false
	for _, p := range in.candidates {
		if p.ID == profileID {
			found = true
			break
		}
	}
	if !found {
		in.mu.Unlock()
		return nil, ErrNotConnected
	}
	in.starting = true
	in.lastErr = nil
	in.mu.Unlock()
	in.notify(UpdateInitiator)

	conv, err := in.gw.GetOrCreateConversation(ctx, in.viewerID, profileID)
	if err != nil {
		in.mu.Lock()
		in.starting = false
		in.lastErr = err
		in.mu.Unlock()
		in.logger.Warn("start conversation failed", zap.String("participant_id", profileID), zap.Error(err))
		in.notify(UpdateInitiator)
		return nil, err
	}

	in.mu.Lock()
	in.starting = false
	in.closeLocked()
	in.mu.Unlock()
	in.notify(UpdateInitiator)

	in.onCreated(ctx, conv)
	return conv, nil
}

// Snapshot returns a copy of the initiator's state.
func (in *Initiator) Snapshot() InitiatorSnapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	snap := InitiatorSnapshot{
		Open:       in.open,
		Loading:    in.loading,
		Starting:   in.starting,
		Filter:     in.filter,
		Candidates: FilterCandidates(in.candidates, in.filter),
	}
	if in.lastErr != nil {
		snap.Error = in.lastErr.Error()
	}
	return snap
}

// FilterCandidates returns the profiles whose first name, last name or title contains
// q, ignoring case. An empty q matches all.
func FilterCandidates(profiles []model.Profile, q string) []model.Profile {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if q == "" ||
			strings.Contains(strings.ToLower(p.FirstName), q) ||
			strings.Contains(strings.ToLower(p.LastName), q) ||
			strings.Contains(strings.ToLower(p.Title), q) {
			out = append(out, p)
		}
	}
	return out
}
