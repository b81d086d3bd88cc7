package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/internal/store"
	"github.com/capitalize-ai/proconnect/pkg/logger"
)

// NetworkGateway is the subset of the data gateway used by network operations.
type NetworkGateway interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ListConnections(ctx context.Context, profileID string, status model.ConnectionStatus) ([]model.Connection, error)
	CountConnections(ctx context.Context, profileID string, status model.ConnectionStatus) (int64, error)
	RequestConnection(ctx context.Context, requesterID, addresseeID, connectionType string) (*model.Connection, error)
	RespondToConnection(ctx context.Context, connectionID, responderID string, status model.ConnectionStatus) (*model.Connection, error)
	CancelConnection(ctx context.Context, connectionID, requesterID string) error
	FindConnectionPath(ctx context.Context, startID, targetID string, maxDepth int) (*model.ConnectionPath, error)
}

// NetworkService handles profiles and connections.
type NetworkService struct {
	gw           NetworkGateway
	pathMaxDepth int
	logger       *logger.Logger
}

// NewNetworkService creates a network service.
func NewNetworkService(gw NetworkGateway, pathMaxDepth int, log *logger.Logger) *NetworkService {
	if pathMaxDepth <= 0 {
		pathMaxDepth = 6
	}
	return &NetworkService{
		gw:           gw,
		pathMaxDepth: pathMaxDepth,
		logger:       log.Component("network"),
	}
}

// Profile returns a profile by id.
func (s *NetworkService) Profile(ctx context.Context, id string) (*model.Profile, error) {
	return s.gw.GetProfile(ctx, id)
}

// Connections lists the viewer's connections. An empty status lists all of them.
func (s *NetworkService) Connections(ctx context.Context, viewerID string, status model.ConnectionStatus) ([]model.Connection, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", store.ErrInvalidArgument, status)
	}
	conns, err := s.gw.ListConnections(ctx, viewerID, status)
	if err != nil {
		return nil, err
	}
	if conns == nil {
		conns = []model.Connection{}
	}
	return conns, nil
}

// CountAccepted counts the viewer's accepted connections.
func (s *NetworkService) CountAccepted(ctx context.Context, viewerID string) (int64, error) {
	return s.gw.CountConnections(ctx, viewerID, model.ConnectionAccepted)
}

// Request sends a connection request from the viewer.
func (s *NetworkService) Request(ctx context.Context, viewerID string, req *model.ConnectionRequest) (*model.Connection, error) {
	conn, err := s.gw.RequestConnection(ctx, viewerID, req.AddresseeID, req.ConnectionType)
	if err != nil {
		return nil, err
	}
	s.logger.Info("connection requested",
		zap.String("connection_id", conn.ID),
		zap.String("requester_id", viewerID),
		zap.String("addressee_id", req.AddresseeID),
	)
	return conn, nil
}

// Respond accepts or declines a request addressed to the viewer.
func (s *NetworkService) Respond(ctx context.Context, viewerID, connectionID string, status model.ConnectionStatus) (*model.Connection, error) {
	if status != model.ConnectionAccepted && status != model.ConnectionDeclined {
		return nil, fmt.Errorf("%w: status must be accepted or declined", store.ErrInvalidArgument)
	}
	conn, err := s.gw.RespondToConnection(ctx, connectionID, viewerID, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("connection answered",
		zap.String("connection_id", connectionID),
		zap.String("status", string(status)),
	)
	return conn, nil
}

// Cancel withdraws a pending request the viewer sent.
func (s *NetworkService) Cancel(ctx context.Context, viewerID, connectionID string) error {
	return s.gw.CancelConnection(ctx, connectionID, viewerID)
}

// Path finds the shortest chain of accepted connections from the viewer to targetID.
func (s *NetworkService) Path(ctx context.Context, viewerID, targetID string) (*model.ConnectionPath, error) {
	return s.gw.FindConnectionPath(ctx, viewerID, targetID, s.pathMaxDepth)
}
