package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/capitalize-ai/proconnect/internal/model"
)

func preloadEndpoints(db *gorm.DB) *gorm.DB {
	return db.Preload("Requester").Preload("Addressee")
}

// CreateConnection inserts a connection row as given.
func (s *Store) CreateConnection(ctx context.Context, c *model.Connection) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = model.ConnectionPending
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: connection status %q", ErrInvalidArgument, c.Status)
	}
	if c.RequesterID == "" || c.AddresseeID == "" || c.RequesterID == c.AddresseeID {
		return fmt.Errorf("%w: connection needs two distinct profiles", ErrInvalidArgument)
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

// ListConnections returns the connections involving profileID, optionally
// restricted to one status, with both endpoint profiles embedded.
func (s *Store) ListConnections(ctx context.Context, profileID string, status model.ConnectionStatus) ([]model.Connection, error) {
	q := preloadEndpoints(s.db.WithContext(ctx)).
		Where("(requester_id = ? OR addressee_id = ?)", profileID, profileID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var conns []model.Connection
	if err := q.Order("created_at ASC").Order("id ASC").Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

// CountConnections counts the connections involving profileID with the given status.
func (s *Store) CountConnections(ctx context.Context, profileID string, status model.ConnectionStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Connection{}).
		Where("(requester_id = ? OR addressee_id = ?)", profileID, profileID).
		Where("status = ?", status).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count connections: %w", err)
	}
	return n, nil
}

// AreConnected reports whether an accepted connection joins a and b in either direction.
func (s *Store) AreConnected(ctx context.Context, a, b string) (bool, error) {
	return areConnected(s.db.WithContext(ctx), a, b)
}

func areConnected(db *gorm.DB, a, b string) (bool, error) {
	var n int64
	err := db.Model(&model.Connection{}).
		Where("status = ?", model.ConnectionAccepted).
		Where("((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?))", a, b, b, a).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check connection: %w", err)
	}
	return n > 0, nil
}

// RequestConnection creates a pending connection from requesterID to addresseeID.
// A pending or accepted connection between the two in either direction is a conflict.
func (s *Store) RequestConnection(ctx context.Context, requesterID, addresseeID, connectionType string) (*model.Connection, error) {
	if requesterID == "" || addresseeID == "" || requesterID == addresseeID {
		return nil, fmt.Errorf("%w: connection needs two distinct profiles", ErrInvalidArgument)
	}

	conn := &model.Connection{
		ID:             newID(),
		RequesterID:    requesterID,
		AddresseeID:    addresseeID,
		Status:         model.ConnectionPending,
		ConnectionType: connectionType,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lookupProfile(tx, addresseeID); err != nil {
			return err
		}

		var existing int64
		err := tx.Model(&model.Connection{}).
			Where("status IN ?", []model.ConnectionStatus{model.ConnectionPending, model.ConnectionAccepted}).
			Where("((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?))",
				requesterID, addresseeID, addresseeID, requesterID).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: connection already exists", ErrConflict)
		}
		return tx.Create(conn).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request connection: %w", err)
	}
	return conn, nil
}

// RespondToConnection accepts or declines a pending connection addressed to responderID.
func (s *Store) RespondToConnection(ctx context.Context, connectionID, responderID string, status model.ConnectionStatus) (*model.Connection, error) {
	if status != model.ConnectionAccepted && status != model.ConnectionDeclined {
		return nil, fmt.Errorf("%w: response must be accepted or declined", ErrInvalidArgument)
	}

	var conn model.Connection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&conn, "id = ?", connectionID).Error; err != nil {
			return notFound(err)
		}
		if conn.AddresseeID != responderID {
			if conn.RequesterID == responderID {
				return fmt.Errorf("%w: only the addressee may respond", ErrForbidden)
			}
			return ErrNotFound
		}
		if conn.Status != model.ConnectionPending {
			return fmt.Errorf("%w: connection is %s", ErrConflict, conn.Status)
		}
		now := s.now()
		conn.Status = status
		conn.UpdatedAt = now
		return tx.Model(&conn).Updates(map[string]any{
			"status":     status,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to respond to connection: %w", err)
	}
	return &conn, nil
}

// CancelConnection deletes a pending request sent by requesterID and returns the removed row.
func (s *Store) CancelConnection(ctx context.Context, connectionID, requesterID string) (*model.Connection, error) {
	var conn model.Connection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&conn, "id = ?", connectionID).Error; err != nil {
			return notFound(err)
		}
		if conn.RequesterID != requesterID {
			if conn.AddresseeID == requesterID {
				return fmt.Errorf("%w: only the requester may cancel", ErrForbidden)
			}
			return ErrNotFound
		}
		if conn.Status != model.ConnectionPending {
			return fmt.Errorf("%w: connection is %s", ErrConflict, conn.Status)
		}
		return tx.Delete(&model.Connection{}, "id = ?", connectionID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel connection: %w", err)
	}
	return &conn, nil
}

func lookupProfile(db *gorm.DB, id string) (*model.Profile, error) {
	var p model.Profile
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, notFound(err))
	}
	return &p, nil
}
