package model

import (
	"time"
)

// ConnectionStatus is the approval state of a connection.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionDeclined ConnectionStatus = "declined"
)

// Valid reports whether s is a known connection status.
func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionPending, ConnectionAccepted, ConnectionDeclined:
		return true
	}
	return false
}

// Connection is an edge between two profiles.
type Connection struct {
	ID             string           `gorm:"primaryKey;size:36" json:"id"`
	RequesterID    string           `gorm:"size:36;index;not null" json:"requester_id"`
	AddresseeID    string           `gorm:"size:36;index;not null" json:"addressee_id"`
	Status         ConnectionStatus `gorm:"size:20;index;not null;default:pending" json:"status"`
	ConnectionType string           `gorm:"size:64" json:"connection_type"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	Requester *Profile `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Addressee *Profile `gorm:"foreignKey:AddresseeID" json:"addressee,omitempty"`
}

// Counterparty returns the endpoint of the connection that is not profileID.
func (c *Connection) Counterparty(profileID string) *Profile {
	if c.RequesterID == profileID {
		return c.Addressee
	}
	return c.Requester
}

// CounterpartyID returns the id of the endpoint that is not profileID.
func (c *Connection) CounterpartyID(profileID string) string {
	if c.RequesterID == profileID {
		return c.AddresseeID
	}
	return c.RequesterID
}

// Involves reports whether profileID is one of the endpoints.
func (c *Connection) Involves(profileID string) bool {
	return c.RequesterID == profileID || c.AddresseeID == profileID
}

// ConnectionPath is the result of a shortest-path search over accepted connections.
type ConnectionPath struct {
	PathLength int      `json:"path_length"`
	PathUsers  []string `json:"path_users"`
}
