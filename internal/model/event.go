package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Table names a relational table that emits change events.
type Table string

const (
	TableProfiles      Table = "profiles"
	TableConnections   Table = "connections"
	TableCompanies     Table = "companies"
	TableCredentials   Table = "credentials"
	TableConversations Table = "conversations"
	TableMessages      Table = "messages"
)

// EventKind is the kind of row change.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
	// EventAny matches every kind when subscribing.
	EventAny EventKind = "*"
)

// ChangeEvent is a notification that a row was inserted, updated or deleted.
type ChangeEvent struct {
	ID              string         `json:"id"`
	Table           Table          `json:"table"`
	Type            EventKind      `json:"type"`
	Record          map[string]any `json:"record,omitempty"`
	OldRecord       map[string]any `json:"old_record,omitempty"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
}

// Field returns a record column rendered as a string, or "" when absent.
func (e *ChangeEvent) Field(column string) string {
	return fieldString(e.Record, column)
}

func fieldString(record map[string]any, column string) string {
	if record == nil {
		return ""
	}
	v, ok := record[column]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ToRecord converts a row struct to the column map carried by change events.
func ToRecord(row any) (map[string]any, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return record, nil
}

// Predicate is a single column equality check.
type Predicate struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Filter matches a change event when any of its predicates holds.
// An empty filter matches every event.
type Filter []Predicate

// Eq returns a filter with a single equality predicate.
func Eq(column, value string) Filter {
	return Filter{{Column: column, Value: value}}
}

// Or returns f extended with another equality predicate.
func (f Filter) Or(column, value string) Filter {
	out := make(Filter, 0, len(f)+1)
	out = append(out, f...)
	return append(out, Predicate{Column: column, Value: value})
}

// Matches reports whether the event's record (or, for deletes, old record) satisfies f.
func (f Filter) Matches(e *ChangeEvent) bool {
	if len(f) == 0 {
		return true
	}
	record := e.Record
	if e.Type == EventDelete && len(e.OldRecord) > 0 {
		record = e.OldRecord
	}
	for _, p := range f {
		if fieldString(record, p.Column) == p.Value {
			return true
		}
	}
	return false
}

// Subscription is a handle to a live change subscription.
type Subscription interface {
	Cancel() error
}
