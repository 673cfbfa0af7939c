package models

import (
	"encoding/json"
	"time"
)

// Change event types
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// Collections observed by the change feed
const (
	CollectionProducts     = "products"
	CollectionOrders       = "orders"
	CollectionCustomOrders = "custom_orders"
	CollectionMessages     = "messages"
)

// ChangeEvent is published for every record store write.
// Consumers must treat it as a hint to refetch, never as the record of truth.
type ChangeEvent struct {
	EventID    string          `json:"event_id"`
	Collection string          `json:"collection"`
	EventType  string          `json:"event_type"`
	RecordID   string          `json:"record_id"`
	Record     json.RawMessage `json:"record,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
