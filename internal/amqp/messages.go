package amqp

import (
	"encoding/json"
	"time"
)

// Table operations carried by TableChangedMessage.
const (
	OpInsert   = "insert"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpBackfill = "backfill"
)

// TableChangedMessage announces that a table was written. Consumers reload
// the table rather than trusting a payload, so the message carries no rows.
type TableChangedMessage struct {
	Table     string    `json:"table"`
	Operation string    `json:"operation"`
	RowID     string    `json:"row_id,omitempty"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTableChangedMessage(table, operation, rowID string, count int) *TableChangedMessage {
	return &TableChangedMessage{
		Table:     table,
		Operation: operation,
		RowID:     rowID,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TableChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TableChangedMessageFromJSON(data []byte) (*TableChangedMessage, error) {
	var msg TableChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
