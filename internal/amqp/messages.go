package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LedgerChangedMessage announces that the ledger was mutated and the summary
// needs republishing. It carries no ledger data; consumers reload from storage.
type LedgerChangedMessage struct {
	ID        uuid.UUID `json:"id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage stamps a new event with a fresh id.
func NewLedgerChangedMessage(reason string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		ID:        uuid.New(),
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message body.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
