package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotSavedMessage announces that a snapshot reached the store. It only
// carries the key and a per-process revision; consumers read the snapshot
// itself from the store.
type SnapshotSavedMessage struct {
	Key       string    `json:"key"`
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotSavedMessage(key string, revision int64) *SnapshotSavedMessage {
	return &SnapshotSavedMessage{
		Key:       key,
		Revision:  revision,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotSavedMessageFromJSON creates a message from JSON bytes
func SnapshotSavedMessageFromJSON(data []byte) (*SnapshotSavedMessage, error) {
	var msg SnapshotSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
