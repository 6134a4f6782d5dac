package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is the serializable envelope carried by every Queue backend.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	BatchID    string          `json:"batch_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	// Attempts counts executions inside the current delivery; it is not persisted.
	Attempts int `json:"-"`

	// receipt is backend specific ack state (raw redis entry, kafka message).
	receipt any
}

// NewTask marshals payload into a fresh task.
func NewTask(kind, batchID string, payload any) (*Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		BatchID:    batchID,
		Payload:    data,
		EnqueuedAt: time.Now(),
	}, nil
}

// Decode unmarshals the payload into v.
func (t *Task) Decode(v any) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return NoRetry(fmt.Errorf("decode %s payload: %w", t.Kind, err))
	}
	return nil
}
