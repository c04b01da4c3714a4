package app

import (
	"time"

	"educahub/internal/hub"
)

// Operation tracks one CLI invocation. Its ID tags every log line written
// while it runs.
type Operation struct {
	ID        string
	Name      string
	Status    string // "success" or "error"
	StartedAt time.Time
}

// NewOperation creates a running operation that counts as successful until Fail.
func NewOperation(name string, ids hub.IDGenerator, clock hub.Clock) *Operation {
	return &Operation{
		ID:        ids.New(),
		Name:      name,
		Status:    "success",
		StartedAt: clock.Now().UTC(),
	}
}

// Record marks the operation failed when err is non-nil and returns err.
func (op *Operation) Record(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}

// Failed reports whether any recorded step failed.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
