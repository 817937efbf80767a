package queue

import (
	"context"
	"encoding/json"
)

// Job handles messages of one type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job consumes.
	Type() string

	Handle(ctx context.Context, payload json.RawMessage) error
}
