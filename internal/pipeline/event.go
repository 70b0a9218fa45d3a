package pipeline

import (
	"context"
	"time"
)

// RawEvent is a message read from the request topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string

	// Commit marks the message as processed. Nil when the source has no offsets.
	Commit func(ctx context.Context) error
}

// Header is a message header in publish order.
type Header struct {
	Key   string
	Value string
}

// OutputEvent is a message ready for the result topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers []Header
}
