package bus

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
)

// Subjects used for ingest events. Consumers treat them as enrichment only;
// the database remains the source of truth.
const (
	IndicatorsInsertedSubject = "threatwatch.indicators.inserted"
	RunCompletedSubject       = "threatwatch.runs.completed"
)

// Bus wraps a core NATS connection for fire-and-forget event publishing.
type Bus struct {
	conn *nats.Conn
}

// New creates a Bus connected to the provided NATS endpoint.
func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Bus{conn: nc}, nil
}

// Close shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to the given subject.
// A nil Bus is a no-op so callers can leave eventing unconfigured.
func (b *Bus) Publish(subj string, v any) error {
	if b == nil || b.conn == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return b.conn.Publish(subj, data)
}

type subscription struct {
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Drain()
}

// Subscribe invokes fn for every message received on the given subject.
func (b *Bus) Subscribe(subj string, fn func(data []byte)) (io.Closer, error) {
	if b == nil || b.conn == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	sub, err := b.conn.Subscribe(subj, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, err
	}

	return &subscription{sub: sub}, nil
}
