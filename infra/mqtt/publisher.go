package mqtt

import (
	"context"
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/microgrid/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// New returns a connected PahoPublisher when cfg is enabled and a
// NopPublisher otherwise.
func New(cfg Config) (Publisher, error) {
	if !cfg.Enabled {
		return coremqtt.NopPublisher{}, nil
	}
	return NewPahoPublisher(cfg)
}

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []coremqtt.PlanMessage
	Fail     bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishPlan records the message or returns an error if configured to fail.
func (m *MockPublisher) PublishPlan(_ context.Context, msg coremqtt.PlanMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("%w: mock failure", coremqtt.ErrPublish)
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockPublisher) Sent() []coremqtt.PlanMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.PlanMessage(nil), m.Messages...)
}

// Disconnect is a no-op.
func (m *MockPublisher) Disconnect() {}
