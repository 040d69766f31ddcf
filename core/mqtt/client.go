// Package mqtt defines how finished plans are announced on a message broker.
package mqtt

import (
	"context"
	"time"
)

// PlanMessage is the payload published for every plan.
type PlanMessage struct {
	MessageID string    `json:"message_id"`
	RunID     string    `json:"run_id"`
	Solver    string    `json:"solver"`
	Timestamp time.Time `json:"timestamp"`
	StepHours float64   `json:"step_hours"`
	Cost      float64   `json:"cost"`
	Grid      []float64 `json:"grid_kw"`
	Diesel    []float64 `json:"diesel_kw"`
	Battery   []float64 `json:"battery_kw"`
	SoC       []float64 `json:"soc"`
}

// Publisher sends plans to downstream consumers.
type Publisher interface {
	// PublishPlan delivers msg, retrying transient failures until ctx ends.
	PublishPlan(ctx context.Context, msg PlanMessage) error
	// Disconnect releases the connection.
	Disconnect()
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) PublishPlan(context.Context, PlanMessage) error { return nil }
func (NopPublisher) Disconnect()                                    {}
