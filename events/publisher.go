// Package events publishes leave-decision events to a message broker so
// downstream consumers (notifications, payroll) can react to approvals,
// rejections and cancellations.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/warp/leave-engine/leave"
)

// Decision is the payload published after a request leaves pending (or an
// approved request is cancelled).
type Decision struct {
	RequestID  string    `json:"request_id"`
	EmployeeID string    `json:"employee_id"`
	ActorID    string    `json:"actor_id"`
	Status     string    `json:"status"`
	Type       string    `json:"type"`
	Days       int       `json:"days"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewDecision(req *leave.LeaveRequest, actorID string, at time.Time) Decision {
	return Decision{
		RequestID:  req.ID,
		EmployeeID: req.EmployeeID,
		ActorID:    actorID,
		Status:     string(req.Status),
		Type:       string(req.Type),
		Days:       req.Days,
		OccurredAt: at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, d Decision) error
}

// =============================================================================
// KAFKA PUBLISHER
// =============================================================================

type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish writes the decision keyed by request id, so all events for one
// request land on the same partition in order.
func (k *Kafka) Publish(ctx context.Context, d Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision event: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(d.RequestID),
		Value: payload,
	})
}

func (k *Kafka) Close() error { return k.writer.Close() }

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Decision) error { return nil }
