// Package events ships committed ledger events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"chainlend-backend/internal/domain/ledger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event, keyed by request id so a
// loan's history stays on one partition.
type KafkaPublisher struct {
	w       writer
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		timeout: 5 * time.Second,
	}, nil
}

// envelope is the wire form; Payload is re-embedded as raw JSON.
type envelope struct {
	ID        string           `json:"id"`
	Name      ledger.EventName `json:"name"`
	RequestID uint64           `json:"request_id,omitempty"`
	Account   string           `json:"account"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

func toMessages(events []ledger.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		payload := json.RawMessage(e.Payload)
		if !json.Valid(payload) {
			payload = json.RawMessage("{}")
		}
		b, err := json.Marshal(envelope{
			ID:        e.ID,
			Name:      e.Name,
			RequestID: e.RequestID,
			Account:   e.Account.Hex(),
			Payload:   payload,
			CreatedAt: e.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatUint(e.RequestID, 10)),
			Value: b,
			Headers: []kafka.Header{
				{Key: "event", Value: []byte(e.Name)},
			},
			Time: e.CreatedAt,
		})
	}
	return msgs, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []ledger.Event) error {
	msgs, err := toMessages(events)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// LogPublisher is used when no brokers are configured.
type LogPublisher struct{ Log *zap.Logger }

func (p LogPublisher) Publish(_ context.Context, events []ledger.Event) error {
	for _, e := range events {
		p.Log.Info("ledger event",
			zap.String("name", string(e.Name)),
			zap.Uint64("request_id", e.RequestID),
			zap.String("account", e.Account.Hex()),
			zap.String("payload", e.Payload),
		)
	}
	return nil
}
