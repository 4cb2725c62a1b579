// Package kafka forwards audit events to a Kafka topic keyed by asset id, so every
// event for one asset lands on the same partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "citadel/pkg/platform/audit"
)

// Producer is the slice of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Sink struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

// message is the JSON payload written to the topic.
type message struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	AssetID   uint64 `json:"asset_id"`
	Actor     string `json:"actor"`
	Subject   string `json:"subject,omitempty"`
	Height    uint64 `json:"height"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Sink) Publish(ctx context.Context, event audit.Event) error {
	record, err := s.record(event)
	if err != nil {
		return err
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event %s: %w", event.ID, err)
	}
	return nil
}

func (s *Sink) record(event audit.Event) (*kgo.Record, error) {
	payload, err := json.Marshal(message{
		ID:        event.ID,
		Category:  string(event.Category),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    event.Action,
		AssetID:   uint64(event.AssetID),
		Actor:     event.Actor.String(),
		Subject:   event.Subject.String(),
		Height:    uint64(event.Height),
		Reason:    event.Reason,
		RequestID: event.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	return &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.AssetID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
		},
	}, nil
}

// EnsureTopic creates the topic if the cluster does not have it yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
