//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "citadel/pkg/platform/audit"
	auditkafka "citadel/pkg/platform/audit/sink/kafka"
	"citadel/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	broker *containers.RedpandaContainer
}

func TestKafkaSinkSuite(t *testing.T) {
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaSinkSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()
	client := s.broker.Client(s.T())
	topic := "citadel.audit.ensure"

	s.Require().NoError(auditkafka.EnsureTopic(ctx, client, topic, 3, 1))
	s.Require().NoError(auditkafka.EnsureTopic(ctx, client, topic, 3, 1), "existing topic is not an error")

	details, err := kadm.NewClient(client).ListTopics(ctx, topic)
	s.Require().NoError(err)
	detail, ok := details[topic]
	s.Require().True(ok, "topic should be listed")
	s.Require().NoError(detail.Err)
	s.Len(detail.Partitions, 3, "second call must not recreate the topic")
}

func (s *KafkaSinkSuite) TestPublishedEventIsKeyedByAsset() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "citadel.audit.publish"
	producer := s.broker.Client(s.T())
	s.Require().NoError(auditkafka.EnsureTopic(ctx, producer, topic, 1, 1))

	sink := auditkafka.New(producer, topic)
	s.Require().NoError(sink.Publish(ctx, audit.Event{
		ID:        "evt-42",
		Category:  audit.CategoryCompliance,
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Action:    string(audit.EventAccessGranted),
		AssetID:   42,
		Actor:     "alice",
		Subject:   "bob",
		Height:    700,
	}))

	consumer := s.broker.Client(s.T(),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)

	var records []*kgo.Record
	for len(records) == 0 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "no record consumed before the deadline")
		s.Require().Empty(fetches.Errors())
		records = append(records, fetches.Records()...)
	}

	s.Require().Len(records, 1)
	rec := records[0]
	s.Equal("42", string(rec.Key))
	s.Require().NotEmpty(rec.Headers)
	s.Equal("category", rec.Headers[0].Key)
	s.Equal("compliance", string(rec.Headers[0].Value))

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(rec.Value, &payload))
	s.Equal("evt-42", payload["id"])
	s.Equal(float64(42), payload["asset_id"])
	s.Equal("bob", payload["subject"])
	s.Equal(float64(700), payload["height"])
}
