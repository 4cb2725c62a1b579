package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "citadel/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.records = append(p.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestSink_Publish(t *testing.T) {
	producer := &fakeProducer{}
	sink := New(producer, "citadel.audit")

	err := sink.Publish(context.Background(), audit.Event{
		ID:        "evt-1",
		Category:  audit.CategoryCompliance,
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Action:    string(audit.EventAccessGranted),
		AssetID:   9,
		Actor:     "alice",
		Subject:   "bob",
		Height:    300,
	})
	require.NoError(t, err)
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "citadel.audit", rec.Topic)
	assert.Equal(t, "9", string(rec.Key))
	assert.Equal(t, "compliance", string(rec.Headers[0].Value))

	var msg message
	require.NoError(t, json.Unmarshal(rec.Value, &msg))
	assert.Equal(t, uint64(9), msg.AssetID)
	assert.Equal(t, "bob", msg.Subject)
	assert.Equal(t, uint64(300), msg.Height)
	assert.Equal(t, "2025-01-02T03:04:05Z", msg.Timestamp)
}

func TestSink_PublishError(t *testing.T) {
	sink := New(&fakeProducer{err: errors.New("not leader")}, "citadel.audit")

	err := sink.Publish(context.Background(), audit.Event{ID: "evt-2", AssetID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-2")
}
