package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"stackit/domain/events"
)

type fakeEventBridge struct {
	calls  []*eventbridge.PutEventsInput
	failed int32
	err    error
}

func (f *fakeEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for i := range in.Entries {
		entry := types.PutEventsResultEntry{}
		if int32(i) < f.failed {
			entry.ErrorCode = aws.String("InternalFailure")
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func votedEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewAnswerVoted("q1", "1", i+1, time.Now())
	}
	return out
}

func TestPublishBatchChunks(t *testing.T) {
	client := &fakeEventBridge{}
	p := NewEventBridgePublisher(client, "bus", nil)

	require.NoError(t, p.PublishBatch(context.Background(), votedEvents(23)))
	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Entries, 10)
	assert.Len(t, client.calls[2].Entries, 3)

	entry := client.calls[0].Entries[0]
	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeAnswerVoted, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "q1", detail["aggregate_id"])
}

func TestPublishReportsFailures(t *testing.T) {
	p := NewEventBridgePublisher(&fakeEventBridge{failed: 1}, "bus", nil)
	assert.Error(t, p.Publish(context.Background(), votedEvents(1)[0]))

	p = NewEventBridgePublisher(&fakeEventBridge{err: errors.New("boom")}, "bus", nil)
	assert.Error(t, p.Publish(context.Background(), votedEvents(1)[0]))
}

func TestPublishEmptyBatch(t *testing.T) {
	client := &fakeEventBridge{}
	p := NewEventBridgePublisher(client, "bus", nil)
	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Empty(t, client.calls)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.PublishBatch(context.Background(), votedEvents(2)))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, events.TypeAnswerVoted, logs.All()[0].ContextMap()["event_type"])
}
