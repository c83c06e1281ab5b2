package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestMemory_Publish(t *testing.T) {
	p := NewMemory()

	id, err := p.Publish(context.Background(), EventRecordInserted, RecordInserted{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, EventRecordInserted, msgs[0].Event)
	assert.Equal(t, RecordInserted{ID: "a"}, msgs[0].Payload)
}

func TestNop_Publish(t *testing.T) {
	id, err := Nop{}.Publish(context.Background(), EventRecordInserted, nil)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestNewPubSub_Validation(t *testing.T) {
	_, err := NewPubSub(nil, "topic")
	assert.Error(t, err)
}

func TestPubSub_Publish(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CreateTopic(ctx, "records")
	require.NoError(t, err)

	p, err := NewPubSub(client, "records")
	require.NoError(t, err)
	defer p.Stop()

	event := RecordInserted{
		RunID:      "run-1",
		Category:   "admit_card",
		ID:         "rrb-alp-admit-card",
		Title:      "RRB ALP Admit Card",
		Sources:    []string{"https://a.example/alp"},
		InsertedAt: time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	id, err := p.Publish(ctx, EventRecordInserted, event)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, EventRecordInserted, msgs[0].Attributes[EventAttribute])

	var got RecordInserted
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, event, got)
}
