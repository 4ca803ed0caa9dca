package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestService(t *testing.T) (*PubSubService, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)

	svc, err := NewPubSubServiceWithClient(ctx, client, &PubSubConfig{TopicName: "onboarding-events", Source: "pod-1"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, srv
}

func TestPublishLifecycleEvent(t *testing.T) {
	svc, srv := newTestService(t)

	err := svc.Publish(context.Background(), Event{
		Type:       "payment.confirmed",
		ClientID:   "client_1",
		Attributes: map[string]string{"payment_intent_id": "pi_1"},
	})
	require.NoError(t, err)

	messages := srv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "payment.confirmed", messages[0].Attributes["type"])
	assert.Equal(t, "client_1", messages[0].Attributes["client_id"])
	assert.Equal(t, "pod-1", messages[0].Attributes["source"])

	var decoded Event
	require.NoError(t, json.Unmarshal(messages[0].Data, &decoded))
	assert.NotEmpty(t, decoded.ID)
	assert.False(t, decoded.OccurredAt.IsZero())
	assert.Equal(t, "pi_1", decoded.Attributes["payment_intent_id"])
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: "x"}))
	assert.NoError(t, p.Close())
}
