package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newFakeClient(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "scrollprobe-test",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestPublisherPublishesJSON(t *testing.T) {
	t.Parallel()

	srv, client := newFakeClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "scroll-progress")
	require.NoError(t, err)

	pub := New(client, map[string]string{"origin": "scrollprobe"})
	defer pub.Close()

	id, err := pub.Publish(ctx, "scroll-progress", map[string]float64{"progress": 0.25})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "scrollprobe", msgs[0].Attributes["origin"])
	var body map[string]float64
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	require.InDelta(t, 0.25, body["progress"], 1e-9)
}

func TestPublisherErrors(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil).Publish(context.Background(), "t", "x")
	require.Error(t, err)

	_, client := newFakeClient(t)
	pub := New(client, nil)
	defer pub.Close()

	_, err = pub.Publish(context.Background(), "", "x")
	require.Error(t, err)
	_, err = pub.Publish(context.Background(), "missing-topic", "x")
	require.Error(t, err)
	_, err = pub.Publish(context.Background(), "missing-topic", func() {})
	require.ErrorContains(t, err, "marshal payload")
}

func TestPubsubCarrier(t *testing.T) {
	t.Parallel()

	carrier := &pubsubCarrier{attrs: map[string]string{}}
	propagation.TraceContext{}.Inject(traceContext(), carrier)

	require.Equal(t, []string{"traceparent"}, carrier.Keys())
	require.Equal(t, "00-0102030405060708090a0b0c0d0e0f10-0102030405060708-01", carrier.Get("traceparent"))
}

func traceContext() context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}
