package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "claim", Body: []byte("claim-1")}))

	out, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-out:
		require.Equal(t, "claim", msg.Type)
		require.Equal(t, "claim-1", string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "claim", Body: []byte("id|with|pipes")}
	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	require.Equal(t, msg.Type, got.Type)
	require.Equal(t, msg.Body, got.Body)
}

func TestDeserializeWithoutType(t *testing.T) {
	got, err := deserialize("bare-body")
	require.NoError(t, err)
	require.Empty(t, got.Type)
	require.Equal(t, "bare-body", string(got.Body))
}
