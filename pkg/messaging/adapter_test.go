package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanBroker struct {
	mu        sync.Mutex
	published []interface{}
	ch        chan []byte
}

func (b *chanBroker) Publish(_ context.Context, _ string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, message)
	return nil
}

func (b *chanBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func (b *chanBroker) Close() error { return nil }

func TestAdapterPublishKeepsRawJSON(t *testing.T) {
	b := &chanBroker{}
	a := NewBrokerAdapter(b, zerolog.Nop())

	require.NoError(t, a.Publish(context.Background(), "t", []byte(`{"a":1}`)))
	require.Len(t, b.published, 1)
	out, err := json.Marshal(b.published[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}

func TestAdapterSubscribeContinuesAfterHandlerError(t *testing.T) {
	b := &chanBroker{ch: make(chan []byte, 2)}
	a := NewBrokerAdapter(b, zerolog.Nop())

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})
	require.NoError(t, a.Subscribe(context.Background(), "t", func(msg []byte) error {
		mu.Lock()
		seen = append(seen, string(msg))
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			close(done)
		}
		return errors.New("boom")
	}))

	b.ch <- []byte("one")
	b.ch <- []byte("two")
	close(b.ch)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler not called for both messages")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two"}, seen)
}
