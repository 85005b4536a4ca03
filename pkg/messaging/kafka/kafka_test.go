package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSendsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"kind":"booking.created"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	b := newBroker(producer, nil, zerolog.Nop())
	require.NoError(t, b.Publish(context.Background(), "notifications", map[string]string{"kind": "booking.created"}))
	require.NoError(t, b.Close())
}

func TestPublishSurfacesProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	b := newBroker(producer, nil, zerolog.Nop())
	err := b.Publish(context.Background(), "notifications", "x")
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, b.Close())
}

func TestSubscribeReportsGroupError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	b := newBroker(producer, func() (sarama.ConsumerGroup, error) {
		return nil, sarama.ErrOutOfBrokers
	}, zerolog.Nop())

	_, err := b.Subscribe(context.Background(), "notifications")
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, b.Close())
}

func TestNewBrokerRequiresBrokers(t *testing.T) {
	_, err := NewBroker(Config{}, zerolog.Nop())
	assert.Error(t, err)
}
