package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

type Config struct {
	Brokers  []string
	GroupID  string
	ClientID string
}

// Broker publishes through a sync producer and subscribes through a
// consumer group, one group session per Subscribe call.
type Broker struct {
	producer sarama.SyncProducer
	newGroup func() (sarama.ConsumerGroup, error)
	logger   zerolog.Logger

	mu     sync.Mutex
	groups []sarama.ConsumerGroup
}

func newSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	return cfg
}

func NewBroker(cfg Config, logger zerolog.Logger) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	scfg := newSaramaConfig(cfg.ClientID)
	producer, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "booking-api"
	}
	return newBroker(producer, func() (sarama.ConsumerGroup, error) {
		return sarama.NewConsumerGroup(cfg.Brokers, groupID, scfg)
	}, logger), nil
}

func newBroker(producer sarama.SyncProducer, newGroup func() (sarama.ConsumerGroup, error), logger zerolog.Logger) *Broker {
	return &Broker{
		producer: producer,
		newGroup: newGroup,
		logger:   logger.With().Str("component", "kafka-broker").Logger(),
	}
}

// Publish sends message as JSON without a key.
func (b *Broker) Publish(_ context.Context, topic string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	group, err := b.newGroup()
	if err != nil {
		return nil, fmt.Errorf("kafka consumer group: %w", err)
	}
	b.mu.Lock()
	b.groups = append(b.groups, group)
	b.mu.Unlock()

	out := make(chan []byte, 100)
	handler := groupHandler{out: out}

	go func() {
		defer close(out)
		for {
			if err := group.Consume(ctx, []string{topic}, handler); err != nil {
				b.logger.Error().Err(err).Str("topic", topic).Msg("consume failed")
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return out, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, g := range b.groups {
		if err := g.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := b.producer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

type groupHandler struct {
	out chan<- []byte
}

func (h groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		select {
		case h.out <- message.Value:
			sess.MarkMessage(message, "")
		case <-sess.Context().Done():
			return nil
		}
	}
	return nil
}
