// Package forward copies realtime publications onto a Kafka topic.
package forward

import (
	"errors"
	"fmt"
	"log/slog"

	"devguru-client/internal/realtime"

	"github.com/IBM/sarama"
)

const DefaultClientID = "devguru-client"

var ErrNoBrokers = errors.New("forward: at least one broker is required")

// NewConfig returns the producer settings used for publication forwarding.
func NewConfig(clientID string) *sarama.Config {
	if clientID == "" {
		clientID = DefaultClientID
	}
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner // same channel, same partition
	config.Version = sarama.V2_0_0_0
	config.ClientID = clientID
	config.Producer.MaxMessageBytes = 1000000
	return config
}

type Forwarder struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// Dial connects a sync producer to brokers.
func Dial(brokers []string, topic, clientID string, logger *slog.Logger) (*Forwarder, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	producer, err := sarama.NewSyncProducer(brokers, NewConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return New(producer, topic, logger), nil
}

func New(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{producer: producer, topic: topic, logger: logger}
}

// Send writes one publication keyed by its channel.
func (f *Forwarder) Send(channel string, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: f.topic,
		Key:   sarama.StringEncoder(channel),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := f.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("forward %s: %w", channel, err)
	}
	f.logger.Debug("Publication forwarded", "channel", channel, "topic", f.topic, "partition", partition, "offset", offset)
	return nil
}

// Listener forwards publication events; other events are ignored. Send
// failures are logged.
func (f *Forwarder) Listener() realtime.Listener {
	return func(ev realtime.Event) {
		if ev.Type != realtime.EventPublication {
			return
		}
		if err := f.Send(ev.Channel, ev.Data); err != nil {
			f.logger.Error("Failed to forward publication", "channel", ev.Channel, "error", err)
		}
	}
}

func (f *Forwarder) Close() error {
	return f.producer.Close()
}
