package kafka

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/chatcoins/internal/config"
	"github.com/chatcoins/internal/domain"
)

// Notifier publishes committed economy events to the event topic.
// Publishing is best-effort: a broker failure is logged and dropped,
// never surfaced to the operation that produced the event.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewNotifier creates a Kafka event notifier
func NewNotifier(cfg *config.KafkaConfig, logger *slog.Logger) (*Notifier, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Notifier{
		producer: producer,
		topic:    cfg.EventTopic,
		logger:   logger,
	}, nil
}

// Publish sends one event to the event topic, keyed by actor so a
// single account's events stay ordered within a partition.
func (n *Notifier) Publish(event domain.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(event.ActorID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		n.logger.Error("failed to publish event",
			"type", event.Type,
			"actor_id", event.ActorID,
			"error", err,
		)
		return
	}

	n.logger.Debug("published event",
		"type", event.Type,
		"partition", partition,
		"offset", offset,
	)
}

// Close shuts down the underlying producer
func (n *Notifier) Close() error {
	return n.producer.Close()
}
