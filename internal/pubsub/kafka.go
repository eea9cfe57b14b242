package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ErrNoBrokers is returned when a Kafka driver is configured without broker addresses.
var ErrNoBrokers = errors.New("at least one kafka broker address is required")

// KafkaConfig holds the connection settings shared by Kafka consumers and publishers.
type KafkaConfig struct {
	Brokers []string
	// ClientID is reported to the brokers; empty uses sarama's default.
	ClientID string
}

// KafkaBroker creates one watermill-kafka subscriber per consumer group and
// publishes through a single shared producer.
type KafkaBroker struct {
	config KafkaConfig
	logger watermill.LoggerAdapter

	mu        sync.Mutex
	publisher message.Publisher
}

// NewKafkaBroker validates the configuration. The producer is created lazily on first publish.
func NewKafkaBroker(config KafkaConfig, logger watermill.LoggerAdapter) (*KafkaBroker, error) {
	if len(config.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &KafkaBroker{config: config, logger: logger}, nil
}

// subscriberConfig returns the sarama settings for a bridge consumer:
// a fresh group that starts at the newest offset, so no backlog is replayed.
func (b *KafkaBroker) subscriberConfig() *sarama.Config {
	saramaConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	if b.config.ClientID != "" {
		saramaConfig.ClientID = b.config.ClientID
	}
	return saramaConfig
}

// NewConsumer implements ConsumerFactory.
func (b *KafkaBroker) NewConsumer(groupID string) (message.Subscriber, error) {
	sub, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               b.config.Brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: b.subscriberConfig(),
			ConsumerGroup:         groupID,
		},
		b.logger.With(watermill.LogFields{"consumer_group": groupID}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}
	return &kafkaConsumer{Subscriber: sub, brokers: b.config.Brokers, config: b.subscriberConfig()}, nil
}

// ErrTopicUnavailable is returned by Subscribe when the brokers do not serve the topic.
var ErrTopicUnavailable = errors.New("topic unavailable")

// kafkaConsumer checks the topic against cluster metadata before subscribing.
// The watermill subscriber only reaches the brokers from its background
// consume loop, which retries unknown topics forever instead of failing.
type kafkaConsumer struct {
	message.Subscriber
	brokers []string
	config  *sarama.Config
}

func (c *kafkaConsumer) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if err := checkTopic(c.brokers, c.config, topic); err != nil {
		return nil, err
	}
	return c.Subscriber.Subscribe(ctx, topic)
}

// checkTopic fetches metadata for topic and fails unless it has at least one partition.
func checkTopic(brokers []string, base *sarama.Config, topic string) error {
	cfg := *base
	cfg.Metadata.Full = false

	client, err := sarama.NewClient(brokers, &cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to kafka: %w", err)
	}
	defer client.Close()

	if err := client.RefreshMetadata(topic); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTopicUnavailable, topic, err)
	}
	partitions, err := client.Partitions(topic)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTopicUnavailable, topic, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("%w: %s has no partitions", ErrTopicUnavailable, topic)
	}
	return nil
}

// Publish implements Publisher.
func (b *KafkaBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	if b.publisher == nil {
		pub, err := NewKafkaPublisher(b.config, b.logger)
		if err != nil {
			b.mu.Unlock()
			return err
		}
		b.publisher = pub
	}
	pub := b.publisher
	b.mu.Unlock()

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return pub.Publish(topic, msg)
}

// Close releases the shared producer, if one was created.
// Consumers are owned and closed by their callers.
func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publisher == nil {
		return nil
	}
	err := b.publisher.Close()
	b.publisher = nil
	return err
}

// NewKafkaPublisher creates a synchronous watermill-kafka publisher.
func NewKafkaPublisher(config KafkaConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if len(config.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	saramaConfig := kafka.DefaultSaramaSyncPublisherConfig()
	if config.ClientID != "" {
		saramaConfig.ClientID = config.ClientID
	}
	pub, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               config.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return pub, nil
}
