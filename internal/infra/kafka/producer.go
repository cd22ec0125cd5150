package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/infra/config"
)

const defaultClientID = "chat-account-api"

// Producer publishes account events through a Sarama AsyncProducer. Messages
// are keyed by account ID and hash-partitioned, so events of one account keep
// their order. Delivery failures are logged until Close.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	drained  chan struct{}
}

// NewProducer connects to cfg.Brokers. The client ID falls back to the app name.
func NewProducer(cfg config.KafkaSettings, app config.AppSettings, logger *zap.Logger) (*Producer, error) {
	saramaConfig, err := newSaramaConfig(cfg, app.Name)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := newProducer(producer, cfg, logger)

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("client_id", saramaConfig.ClientID),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.Bool("idempotent", saramaConfig.Producer.Idempotent),
	)

	return p, nil
}

func newProducer(producer sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	p := &Producer{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		drained:  make(chan struct{}),
	}
	go p.logFailures()
	return p
}

func newSaramaConfig(cfg config.KafkaSettings, appName string) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0

	sc.ClientID = cfg.ClientID
	if sc.ClientID == "" {
		sc.ClientID = appName
	}
	if sc.ClientID == "" {
		sc.ClientID = defaultClientID
	}

	acks, err := requiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}
	sc.Producer.RequiredAcks = acks
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 100 * time.Millisecond
	sc.Producer.Flush.Messages = 100
	sc.Producer.Retry.Max = 3
	if cfg.MaxRetries > 0 {
		sc.Producer.Retry.Max = cfg.MaxRetries
	}
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true

	if cfg.Idempotent {
		sc.Producer.Idempotent = true
		sc.Producer.RequiredAcks = sarama.WaitForAll
		sc.Net.MaxOpenRequests = 1
	}

	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}
	return sc, nil
}

func requiredAcks(value string) (sarama.RequiredAcks, error) {
	switch strings.ToLower(value) {
	case "", "all":
		return sarama.WaitForAll, nil
	case "local":
		return sarama.WaitForLocal, nil
	case "none":
		return sarama.NoResponse, nil
	default:
		return 0, fmt.Errorf("kafka: unknown required acks %q", value)
	}
}

// logFailures drains the error channel until the producer closes it.
func (p *Producer) logFailures() {
	defer close(p.drained)
	for perr := range p.producer.Errors() {
		if perr == nil || perr.Msg == nil {
			continue
		}
		fields := []zap.Field{
			zap.Error(perr.Err),
			zap.String("topic", perr.Msg.Topic),
		}
		if perr.Msg.Key != nil {
			if key, err := perr.Msg.Key.Encode(); err == nil {
				fields = append(fields, zap.String("account_id", string(key)))
			}
		}
		p.logger.Error("account event delivery failed", fields...)
	}
}

// Input is the channel events are enqueued on.
func (p *Producer) Input() chan<- *sarama.ProducerMessage {
	return p.producer.Input()
}

// Close flushes queued events and waits until every delivery failure is logged.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	p.producer.AsyncClose()
	<-p.drained
	return nil
}

// TopicName prefixes eventType with the configured topic prefix unless it already carries it.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
