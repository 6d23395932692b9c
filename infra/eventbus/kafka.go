package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/eventbus"
	"github.com/segmentio/kafka-go"
)

// KafkaEventBusConfig holds configuration for the Kafka event bus.
type KafkaEventBusConfig struct {
	GroupID     string
	TopicPrefix string
}

// DefaultKafkaEventBusConfig returns default configuration for KafkaEventBus.
func DefaultKafkaEventBusConfig() *KafkaEventBusConfig {
	return &KafkaEventBusConfig{
		GroupID:     "usdledger",
		TopicPrefix: "usdledger.events",
	}
}

// KafkaEventBus implements a Kafka-backed event bus with one topic per event
// type and a matching ".dlq." topic for messages no handler could process.
type KafkaEventBus struct {
	brokers []string
	writer  *kafka.Writer
	dialer  *kafka.Dialer
	config  *KafkaEventBusConfig
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	handlersMtx sync.RWMutex
	handlers    map[events.EventType][]eventbus.HandlerFunc
	readersMtx  sync.Mutex
	readers     map[events.EventType]*kafka.Reader
	topicsMtx   sync.Mutex
	topics      map[string]struct{}
}

// NewWithKafka connects to brokers and verifies the first one is reachable.
func NewWithKafka(brokers []string, logger *slog.Logger, config *KafkaEventBusConfig) (*KafkaEventBus, error) {
	brokers = cleanBrokers(brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka event bus: brokers are required")
	}
	if config == nil {
		config = DefaultKafkaEventBusConfig()
	}
	if config.GroupID == "" {
		config.GroupID = "usdledger"
	}
	if strings.TrimSpace(config.TopicPrefix) == "" {
		config.TopicPrefix = "usdledger.events"
	}

	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	b := &KafkaEventBus{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
			Balancer:               &kafka.Hash{},
		},
		dialer:   dialer,
		config:   config,
		logger:   logger.With("bus", "kafka"),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		readers:  make(map[events.EventType]*kafka.Reader),
		topics:   make(map[string]struct{}),
	}

	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("kafka event bus: connection failed: %w", err)
	}
	_ = conn.Close()

	b.logger.Info("kafka event bus initialized", "group_id", config.GroupID, "brokers", brokers)
	return b, nil
}

// Emit publishes the event to its topic, keyed by event type.
func (b *KafkaEventBus) Emit(ctx context.Context, event events.Event) error {
	raw, err := encode(event)
	if err != nil {
		return fmt.Errorf("kafka event bus: %w", err)
	}
	topic := b.topicFor(events.EventType(event.Type()))
	if err := b.ensureTopic(ctx, topic); err != nil {
		return err
	}
	err = b.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.Type()),
		Value: raw,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("kafka event bus: publish failed: %w", err)
	}
	return nil
}

// Register adds a handler and starts the topic reader on first use.
func (b *KafkaEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.handlersMtx.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.handlersMtx.Unlock()

	b.ensureConsumer(eventType)
}

func (b *KafkaEventBus) ensureConsumer(eventType events.EventType) {
	b.readersMtx.Lock()
	defer b.readersMtx.Unlock()
	if _, ok := b.readers[eventType]; ok {
		return
	}
	topic := b.topicFor(eventType)
	if err := b.ensureTopic(b.ctx, topic); err != nil {
		b.logger.Error("kafka ensure topic error", "error", err, "event_type", eventType)
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     b.config.GroupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      b.dialer,
	})
	b.readers[eventType] = reader

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(eventType, reader)
	}()
}

func (b *KafkaEventBus) consumeLoop(eventType events.EventType, reader *kafka.Reader) {
	for {
		msg, err := reader.FetchMessage(b.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || b.ctx.Err() != nil {
				return
			}
			b.logger.Error("kafka consume error", "error", err, "event_type", eventType)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if b.process(eventType, msg) {
			if err := reader.CommitMessages(b.ctx, msg); err != nil {
				b.logger.Error("kafka commit error", "error", err, "partition", msg.Partition, "offset", msg.Offset)
			}
		}
	}
}

// process returns whether the offset may be committed.
func (b *KafkaEventBus) process(eventType events.EventType, msg kafka.Message) bool {
	evt, err := decode(msg.Value)
	if err != nil {
		b.logger.Error("dropping undecodable message", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		return true
	}
	b.handlersMtx.RLock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
	b.handlersMtx.RUnlock()

	if dispatch(b.ctx, b.logger, evt, handlers) {
		return true
	}
	if err := b.publishToDLQ(eventType, msg.Value); err != nil {
		b.logger.Error("kafka message processing failed; will retry", "error", err, "offset", msg.Offset)
		return false
	}
	return true
}

func (b *KafkaEventBus) publishToDLQ(eventType events.EventType, raw []byte) error {
	topic := b.dlqTopicFor(eventType)
	if err := b.ensureTopic(b.ctx, topic); err != nil {
		return err
	}
	err := b.writer.WriteMessages(b.ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(eventType.String()),
		Value: raw,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("kafka event bus: dlq publish failed: %w", err)
	}
	b.logger.Warn("message sent to DLQ", "event_type", eventType, "dlq_topic", topic)
	return nil
}

func (b *KafkaEventBus) ensureTopic(ctx context.Context, topic string) error {
	b.topicsMtx.Lock()
	_, exists := b.topics[topic]
	b.topicsMtx.Unlock()
	if exists {
		return nil
	}
	conn, err := b.dialer.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka event bus: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	err = conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka event bus: create topic failed: %w", err)
	}
	b.topicsMtx.Lock()
	b.topics[topic] = struct{}{}
	b.topicsMtx.Unlock()
	return nil
}

func (b *KafkaEventBus) topicFor(eventType events.EventType) string {
	return b.config.TopicPrefix + "." + strings.ToLower(eventType.String())
}

func (b *KafkaEventBus) dlqTopicFor(eventType events.EventType) string {
	return b.config.TopicPrefix + ".dlq." + strings.ToLower(eventType.String())
}

// Close stops the readers and flushes the writer.
func (b *KafkaEventBus) Close() error {
	b.cancel()
	b.readersMtx.Lock()
	for _, r := range b.readers {
		_ = r.Close()
	}
	b.readersMtx.Unlock()
	b.wg.Wait()
	return b.writer.Close()
}

func cleanBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, br := range brokers {
		for _, p := range strings.Split(br, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

var _ eventbus.Bus = (*KafkaEventBus)(nil)
