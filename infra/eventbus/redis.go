package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/eventbus"
	"github.com/redis/go-redis/v9"
)

// RedisEventBusConfig tunes the Redis Streams bus.
type RedisEventBusConfig struct {
	Group string
	// MaxRetry is how many deliveries a failing message gets before it moves
	// to the dead letter stream.
	MaxRetry int
	Block    time.Duration
}

// RedisEventBus implements the bus on Redis Streams with one stream and one
// consumer group per event type.
type RedisEventBus struct {
	client *redis.Client
	config RedisEventBusConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	handlers map[events.EventType][]eventbus.HandlerFunc
	started  map[events.EventType]bool
}

// NewWithRedis connects to url (e.g. "redis://localhost:6379").
func NewWithRedis(url string, logger *slog.Logger, config *RedisEventBusConfig) (*RedisEventBus, error) {
	if url == "" {
		return nil, fmt.Errorf("redis event bus: url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis event bus: invalid URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}
	return newRedisBus(client, logger, config), nil
}

func newRedisBus(client *redis.Client, logger *slog.Logger, config *RedisEventBusConfig) *RedisEventBus {
	cfg := RedisEventBusConfig{Group: "usdledger", MaxRetry: 3, Block: 5 * time.Second}
	if config != nil {
		if config.Group != "" {
			cfg.Group = config.Group
		}
		if config.MaxRetry > 0 {
			cfg.MaxRetry = config.MaxRetry
		}
		if config.Block > 0 {
			cfg.Block = config.Block
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		config:   cfg,
		logger:   logger.With("bus", "redis"),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		started:  make(map[events.EventType]bool),
	}
}

// Emit appends the event to its stream.
func (b *RedisEventBus) Emit(ctx context.Context, event events.Event) error {
	raw, err := encode(event)
	if err != nil {
		return fmt.Errorf("redis event bus: %w", err)
	}
	stream := nameFor("events", events.EventType(event.Type()))
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"event": string(raw)},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}
	return nil
}

// Register adds a handler and starts the stream consumer on first use.
func (b *RedisEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	start := !b.started[eventType]
	b.started[eventType] = true
	b.mu.Unlock()

	if !start {
		return
	}
	stream := nameFor("events", eventType)
	err := b.client.XGroupCreateMkStream(b.ctx, stream, b.config.Group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		b.logger.Error("create consumer group failed", "stream", stream, "error", err)
	}
	consumer := fmt.Sprintf("%s-%d", nameFor("consumer", eventType), time.Now().UnixNano())
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(eventType, stream, consumer)
	}()
	b.logger.Info("handler registered", "event_type", eventType, "consumer", consumer)
}

func (b *RedisEventBus) consume(eventType events.EventType, stream, consumer string) {
	for {
		if b.ctx.Err() != nil {
			return
		}
		res, err := b.client.XReadGroup(b.ctx, &redis.XReadGroupArgs{
			Group:    b.config.Group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    b.config.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || b.ctx.Err() != nil {
				continue
			}
			b.logger.Error("error reading from stream", "stream", stream, "error", err)
			time.Sleep(time.Second)
			continue
		}
		for _, s := range res {
			for _, msg := range s.Messages {
				b.handleMessage(eventType, stream, msg)
			}
		}
	}
}

func (b *RedisEventBus) handleMessage(eventType events.EventType, stream string, msg redis.XMessage) {
	raw, _ := msg.Values["event"].(string)
	evt, err := decode([]byte(raw))
	if err != nil {
		b.logger.Error("dropping undecodable message", "stream", stream, "id", msg.ID, "error", err)
		b.pushToDLQ(eventType, msg.Values, 0)
		b.ack(stream, msg.ID)
		return
	}

	b.mu.RLock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	attempts := 0
	for attempts < b.config.MaxRetry {
		attempts++
		if dispatch(b.ctx, b.logger, evt, handlers) {
			b.ack(stream, msg.ID)
			return
		}
	}
	b.pushToDLQ(eventType, msg.Values, attempts)
	b.ack(stream, msg.ID)
}

func (b *RedisEventBus) ack(stream, id string) {
	if err := b.client.XAck(b.ctx, stream, b.config.Group, id).Err(); err != nil {
		b.logger.Error("failed to acknowledge message", "stream", stream, "id", id, "error", err)
	}
}

// pushToDLQ keeps the raw message for inspection or replay.
func (b *RedisEventBus) pushToDLQ(eventType events.EventType, values map[string]any, attempts int) {
	dlq := nameFor("dlq", eventType)
	fields := map[string]any{"attempts": strconv.Itoa(attempts)}
	for k, v := range values {
		fields[k] = v
	}
	if err := b.client.XAdd(b.ctx, &redis.XAddArgs{Stream: dlq, Values: fields}).Err(); err != nil {
		b.logger.Error("failed to push to DLQ", "stream", dlq, "error", err)
		return
	}
	b.logger.Warn("event pushed to DLQ", "stream", dlq, "attempts", attempts)
}

// Close stops the consumers and closes the client.
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
