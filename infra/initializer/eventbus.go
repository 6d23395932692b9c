package initializer

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	infraeventbus "github.com/amirasaad/usdledger/infra/eventbus"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/eventbus"
)

const (
	asyncWorkers = 4
	asyncBuffer  = 256
)

// NewEventBus picks the bus by EVENT_BUS_DRIVER. A broker that is
// configured but unreachable degrades to the in-process bus; a broker that
// is selected but not configured is an error.
func NewEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, io.Closer, error) {
	driver := "memory"
	if cfg.EventBus != nil && cfg.EventBus.Driver != "" {
		driver = strings.ToLower(cfg.EventBus.Driver)
	}
	fallback := func(err error) (eventbus.Bus, io.Closer, error) {
		logger.Warn("event bus unavailable; falling back to memory", "driver", driver, "error", err)
		bus := infraeventbus.NewWithMemoryAsync(logger, asyncWorkers, asyncBuffer)
		return bus, bus, nil
	}

	switch driver {
	case "memory":
		bus := infraeventbus.NewWithMemoryAsync(logger, asyncWorkers, asyncBuffer)
		return bus, bus, nil
	case "redis":
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, nil, fmt.Errorf("event bus driver redis needs REDIS_URL")
		}
		bus, err := infraeventbus.NewWithRedis(cfg.Redis.URL, logger, &infraeventbus.RedisEventBusConfig{
			Group:    cfg.EventBus.RedisGroup,
			MaxRetry: cfg.EventBus.RedisMaxRetry,
		})
		if err != nil {
			return fallback(err)
		}
		return bus, bus, nil
	case "kafka":
		if len(cfg.EventBus.KafkaBrokers) == 0 {
			return nil, nil, fmt.Errorf("event bus driver kafka needs EVENT_BUS_KAFKA_BROKERS")
		}
		bus, err := infraeventbus.NewWithKafka(cfg.EventBus.KafkaBrokers, logger, &infraeventbus.KafkaEventBusConfig{
			GroupID:     cfg.EventBus.KafkaGroupID,
			TopicPrefix: cfg.EventBus.KafkaTopic,
		})
		if err != nil {
			return fallback(err)
		}
		return bus, bus, nil
	default:
		return nil, nil, fmt.Errorf("unknown event bus driver %q", driver)
	}
}
