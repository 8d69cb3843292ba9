package events

import (
	"context"
	"time"

	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig controls when a BreakerPublisher stops calling the broker.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// DefaultBreakerConfig trips after five failures in a row and probes again after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "event-publisher",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerPublisher fails fast with gobreaker.ErrOpenState while the wrapped
// publisher is considered down, so commits do not wait on a dead broker.
type BreakerPublisher struct {
	next    interfaces.EventPublisher
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerPublisher(next interfaces.EventPublisher, cfg BreakerConfig, logger *zap.Logger) *BreakerPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("publisher circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerPublisher{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (p *BreakerPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.next.Publish(ctx, topic, key, event)
	})
	return err
}

// State reports the breaker state, e.g. "closed" or "open".
func (p *BreakerPublisher) State() string {
	return p.breaker.State().String()
}

var _ interfaces.EventPublisher = (*BreakerPublisher)(nil)
