package ledger

import (
	"time"

	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"go.uber.org/zap"
)

// DefaultTopic is where TransactionCommitted events go unless WithPublisher overrides it.
const DefaultTopic = "ledger.transaction_committed"

type options struct {
	logger    *zap.Logger
	now       func() time.Time
	publisher interfaces.EventPublisher
	topic     string
}

// Option configures a Directory, Ledger or BalanceCalculator.
type Option func(*options)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the creation-timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPublisher publishes TransactionCommitted events to topic after each fresh commit.
func WithPublisher(publisher interfaces.EventPublisher, topic string) Option {
	return func(o *options) {
		o.publisher = publisher
		if topic != "" {
			o.topic = topic
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		topic:  DefaultTopic,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
