package alerting

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a probe is let through.
	OpenTimeout time.Duration
}

// Breaker guards a sink with a circuit breaker so an unreachable broker fails fast.
type Breaker struct {
	next port.AlertPublisher
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreaker(name string, next port.AlertPublisher, settings BreakerSettings, log zerolog.Logger) *Breaker {
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("sink", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("alert sink circuit state changed")
		},
	})

	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Publish(ctx context.Context, alert domain.Alert) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Publish(ctx, alert)
	})
	return err
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
