package alerting

import (
	"context"
	"errors"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

// Fanout delivers every alert to all sinks; one failing sink does not stop the others.
type Fanout struct {
	sinks []port.AlertPublisher
}

func NewFanout(sinks ...port.AlertPublisher) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Publish(ctx context.Context, alert domain.Alert) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
