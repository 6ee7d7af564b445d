package port

import (
	"context"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type AlertPublisher interface {
	// Publish delivers an alert to the operational alerting channel
	Publish(ctx context.Context, alert domain.Alert) error
}
