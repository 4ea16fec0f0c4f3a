package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/pkg/clients/webhook"
)

// Dispatcher receives transition events from the lifecycle core. The core
// does not depend on delivery success; implementations swallow failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.TransitionEvent)
}

// WebhookDispatcher forwards events to a downstream webhook and logs
// delivery failures without propagating them.
type WebhookDispatcher struct {
	client webhook.Client
	logger *zap.Logger
}

// NewWebhookDispatcher wires a dispatcher around the webhook client.
func NewWebhookDispatcher(client webhook.Client, logger *zap.Logger) *WebhookDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookDispatcher{client: client, logger: logger}
}

// Dispatch posts the event, bounded by its own timeout so a slow receiver
// cannot stall a lifecycle transition.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event models.TransitionEvent) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := d.client.PostEvent(ctxWithTimeout, event); err != nil {
		d.logger.Warn("transition event delivery failed",
			zap.Error(err),
			zap.String("entity_kind", string(event.EntityKind)),
			zap.String("entity_id", event.EntityID),
			zap.String("new_state", event.NewState))
		return
	}

	d.logger.Debug("transition event dispatched",
		zap.String("entity_kind", string(event.EntityKind)),
		zap.String("entity_id", event.EntityID),
		zap.String("new_state", event.NewState))
}

// NopDispatcher drops all events. Used when no webhook is configured.
type NopDispatcher struct{}

// Dispatch discards the event.
func (NopDispatcher) Dispatch(ctx context.Context, event models.TransitionEvent) {}
