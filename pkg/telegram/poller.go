package telegram

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// UpdateHandler consumes one update. It must not block the poller for long.
type UpdateHandler func(update Update)

// Poller pulls updates with getUpdates when no webhook is configured.
type Poller struct {
	service ServiceInterface
	handler UpdateHandler
	timeout time.Duration
	logger  *zap.Logger
}

func NewPoller(service ServiceInterface, handler UpdateHandler, timeout time.Duration, logger *zap.Logger) *Poller {
	return &Poller{service: service, handler: handler, timeout: timeout, logger: logger}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if err := p.service.DeleteWebhook(ctx); err != nil {
		p.logger.Warn("Could not delete webhook before polling", zap.Error(err))
	}

	var offset int64
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := p.service.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			p.logger.Error("getUpdates failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.handler(u)
		}
	}
}
