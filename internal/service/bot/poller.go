package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/domain/models"
)

// UpdateSource is the long-polling half of the chat transport.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64) ([]models.Update, error)
}

// Poller feeds updates from getUpdates to the service, in order.
type Poller struct {
	source  UpdateSource
	service MessagingService
	logger  *zap.Logger
	backoff time.Duration
	offset  int64
}

// NewPoller wires a poller.
func NewPoller(source UpdateSource, service MessagingService, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{source: source, service: service, logger: logger, backoff: 3 * time.Second}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("polling for updates")
	for {
		if ctx.Err() != nil {
			p.logger.Info("poller stopped")
			return
		}

		updates, err := p.source.GetUpdates(ctx, p.offset)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			p.logger.Warn("failed to fetch updates", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			if err := p.service.HandleUpdate(ctx, u); err != nil {
				p.logger.Error("failed to handle update", zap.Int64("update_id", u.UpdateID), zap.Error(err))
			}
		}
	}
}
