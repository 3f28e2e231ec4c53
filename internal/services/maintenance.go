package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bakehouse/cart-service/internal/config"
	"github.com/bakehouse/cart-service/internal/events"
	"github.com/bakehouse/cart-service/internal/metrics"
	"github.com/bakehouse/cart-service/internal/models"
	repository "github.com/bakehouse/cart-service/internal/repositories"
	"github.com/bakehouse/cart-service/pkg/sendgrid"
)

// SweepStats summarizes one maintenance pass.
type SweepStats struct {
	Expired       int64 `json:"expired"`
	Abandoned     int64 `json:"abandoned"`
	TerminalFreed int64 `json:"terminal_freed"`
	EmptyFreed    int64 `json:"empty_freed"`
	ItemsPurged   int64 `json:"items_purged"`
}

// MaintenanceService runs the periodic lifecycle sweep: expiring overdue
// carts, flagging abandonment, purging what nobody will come back for, and
// nudging customers who left a non-empty cart behind.
type MaintenanceService interface {
	RunSweep(ctx context.Context) (SweepStats, error)
	Start(ctx context.Context)
}

type maintenanceService struct {
	repo     repository.CartRepository
	producer events.Producer
	email    sendgrid.EmailService
	cfg      *config.Config
}

func NewMaintenanceService(
	repo repository.CartRepository,
	producer events.Producer,
	email sendgrid.EmailService,
	cfg *config.Config,
) MaintenanceService {
	return &maintenanceService{
		repo:     repo,
		producer: producer,
		email:    email,
		cfg:      cfg,
	}
}

// Start blocks, sweeping on the configured interval until ctx is cancelled.
func (s *maintenanceService) Start(ctx context.Context) {
	interval := s.cfg.CartExpiration.SweepInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Cart maintenance sweeper started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Cart maintenance sweeper stopped")

			return
		case <-ticker.C:
			if _, err := s.RunSweep(ctx); err != nil {
				slog.Error("Cart maintenance sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunSweep executes every maintenance rule once. Each rule runs even when an
// earlier one fails; the first error is reported after the pass completes.
func (s *maintenanceService) RunSweep(ctx context.Context) (SweepStats, error) {
	now := time.Now()
	exp := s.cfg.CartExpiration

	var stats SweepStats

	var firstErr error

	record := func(step string, err error) {
		if err != nil {
			slog.Error("Sweep step failed", slog.String("step", step), slog.String("error", err.Error()))

			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", step, err)
			}
		}
	}

	expired, err := s.repo.MarkExpiredCarts(ctx, now)
	record("expire", err)

	stats.Expired = expired
	metrics.CartsExpired(expired)

	abandoned, err := s.repo.MarkAbandonedCarts(ctx, now, now.Add(-exp.AbandonmentAfter))
	record("abandon", err)

	stats.Abandoned = abandoned
	metrics.CartsAbandoned(abandoned)

	if abandoned > 0 {
		s.notifyAbandoned(ctx, now)
	}

	terminal, err := s.repo.DeleteTerminalCartsBefore(ctx, now.Add(-exp.CleanupAfter))
	record("cleanup_terminal", err)

	stats.TerminalFreed = terminal

	empty, err := s.repo.DeleteEmptyCartsBefore(ctx, now.Add(-exp.EmptyCartAfter))
	record("cleanup_empty", err)

	stats.EmptyFreed = empty

	purged, err := s.repo.PurgeRemovedItemsBefore(ctx, now.Add(-exp.RemovedItemsTTL))
	record("purge_items", err)

	stats.ItemsPurged = purged

	slog.Info("Cart maintenance sweep finished",
		slog.Int64("expired", stats.Expired),
		slog.Int64("abandoned", stats.Abandoned),
		slog.Int64("terminalFreed", stats.TerminalFreed),
		slog.Int64("emptyFreed", stats.EmptyFreed),
		slog.Int64("itemsPurged", stats.ItemsPurged),
	)

	return stats, firstErr
}

// notifyAbandoned emits events for carts the pass just flagged and emails
// customers we know how to reach. All of it is best-effort.
func (s *maintenanceService) notifyAbandoned(ctx context.Context, since time.Time) {
	carts, err := s.repo.FindAbandonedCartsSince(ctx, since.Add(-time.Minute))
	if err != nil {
		slog.Warn("Could not load freshly abandoned carts", slog.String("error", err.Error()))

		return
	}

	for _, cart := range carts {
		if err := s.producer.Publish(ctx, events.CartEvent{
			Type:        events.EventCartAbandoned,
			CartID:      cart.ID,
			UserID:      cart.UserID,
			SessionID:   cart.SessionID,
			ItemCount:   cart.ItemCount,
			TotalAmount: cart.TotalAmount,
		}); err != nil {
			slog.Warn("Failed to publish abandonment event",
				slog.String("cartId", cart.ID.String()),
				slog.String("error", err.Error()),
			)
		}

		if cart.CustomerEmail == "" || s.email == nil {
			continue
		}

		if err := s.email.Send(ctx, reminderEmail(cart)); err != nil {
			slog.Warn("Failed to send abandonment reminder",
				slog.String("cartId", cart.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func reminderEmail(cart *models.Cart) *models.EmailNotificationRequest {
	subject := "You left something in your cart"
	content := fmt.Sprintf(
		"Hi %s,\n\nYour cart with %d item(s) totaling %.2f %s is still waiting for you. "+
			"Come back and finish your order before it expires.\n",
		cart.CustomerName, cart.ItemCount, cart.TotalAmount, cart.CurrencyCode)

	return &models.EmailNotificationRequest{
		To:      cart.CustomerEmail,
		Subject: subject,
		Content: content,
	}
}
