package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/amberline/fulfillment/internal/cache"
	"github.com/amberline/fulfillment/internal/email"
	"github.com/amberline/fulfillment/internal/logging"
	"github.com/amberline/fulfillment/internal/models"
	"github.com/amberline/fulfillment/internal/observability"
	"github.com/amberline/fulfillment/internal/venipak"
)

// Batch size per refresh run; the poller comes back around anyway.
const trackingBatchLimit = 200

type trackingOrderStore interface {
	ListTrackable(ctx context.Context, limit int) ([]*models.Order, error)
	RecordTrackingStatus(ctx context.Context, orderID uuid.UUID, status string, at time.Time) error
	MarkShippedFromTracking(ctx context.Context, orderID uuid.UUID, at time.Time) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID, at time.Time) error
}

type trackingCarrier interface {
	FetchTracking(ctx context.Context, packNo string) ([]byte, error)
}

// TrackingService reconciles order state with carrier tracking. Every write
// it makes is idempotent: re-running a refresh over the same events changes
// nothing, and a delivered order never moves backwards.
type TrackingService struct {
	orders        trackingOrderStore
	carrier       trackingCarrier
	carrierConfig venipak.Config
	cache         cache.Provider
	emailProvider email.Provider
	pollInterval  time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func NewTrackingService(orders trackingOrderStore, carrier trackingCarrier, carrierConfig venipak.Config, cacheProvider cache.Provider, emailProvider email.Provider, pollInterval time.Duration, logger *slog.Logger) *TrackingService {
	return &TrackingService{
		orders:        orders,
		carrier:       carrier,
		carrierConfig: carrierConfig,
		cache:         cacheProvider,
		emailProvider: emailProvider,
		pollInterval:  pollInterval,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *TrackingService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// RefreshAll polls the carrier for every trackable order. Per-order failures
// are logged and skipped so one bad shipment cannot stall the batch.
func (s *TrackingService) RefreshAll(ctx context.Context) error {
	span := sentry.StartSpan(
		ctx,
		"service.tracking.refresh_all",
		sentry.WithOpName("service.tracking"),
		sentry.WithDescription("RefreshAll"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	if !s.carrierConfig.Configured() {
		return venipak.ErrNotConfigured
	}

	orders, err := s.orders.ListTrackable(ctx, trackingBatchLimit)
	if err != nil {
		meter.Count("tracking.refresh.failed", 1, sentry.WithAttributes(
			attribute.String("reason", "list_failed"),
		))
		return err
	}

	refreshed := 0
	for _, order := range orders {
		if s.throttled(ctx, order.PackNo) {
			continue
		}
		if err := s.refreshOrder(ctx, order); err != nil {
			logger.Warn("tracking refresh failed",
				"error", err,
				"order_number", order.OrderNumber,
				"pack_no", order.PackNo)
			continue
		}
		refreshed++
		s.markPolled(ctx, order.PackNo)
	}

	meter.Count("tracking.refresh.completed", 1, sentry.WithAttributes(
		attribute.Int("orders_refreshed", refreshed),
	))
	logger.Debug("tracking refresh finished", "candidates", len(orders), "refreshed", refreshed)
	return nil
}

func (s *TrackingService) refreshOrder(ctx context.Context, order *models.Order) error {
	raw, err := s.carrier.FetchTracking(ctx, order.PackNo)
	if err != nil {
		return err
	}

	event, err := venipak.ParseTrackingResponse(raw)
	if err != nil {
		return err
	}
	if event == nil {
		// Carrier has not scanned the parcel yet.
		return nil
	}

	changes := applyTracking(order, event, s.now())
	logger := s.loggerFromContext(ctx)

	if changes.recordStatus {
		if err := s.orders.RecordTrackingStatus(ctx, order.ID, changes.status, changes.at); err != nil {
			return err
		}
		logger.Info("tracking status updated",
			"order_number", order.OrderNumber,
			"pack_no", order.PackNo,
			"status", changes.status)
	}
	if changes.markShipped {
		if err := s.orders.MarkShippedFromTracking(ctx, order.ID, changes.at); err != nil {
			return err
		}
	}
	if changes.markDelivered {
		if err := s.orders.MarkDelivered(ctx, order.ID, changes.at); err != nil {
			return err
		}
		logger.Info("order delivered",
			"order_number", order.OrderNumber,
			"pack_no", order.PackNo)
		// No notice for closed orders: a cancelled sale's parcel arriving
		// is a returns conversation, not a delivery confirmation.
		if !order.IsClosed() {
			s.sendDeliveryNotice(ctx, order, changes.at)
		}
	}

	return nil
}

func (s *TrackingService) throttled(ctx context.Context, packNo string) bool {
	if s.cache == nil {
		return false
	}
	_, err := s.cache.Get(ctx, cache.TrackingPollKey(packNo))
	return err == nil
}

func (s *TrackingService) markPolled(ctx context.Context, packNo string) {
	if s.cache == nil || s.pollInterval <= 0 {
		return
	}
	if err := s.cache.Set(ctx, cache.TrackingPollKey(packNo), "1", s.pollInterval); err != nil {
		s.logger.Debug("failed to record tracking poll", "error", err, "pack_no", packNo)
	}
}

func (s *TrackingService) sendDeliveryNotice(ctx context.Context, order *models.Order, at time.Time) {
	if s.emailProvider == nil {
		return
	}

	info := &email.ShipmentInfo{
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Carrier:       "Venipak",
		DeliveredDate: at.Format("January 2, 2006"),
	}
	if err := email.SendDeliveryNotice(ctx, s.emailProvider, info); err != nil {
		s.loggerFromContext(ctx).Warn("failed to send delivery notice",
			"error", err, "order_number", order.OrderNumber)
	}
}

// trackingChanges is the set of writes one tracking event produces.
type trackingChanges struct {
	status        string
	at            time.Time
	recordStatus  bool
	markShipped   bool
	markDelivered bool
}

// applyTracking decides what a tracking event means for an order. Pure so the
// reconciliation rules are testable without a database.
func applyTracking(order *models.Order, event *venipak.TrackingEvent, now time.Time) trackingChanges {
	status := strings.TrimSpace(event.Status)
	if status == "" {
		return trackingChanges{}
	}

	at := event.Date.Time
	if at.IsZero() {
		at = now
	}

	changes := trackingChanges{
		status:       status,
		at:           at,
		recordStatus: status != order.ShippingStatus,
	}

	switch {
	case isDeliveredStatus(status):
		// Only the first sighting records the delivery timestamp. The
		// lifecycle guard lives in the store: a closed order keeps its
		// status, but its parcel's fate is still written down.
		changes.markDelivered = order.ShippingDeliveredAt.IsZero()
	case isTransitStatus(status) && order.Status == models.StatusProcessing:
		// Movement seen before the operator marked the order shipped.
		changes.markShipped = true
	}

	return changes
}

// Exact carrier vocabulary for a completed delivery, in the languages the
// carrier serves.
var deliveredStatuses = map[string]bool{
	"delivered":         true,
	"pristatyta":        true,
	"piegādāts":         true,
	"kohale toimetatud": true,
}

// Statuses that mention delivery but describe movement, not completion.
var transitTerms = []string{
	"in transit",
	"out for delivery",
	"at terminal",
	"sorting",
}

func isTransitStatus(status string) bool {
	normalized := strings.ToLower(strings.TrimSpace(status))
	for _, term := range transitTerms {
		if strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

func isDeliveredStatus(status string) bool {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if deliveredStatuses[normalized] {
		return true
	}
	if !strings.Contains(normalized, "deliver") {
		return false
	}
	for _, term := range transitTerms {
		if strings.Contains(normalized, term) {
			return false
		}
	}
	return true
}
