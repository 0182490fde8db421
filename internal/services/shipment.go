package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/amberline/fulfillment/internal/db"
	"github.com/amberline/fulfillment/internal/email"
	"github.com/amberline/fulfillment/internal/labelstore"
	"github.com/amberline/fulfillment/internal/logging"
	"github.com/amberline/fulfillment/internal/models"
	"github.com/amberline/fulfillment/internal/observability"
	"github.com/amberline/fulfillment/internal/rates"
	"github.com/amberline/fulfillment/internal/venipak"
)

// ErrShipmentExists means the order already shipped under its pack number.
// A processing order whose pack number never reached the carrier is
// resubmitted instead.
var ErrShipmentExists = errors.New("order already has a shipment")

// ErrLabelNotReady means the carrier has not produced the label yet.
var ErrLabelNotReady = errors.New("shipping label not ready")

type shipmentOrderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AssignPackNumber(ctx context.Context, orderID uuid.UUID, accountID, firstNumber int) (string, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber, manifestID string) error
	SetLabelPath(ctx context.Context, orderID uuid.UUID, labelPath string) error
}

type carrierClient interface {
	CreateShipment(ctx context.Context, shipmentXML []byte) ([]byte, error)
	FetchLabel(ctx context.Context, packNo string) ([]byte, error)
}

type labelStore interface {
	Save(ctx context.Context, key string, pdf []byte) (string, error)
	Open(ctx context.Context, key string) ([]byte, error)
}

// ShipmentService registers orders with the carrier: pack number assignment,
// import XML submission, label retrieval and the customer notification.
type ShipmentService struct {
	orders        shipmentOrderStore
	carrier       carrierClient
	carrierConfig venipak.Config
	rates         *rates.Table
	labels        labelStore
	emailProvider email.Provider
	logger        *slog.Logger
	now           func() time.Time
}

func NewShipmentService(orders shipmentOrderStore, carrier carrierClient, carrierConfig venipak.Config, rateTable *rates.Table, labels labelStore, emailProvider email.Provider, logger *slog.Logger) *ShipmentService {
	return &ShipmentService{
		orders:        orders,
		carrier:       carrier,
		carrierConfig: carrierConfig,
		rates:         rateTable,
		labels:        labels,
		emailProvider: emailProvider,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *ShipmentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// ShipmentResult is what shipment creation hands back to the operator.
type ShipmentResult struct {
	PackNo         string
	TrackingNumber string
	TrackingURL    string
	LabelPath      string
	RouteClass     rates.Class
}

// CreateShipment registers one order with the carrier. The order must be in
// processing; an order that already shipped is refused, while one left with
// a reserved pack number by a failed attempt is resubmitted under it. Label
// retrieval and the customer email are best-effort: their failure never
// rolls back a shipment the carrier already accepted.
func (s *ShipmentService) CreateShipment(ctx context.Context, orderID uuid.UUID) (*ShipmentResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.shipment.create",
		sentry.WithOpName("service.shipment"),
		sentry.WithDescription("CreateShipment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := func(reason string) {
		meter.Count("shipment.create.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}
	meter.Count("shipment.create.requested", 1)

	if !s.carrierConfig.Configured() {
		recordFailure("carrier_not_configured")
		return nil, venipak.ErrNotConfigured
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		recordFailure("order_lookup_failed")
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status != models.StatusProcessing {
		if order.PackNo != "" {
			recordFailure("shipment_exists")
			return nil, fmt.Errorf("%w: %s", ErrShipmentExists, order.PackNo)
		}
		recordFailure("invalid_status")
		return nil, fmt.Errorf("%w: order %s is %s", db.ErrInvalidStatusTransition, order.OrderNumber, order.Status)
	}

	route := s.rates.Classify(order.ShippingCountry)
	if route.Fallback {
		logger.Warn("destination country not recognized, routing to home country",
			"order_number", order.OrderNumber,
			"shipping_country", order.ShippingCountry,
			"routed_to", route.Code)
	}
	meter.SetAttributes(attribute.String("route_class", string(route.Class)))

	// A pack number on a still-processing order means an earlier submission
	// never went through (carrier rejection, transport failure). The number
	// stays reserved for the order, so retries resubmit under it rather
	// than burning a fresh one or refusing the operator.
	packNo := order.PackNo
	if packNo == "" {
		packNo, err = s.orders.AssignPackNumber(ctx, orderID, s.carrierConfig.AccountID, s.carrierConfig.FirstPackNumber)
		if err != nil {
			recordFailure("pack_number_failed")
			return nil, fmt.Errorf("failed to assign pack number: %w", err)
		}
	} else {
		logger.Info("resubmitting shipment under reserved pack number",
			"order_number", order.OrderNumber,
			"pack_no", packNo)
	}

	manifestTitle := venipak.ManifestTitle(s.carrierConfig.AccountID, s.now())

	shipmentXML, err := venipak.BuildShipmentXML(order, packNo, manifestTitle, route)
	if err != nil {
		recordFailure("request_build_failed")
		if errors.Is(err, venipak.ErrPickupPointCode) {
			logger.Warn("order has pickup delivery without a pickup point code",
				"order_number", order.OrderNumber)
		}
		return nil, err
	}

	raw, err := s.carrier.CreateShipment(ctx, shipmentXML)
	if err != nil {
		recordFailure("carrier_request_failed")
		return nil, err
	}

	result, err := venipak.ParseCreateResponse(raw)
	if err != nil {
		var carrierErr *venipak.CarrierError
		if errors.As(err, &carrierErr) {
			recordFailure("carrier_rejected")
			logger.Warn("carrier rejected shipment",
				"order_number", order.OrderNumber,
				"pack_no", packNo,
				"reason", carrierErr.Reason)
		} else {
			recordFailure("response_parse_failed")
		}
		return nil, err
	}
	if result.Fallback {
		logger.Warn("carrier response had an unknown shape, assuming accepted",
			"order_number", order.OrderNumber, "pack_no", packNo)
	}

	// Logged before persistence: if the database write fails, this line is
	// what ties the order to the shipment the carrier already holds.
	logger.Info("carrier accepted shipment",
		"order_number", order.OrderNumber,
		"pack_no", packNo,
		"manifest", manifestTitle,
		"route_class", route.Class,
		"external_tracking", result.ExternalTracking,
		"courier", result.Courier)

	trackingNumber := result.ExternalTracking
	if trackingNumber == "" {
		trackingNumber = packNo
	}

	if err := s.orders.MarkShipped(ctx, orderID, trackingNumber, manifestTitle); err != nil {
		recordFailure("persist_failed")
		return nil, fmt.Errorf("carrier accepted pack %s but order update failed: %w", packNo, err)
	}
	meter.Count("shipment.created", 1)

	labelPath := s.fetchAndStoreLabel(ctx, order, packNo)
	s.sendConfirmation(ctx, order, trackingNumber)

	return &ShipmentResult{
		PackNo:         packNo,
		TrackingNumber: trackingNumber,
		TrackingURL:    venipak.TrackingURL(trackingNumber),
		LabelPath:      labelPath,
		RouteClass:     route.Class,
	}, nil
}

// Label returns the shipping label PDF for an order, preferring the stored
// copy and falling back to the carrier.
func (s *ShipmentService) Label(ctx context.Context, orderID uuid.UUID) ([]byte, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.PackNo == "" {
		return nil, fmt.Errorf("%w: order %s has no shipment", ErrLabelNotReady, order.OrderNumber)
	}

	key := labelstore.LabelKey(order.OrderNumber, order.PackNo)
	if pdf, err := s.labels.Open(ctx, key); err == nil {
		return pdf, nil
	} else if !errors.Is(err, labelstore.ErrNotFound) {
		return nil, err
	}

	pdf, err := s.carrier.FetchLabel(ctx, order.PackNo)
	if err != nil {
		return nil, err
	}
	if pdf == nil {
		return nil, fmt.Errorf("%w: pack %s", ErrLabelNotReady, order.PackNo)
	}

	if path, err := s.labels.Save(ctx, key, pdf); err != nil {
		s.loggerFromContext(ctx).Warn("failed to store label", "error", err, "pack_no", order.PackNo)
	} else if err := s.orders.SetLabelPath(ctx, orderID, path); err != nil {
		s.loggerFromContext(ctx).Warn("failed to record label path", "error", err, "pack_no", order.PackNo)
	}
	return pdf, nil
}

// fetchAndStoreLabel is the best-effort label pull right after shipment
// creation. Carriers often need a moment to render the PDF; a miss here is
// not an error, the operator endpoint retries on demand.
func (s *ShipmentService) fetchAndStoreLabel(ctx context.Context, order *models.Order, packNo string) string {
	logger := s.loggerFromContext(ctx)

	pdf, err := s.carrier.FetchLabel(ctx, packNo)
	if err != nil {
		logger.Warn("label fetch failed", "error", err, "pack_no", packNo)
		return ""
	}
	if pdf == nil {
		logger.Info("label not ready yet", "pack_no", packNo)
		return ""
	}

	path, err := s.labels.Save(ctx, labelstore.LabelKey(order.OrderNumber, packNo), pdf)
	if err != nil {
		logger.Warn("failed to store label", "error", err, "pack_no", packNo)
		return ""
	}
	if err := s.orders.SetLabelPath(ctx, order.ID, path); err != nil {
		logger.Warn("failed to record label path", "error", err, "pack_no", packNo)
	}
	return path
}

func (s *ShipmentService) sendConfirmation(ctx context.Context, order *models.Order, trackingNumber string) {
	if s.emailProvider == nil {
		return
	}

	info := &email.ShipmentInfo{
		OrderNumber:    order.OrderNumber,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		Carrier:        "Venipak",
		TrackingNumber: trackingNumber,
		TrackingURL:    venipak.TrackingURL(trackingNumber),
		ShippedDate:    s.now().Format("January 2, 2006"),
	}
	if err := email.SendShipmentConfirmation(ctx, s.emailProvider, info); err != nil {
		s.loggerFromContext(ctx).Warn("failed to send shipment confirmation",
			"error", err, "order_number", order.OrderNumber)
	}
}
