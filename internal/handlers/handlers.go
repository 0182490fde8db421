package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amberline/fulfillment/internal/config"
	"github.com/amberline/fulfillment/internal/logging"
	"github.com/amberline/fulfillment/internal/services"
)

// Handlers provides HTTP request handlers for the fulfillment API.
type Handlers struct {
	config    *config.Config
	db        *pgxpool.Pool
	shipments shipmentService
	tracking  trackingService
	logger    *slog.Logger
}

type shipmentService interface {
	CreateShipment(ctx context.Context, orderID uuid.UUID) (*services.ShipmentResult, error)
	Label(ctx context.Context, orderID uuid.UUID) ([]byte, error)
}

type trackingService interface {
	RefreshAll(ctx context.Context) error
}

type Dependencies struct {
	Config          *config.Config
	DB              *pgxpool.Pool
	ShipmentService shipmentService
	TrackingService trackingService
	Logger          *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.ShipmentService == nil {
		return nil, fmt.Errorf("handlers dependencies: shipmentService is required")
	}
	if deps.TrackingService == nil {
		return nil, fmt.Errorf("handlers dependencies: trackingService is required")
	}

	return &Handlers{
		config:    deps.Config,
		db:        deps.DB,
		shipments: deps.ShipmentService,
		tracking:  deps.TrackingService,
		logger:    logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	h.respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFromContext(ctx).Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.respondJSON(ctx, w, status, map[string]string{"error": message})
}
