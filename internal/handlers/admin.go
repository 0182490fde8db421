package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/amberline/fulfillment/internal/db"
	"github.com/amberline/fulfillment/internal/services"
	"github.com/amberline/fulfillment/internal/venipak"
)

// ShipOrder registers one order with the carrier and responds with the
// shipment identifiers.
func (h *Handlers) ShipOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid order id")
		return
	}

	result, err := h.shipments.CreateShipment(ctx, orderID)
	if err != nil {
		h.respondShipmentError(ctx, w, err)
		return
	}

	logger.Info("shipment created via admin",
		"order_id", orderID,
		"pack_no", result.PackNo,
		"route_class", result.RouteClass)

	h.respondJSON(ctx, w, http.StatusOK, map[string]string{
		"pack_no":         result.PackNo,
		"tracking_number": result.TrackingNumber,
		"tracking_url":    result.TrackingURL,
		"label_path":      result.LabelPath,
	})
}

func (h *Handlers) respondShipmentError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := h.loggerFromContext(ctx)

	var carrierErr *venipak.CarrierError
	var transportErr *venipak.TransportError

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		h.respondError(ctx, w, http.StatusNotFound, "order not found")
	case errors.Is(err, venipak.ErrNotConfigured):
		h.respondError(ctx, w, http.StatusServiceUnavailable, "carrier integration is not configured")
	case errors.Is(err, services.ErrShipmentExists), errors.Is(err, db.ErrInvalidStatusTransition):
		h.respondError(ctx, w, http.StatusConflict, err.Error())
	case errors.Is(err, venipak.ErrPickupPointCode):
		h.respondError(ctx, w, http.StatusUnprocessableEntity, "order is missing a pickup point code")
	case errors.As(err, &carrierErr):
		h.respondError(ctx, w, http.StatusUnprocessableEntity, "carrier rejected shipment: "+carrierErr.Reason)
	case errors.As(err, &transportErr):
		logger.Error("carrier request failed", "error", err)
		h.respondError(ctx, w, http.StatusBadGateway, "carrier request failed")
	default:
		logger.Error("shipment creation failed", "error", err)
		h.respondError(ctx, w, http.StatusInternalServerError, "shipment creation failed")
	}
}

// OrderLabel streams the shipping label PDF for an order.
func (h *Handlers) OrderLabel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid order id")
		return
	}

	pdf, err := h.shipments.Label(ctx, orderID)
	if err != nil {
		var transportErr *venipak.TransportError
		switch {
		case errors.Is(err, pgx.ErrNoRows), errors.Is(err, services.ErrLabelNotReady):
			h.respondError(ctx, w, http.StatusNotFound, "label not available")
		case errors.As(err, &transportErr):
			logger.Error("label fetch failed", "error", err)
			h.respondError(ctx, w, http.StatusBadGateway, "carrier request failed")
		default:
			logger.Error("label retrieval failed", "error", err)
			h.respondError(ctx, w, http.StatusInternalServerError, "label retrieval failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\"label.pdf\"")
	if _, err := w.Write(pdf); err != nil {
		logger.Warn("failed to stream label", "error", err)
	}
}

// RefreshTracking kicks off a tracking reconciliation run. The run continues
// after the response; 202 means accepted, not finished.
func (h *Handlers) RefreshTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	go func() {
		refreshCtx := context.WithoutCancel(ctx)
		if err := h.tracking.RefreshAll(refreshCtx); err != nil {
			h.loggerFromContext(refreshCtx).Error("tracking refresh failed", "error", err)
		}
	}()

	h.respondJSON(ctx, w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}
