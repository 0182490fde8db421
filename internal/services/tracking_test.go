package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amberline/fulfillment/internal/models"
	"github.com/amberline/fulfillment/internal/venipak"
)

func TestIsDeliveredStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status string
		want   bool
	}{
		{"Delivered", true},
		{"delivered", true},
		{"Pristatyta", true},
		{"Piegādāts", true},
		{"Kohale toimetatud", true},
		{"Delivered to neighbour", true},
		{"Out for delivery", false},
		{"In transit", false},
		{"At terminal", false},
		{"Sorting", false},
		{"Picked up", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isDeliveredStatus(tt.status); got != tt.want {
			t.Errorf("isDeliveredStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func trackableOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-10000042",
		PackNo:      "V12345E1000000",
		Status:      status,
	}
}

func trackingEvent(status string, at time.Time) *venipak.TrackingEvent {
	return &venipak.TrackingEvent{
		Status: status,
		Date:   venipak.TrackingTime{Time: at},
	}
}

func TestApplyTracking(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	eventTime := time.Date(2026, time.August, 27, 9, 30, 0, 0, time.UTC)

	t.Run("scan on processing order marks shipped", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusProcessing), trackingEvent("In transit", eventTime), now)
		if !changes.recordStatus || !changes.markShipped || changes.markDelivered {
			t.Fatalf("changes = %+v", changes)
		}
		if !changes.at.Equal(eventTime) {
			t.Fatalf("at = %v, want the event timestamp", changes.at)
		}
	})

	t.Run("out for delivery is movement, not delivery", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusProcessing), trackingEvent("Out for delivery", eventTime), now)
		if changes.markDelivered {
			t.Fatalf("out for delivery must not complete the order")
		}
		if !changes.markShipped {
			t.Fatalf("out for delivery on a processing order must mark it shipped")
		}
	})

	t.Run("delivery completes a shipped order", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusShipped), trackingEvent("Pristatyta", eventTime), now)
		if !changes.markDelivered {
			t.Fatalf("changes = %+v", changes)
		}
		if changes.markShipped {
			t.Fatalf("delivery must not also re-mark shipped")
		}
	})

	t.Run("repeated delivery event is a no-op", func(t *testing.T) {
		t.Parallel()

		order := trackableOrder(models.StatusCompleted)
		order.ShippingStatus = "Delivered"
		order.ShippingDeliveredAt = eventTime

		changes := applyTracking(order, trackingEvent("Delivered", eventTime), now)
		if changes.recordStatus || changes.markShipped || changes.markDelivered {
			t.Fatalf("changes = %+v, want none", changes)
		}
	})

	t.Run("cancelled order records delivery without moving", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusCancelled), trackingEvent("Delivered", eventTime), now)
		if changes.markShipped {
			t.Fatalf("changes = %+v, cancelled orders never move to shipped", changes)
		}
		if !changes.markDelivered {
			t.Fatalf("the parcel's delivery must still be written down")
		}
		if !changes.recordStatus {
			t.Fatalf("the carrier status text is still worth recording")
		}
	})

	t.Run("cancelled order in transit only records status", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusCancelled), trackingEvent("In transit", eventTime), now)
		if changes.markShipped || changes.markDelivered {
			t.Fatalf("changes = %+v, want status record only", changes)
		}
	})

	t.Run("unknown status is recorded only", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusShipped), trackingEvent("Customs hold", eventTime), now)
		if !changes.recordStatus || changes.markShipped || changes.markDelivered {
			t.Fatalf("changes = %+v", changes)
		}
	})

	t.Run("non-movement status does not mark shipped", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusProcessing), trackingEvent("Label created", eventTime), now)
		if changes.markShipped || changes.markDelivered {
			t.Fatalf("changes = %+v, want status record only", changes)
		}
		if !changes.recordStatus {
			t.Fatalf("status must still be recorded")
		}
	})

	t.Run("missing event timestamp falls back to now", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusShipped), trackingEvent("In transit", time.Time{}), now)
		if !changes.at.Equal(now) {
			t.Fatalf("at = %v, want now", changes.at)
		}
	})

	t.Run("empty status changes nothing", func(t *testing.T) {
		t.Parallel()

		changes := applyTracking(trackableOrder(models.StatusShipped), trackingEvent("   ", eventTime), now)
		if changes.recordStatus || changes.markShipped || changes.markDelivered {
			t.Fatalf("changes = %+v", changes)
		}
	})
}

type fakeTrackingStore struct {
	orders []*models.Order

	recorded  []string
	shipped   int
	delivered int
}

func (f *fakeTrackingStore) ListTrackable(context.Context, int) ([]*models.Order, error) {
	return f.orders, nil
}

func (f *fakeTrackingStore) RecordTrackingStatus(_ context.Context, _ uuid.UUID, status string, _ time.Time) error {
	f.recorded = append(f.recorded, status)
	return nil
}

func (f *fakeTrackingStore) MarkShippedFromTracking(context.Context, uuid.UUID, time.Time) error {
	f.shipped++
	return nil
}

func (f *fakeTrackingStore) MarkDelivered(context.Context, uuid.UUID, time.Time) error {
	f.delivered++
	return nil
}

type fakeTrackingCarrier struct {
	payloads map[string][]byte
	calls    int
}

func (f *fakeTrackingCarrier) FetchTracking(_ context.Context, packNo string) ([]byte, error) {
	f.calls++
	return f.payloads[packNo], nil
}

func TestRefreshAll(t *testing.T) {
	t.Parallel()

	shipped := trackableOrder(models.StatusShipped)
	processing := trackableOrder(models.StatusProcessing)
	processing.PackNo = "V12345E1000001"
	unknown := trackableOrder(models.StatusShipped)
	unknown.PackNo = "V12345E1000002"
	cancelled := trackableOrder(models.StatusCancelled)
	cancelled.PackNo = "V12345E1000003"

	store := &fakeTrackingStore{orders: []*models.Order{shipped, processing, unknown, cancelled}}
	carrier := &fakeTrackingCarrier{payloads: map[string][]byte{
		"V12345E1000000": []byte(`[{"status":"Delivered","date":"2026-08-27 09:30:00"}]`),
		"V12345E1000001": []byte(`[{"status":"In transit","date":"2026-08-27 08:00:00"}]`),
		"V12345E1000002": []byte(``),
		"V12345E1000003": []byte(`[{"status":"Delivered","date":"2026-08-27 11:00:00"}]`),
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewTrackingService(store, carrier, testCarrierConfig(), nil, nil, 0, logger)

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() failed: %v", err)
	}

	if carrier.calls != 4 {
		t.Errorf("carrier calls = %d, want 4", carrier.calls)
	}
	if store.delivered != 2 {
		t.Errorf("delivered = %d, want 2: the cancelled order's parcel arrived too", store.delivered)
	}
	if store.shipped != 1 {
		t.Errorf("shipped = %d, want 1", store.shipped)
	}
	if len(store.recorded) != 3 {
		t.Errorf("recorded statuses = %v, want three", store.recorded)
	}
}
