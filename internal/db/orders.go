package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amberline/fulfillment/internal/models"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

var ErrInvalidStatusTransition = errors.New("invalid order status transition")

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, order_number, customer_name, customer_email,
	shipping_country, shipping_address, shipping_city, shipping_postal_code,
	shipping_phone, shipping_method, pickup_point,
	subtotal_cents, shipping_cents, total_cents,
	pack_no, tracking_number, manifest_id, label_path,
	shipping_status, shipping_status_updated_at, shipping_created_at, shipping_delivered_at,
	status, created_at, shipped_at, delivered_at`

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListTrackable returns orders that have a shipment at the carrier and no
// recorded delivery; these are the candidates for a tracking refresh.
// Cancelled orders with an in-flight parcel stay in the set until the carrier
// reports delivery, so the shipping trail completes even when the sale did
// not.
func (s *OrderStore) ListTrackable(ctx context.Context, limit int) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+orderColumns+`
		FROM orders
		WHERE pack_no IS NOT NULL
		  AND shipping_delivered_at IS NULL
		  AND status IN ('processing', 'shipped', 'cancelled')
		ORDER BY shipping_created_at ASC NULLS LAST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// MarkShipped records a successful carrier handover: tracking reference,
// manifest batch and the lifecycle transition processing -> shipped.
func (s *OrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber, manifestID string) error {
	query := `
		UPDATE orders
		SET status = $1, tracking_number = $2, manifest_id = $3,
		    shipping_created_at = NOW(), shipped_at = NOW()
		WHERE id = $4 AND status = 'processing'
	`
	cmdTag, err := s.pool.Exec(ctx, query, models.StatusShipped, trackingNumber, manifestID, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected processing", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) SetLabelPath(ctx context.Context, orderID uuid.UUID, labelPath string) error {
	_, err := s.pool.Exec(ctx, `UPDATE orders SET label_path = $1 WHERE id = $2`, labelPath, orderID)
	return err
}

// RecordTrackingStatus overwrites the last known carrier status text and its
// timestamp. The shipping status trail is append-only elsewhere; this pair is
// the only mutable view of it.
func (s *OrderStore) RecordTrackingStatus(ctx context.Context, orderID uuid.UUID, status string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET shipping_status = $1, shipping_status_updated_at = $2
		WHERE id = $3
	`, status, at, orderID)
	return err
}

// MarkShippedFromTracking advances processing -> shipped when carrier
// tracking shows movement before the operator marked the order shipped.
// Zero rows affected is fine: the order already moved on.
func (s *OrderStore) MarkShippedFromTracking(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, shipped_at = COALESCE(shipped_at, $2)
		WHERE id = $3 AND status = 'processing'
	`, models.StatusShipped, at, orderID)
	return err
}

// MarkDelivered sets the delivery timestamps exactly once and completes the
// order unless its lifecycle is already closed. Safe to reapply.
func (s *OrderStore) MarkDelivered(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET shipping_delivered_at = COALESCE(shipping_delivered_at, $1),
		    delivered_at = CASE
		        WHEN status IN ('completed', 'cancelled') THEN delivered_at
		        ELSE COALESCE(delivered_at, $1)
		    END,
		    status = CASE
		        WHEN status IN ('completed', 'cancelled') THEN status
		        ELSE 'completed'
		    END
		WHERE id = $2
	`, at, orderID)
	return err
}

func (s *OrderStore) loadItems(ctx context.Context, order *models.Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT sku, name, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.SKU, &item.Name, &item.Quantity, &item.UnitPriceCents); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order                   models.Order
		pickupPointJSON         []byte
		packNo                  pgtype.Text
		trackingNumber          pgtype.Text
		manifestID              pgtype.Text
		labelPath               pgtype.Text
		shippingStatus          pgtype.Text
		shippingStatusUpdatedAt pgtype.Timestamptz
		shippingCreatedAt       pgtype.Timestamptz
		shippingDeliveredAt     pgtype.Timestamptz
		createdAt               pgtype.Timestamptz
		shippedAt               pgtype.Timestamptz
		deliveredAt             pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.CustomerName, &order.CustomerEmail,
		&order.ShippingCountry, &order.ShippingAddress, &order.ShippingCity, &order.ShippingPostalCode,
		&order.ShippingPhone, &order.ShippingMethod, &pickupPointJSON,
		&order.SubtotalCents, &order.ShippingCents, &order.TotalCents,
		&packNo, &trackingNumber, &manifestID, &labelPath,
		&shippingStatus, &shippingStatusUpdatedAt, &shippingCreatedAt, &shippingDeliveredAt,
		&order.Status, &createdAt, &shippedAt, &deliveredAt,
	)
	if err != nil {
		return nil, err
	}

	if pickupPointJSON != nil {
		var point models.PickupPoint
		if err := json.Unmarshal(pickupPointJSON, &point); err != nil {
			return nil, fmt.Errorf("failed to decode pickup point: %w", err)
		}
		order.PickupPoint = &point
	}

	if packNo.Valid {
		order.PackNo = packNo.String
	}
	if trackingNumber.Valid {
		order.TrackingNumber = trackingNumber.String
	}
	if manifestID.Valid {
		order.ManifestID = manifestID.String
	}
	if labelPath.Valid {
		order.LabelPath = labelPath.String
	}
	if shippingStatus.Valid {
		order.ShippingStatus = shippingStatus.String
	}
	if shippingStatusUpdatedAt.Valid {
		order.ShippingStatusUpdatedAt = shippingStatusUpdatedAt.Time
	}
	if shippingCreatedAt.Valid {
		order.ShippingCreatedAt = shippingCreatedAt.Time
	}
	if shippingDeliveredAt.Valid {
		order.ShippingDeliveredAt = shippingDeliveredAt.Time
	}
	if createdAt.Valid {
		order.CreatedAt = createdAt.Time
	}
	if shippedAt.Valid {
		order.ShippedAt = shippedAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}

	return &order, nil
}
