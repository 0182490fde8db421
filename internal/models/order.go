package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

const (
	ShippingMethodCourier     = "courier"
	ShippingMethodPickupPoint = "pickup_point"
)

// PickupPoint is a carrier-operated collection location. Code is the
// carrier-issued identifier, not anything of ours.
type PickupPoint struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type OrderItem struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

type Order struct {
	ID            uuid.UUID `json:"id"`
	OrderNumber   string    `json:"order_number"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`

	ShippingCountry    string       `json:"shipping_country"`
	ShippingAddress    string       `json:"shipping_address"`
	ShippingCity       string       `json:"shipping_city"`
	ShippingPostalCode string       `json:"shipping_postal_code"`
	ShippingPhone      string       `json:"shipping_phone"`
	ShippingMethod     string       `json:"shipping_method"`
	PickupPoint        *PickupPoint `json:"pickup_point,omitempty"`

	Items         []OrderItem `json:"items"`
	SubtotalCents int         `json:"subtotal_cents"`
	ShippingCents int         `json:"shipping_cents"`
	TotalCents    int         `json:"total_cents"`

	PackNo         string `json:"pack_no"`
	TrackingNumber string `json:"tracking_number"`
	ManifestID     string `json:"manifest_id"`
	LabelPath      string `json:"label_path"`

	ShippingStatus          string    `json:"shipping_status"`
	ShippingStatusUpdatedAt time.Time `json:"shipping_status_updated_at"`
	ShippingCreatedAt       time.Time `json:"shipping_created_at"`
	ShippingDeliveredAt     time.Time `json:"shipping_delivered_at"`

	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ShippedAt   time.Time   `json:"shipped_at"`
	DeliveredAt time.Time   `json:"delivered_at"`
}

// UnitCount returns the total number of ordered units across all items.
func (o *Order) UnitCount() int {
	units := 0
	for _, item := range o.Items {
		units += item.Quantity
	}
	return units
}

func (o *Order) IsPickupDelivery() bool {
	return o.ShippingMethod == ShippingMethodPickupPoint
}

// IsClosed reports whether the order lifecycle can no longer advance.
func (o *Order) IsClosed() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}
