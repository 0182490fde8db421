package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amberline/fulfillment/internal/db"
	"github.com/amberline/fulfillment/internal/labelstore"
	"github.com/amberline/fulfillment/internal/models"
	"github.com/amberline/fulfillment/internal/rates"
	"github.com/amberline/fulfillment/internal/venipak"
)

type fakeOrderStore struct {
	order *models.Order

	assignedPackNo string
	assignErr      error
	assignCalls    int

	shippedTracking string
	shippedManifest string
	markShippedErr  error
	labelPath       string
}

func (f *fakeOrderStore) GetByID(context.Context, uuid.UUID) (*models.Order, error) {
	return f.order, nil
}

func (f *fakeOrderStore) AssignPackNumber(context.Context, uuid.UUID, int, int) (string, error) {
	if f.assignErr != nil {
		return "", f.assignErr
	}
	if f.order.PackNo != "" {
		return "", db.ErrPackNumberAssigned
	}
	f.assignCalls++
	f.order.PackNo = f.assignedPackNo
	return f.assignedPackNo, nil
}

func (f *fakeOrderStore) MarkShipped(_ context.Context, _ uuid.UUID, trackingNumber, manifestID string) error {
	if f.markShippedErr != nil {
		return f.markShippedErr
	}
	f.shippedTracking = trackingNumber
	f.shippedManifest = manifestID
	f.order.Status = models.StatusShipped
	return nil
}

func (f *fakeOrderStore) SetLabelPath(_ context.Context, _ uuid.UUID, labelPath string) error {
	f.labelPath = labelPath
	return nil
}

type fakeCarrier struct {
	createResponse []byte
	createErr      error
	sentXML        []byte

	label    []byte
	labelErr error
}

func (f *fakeCarrier) CreateShipment(_ context.Context, shipmentXML []byte) ([]byte, error) {
	f.sentXML = shipmentXML
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResponse, nil
}

func (f *fakeCarrier) FetchLabel(context.Context, string) ([]byte, error) {
	if f.labelErr != nil {
		return nil, f.labelErr
	}
	return f.label, nil
}

type fakeLabelStore struct {
	saved map[string][]byte
}

func (f *fakeLabelStore) Save(_ context.Context, key string, pdf []byte) (string, error) {
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = pdf
	return "data/labels/" + key, nil
}

func (f *fakeLabelStore) Open(_ context.Context, key string) ([]byte, error) {
	if pdf, ok := f.saved[key]; ok {
		return pdf, nil
	}
	return nil, labelstore.ErrNotFound
}

func testCarrierConfig() venipak.Config {
	return venipak.Config{
		BaseURL:         "https://go.venipak.lt/ws",
		Username:        "shop",
		Password:        "secret",
		AccountID:       12345,
		FirstPackNumber: 1000000,
	}
}

func processingOrder() *models.Order {
	return &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        "ORD-10000042",
		CustomerName:       "Jonas Jonaitis",
		CustomerEmail:      "jonas@example.com",
		ShippingCountry:    "LT",
		ShippingAddress:    "Gedimino pr. 1",
		ShippingCity:       "Vilnius",
		ShippingPostalCode: "01103",
		ShippingPhone:      "+37060012345",
		ShippingMethod:     models.ShippingMethodCourier,
		Items: []models.OrderItem{
			{SKU: "MUG-01", Name: "Ceramic mug", Quantity: 2, UnitPriceCents: 1500},
		},
		TotalCents: 3400,
		Status:     models.StatusProcessing,
	}
}

func newTestShipmentService(store *fakeOrderStore, carrier *fakeCarrier, labels *fakeLabelStore) *ShipmentService {
	table, err := rates.Load("")
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewShipmentService(store, carrier, testCarrierConfig(), table, labels, nil, logger)
	svc.now = func() time.Time {
		return time.Date(2026, time.August, 28, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestCreateShipment(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{
		order:          processingOrder(),
		assignedPackNo: "V12345E1000000",
	}
	carrier := &fakeCarrier{
		createResponse: []byte(`<description type="ok"><pack>V12345E1000000</pack></description>`),
		label:          []byte("%PDF-1.4 label"),
	}
	labels := &fakeLabelStore{}

	svc := newTestShipmentService(store, carrier, labels)
	result, err := svc.CreateShipment(context.Background(), store.order.ID)
	if err != nil {
		t.Fatalf("CreateShipment() failed: %v", err)
	}

	if result.PackNo != "V12345E1000000" {
		t.Errorf("PackNo = %q", result.PackNo)
	}
	if result.TrackingNumber != "V12345E1000000" {
		t.Errorf("TrackingNumber = %q, want the pack number when the carrier issues no external code", result.TrackingNumber)
	}
	if result.RouteClass != rates.ClassDomestic {
		t.Errorf("RouteClass = %q", result.RouteClass)
	}
	if store.shippedTracking != "V12345E1000000" {
		t.Errorf("persisted tracking = %q", store.shippedTracking)
	}
	if store.shippedManifest != "12345260828001" {
		t.Errorf("manifest = %q", store.shippedManifest)
	}
	if result.LabelPath == "" || store.labelPath != result.LabelPath {
		t.Errorf("label path = %q, persisted %q", result.LabelPath, store.labelPath)
	}
	if len(carrier.sentXML) == 0 {
		t.Errorf("no shipment XML submitted")
	}
}

func TestCreateShipmentUsesExternalTracking(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{
		order:          processingOrder(),
		assignedPackNo: "V12345E1000001",
	}
	store.order.ShippingCountry = "Germany"
	carrier := &fakeCarrier{
		createResponse: []byte(`<description type="ok"><pack tracking_number="GLS123" courier="gls">V12345E1000001</pack></description>`),
	}

	svc := newTestShipmentService(store, carrier, &fakeLabelStore{})
	result, err := svc.CreateShipment(context.Background(), store.order.ID)
	if err != nil {
		t.Fatalf("CreateShipment() failed: %v", err)
	}

	if result.TrackingNumber != "GLS123" {
		t.Errorf("TrackingNumber = %q, want the secondary carrier code", result.TrackingNumber)
	}
	if result.RouteClass != rates.ClassGlobal {
		t.Errorf("RouteClass = %q", result.RouteClass)
	}
	if store.shippedTracking != "GLS123" {
		t.Errorf("persisted tracking = %q", store.shippedTracking)
	}
}

func TestCreateShipmentNotConfigured(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{order: processingOrder()}
	table, err := rates.Load("")
	if err != nil {
		t.Fatalf("rates.Load() failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewShipmentService(store, &fakeCarrier{}, venipak.Config{}, table, &fakeLabelStore{}, nil, logger)

	_, err = svc.CreateShipment(context.Background(), store.order.ID)
	if !errors.Is(err, venipak.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCreateShipmentAlreadyExists(t *testing.T) {
	t.Parallel()

	order := processingOrder()
	order.Status = models.StatusShipped
	order.PackNo = "V12345E0999999"
	store := &fakeOrderStore{order: order}
	carrier := &fakeCarrier{}

	svc := newTestShipmentService(store, carrier, &fakeLabelStore{})
	_, err := svc.CreateShipment(context.Background(), order.ID)
	if !errors.Is(err, ErrShipmentExists) {
		t.Fatalf("expected ErrShipmentExists, got %v", err)
	}
	if carrier.sentXML != nil {
		t.Errorf("a shipped order must not reach the carrier again")
	}
}

func TestCreateShipmentRetryAfterRejection(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{
		order:          processingOrder(),
		assignedPackNo: "V12345E1000042",
	}
	carrier := &fakeCarrier{
		createResponse: []byte(`<description type="error"><error><text>Invalid address</text></error></description>`),
	}

	svc := newTestShipmentService(store, carrier, &fakeLabelStore{})
	_, err := svc.CreateShipment(context.Background(), store.order.ID)

	var carrierErr *venipak.CarrierError
	if !errors.As(err, &carrierErr) {
		t.Fatalf("expected *CarrierError, got %v", err)
	}
	if store.order.PackNo != "V12345E1000042" {
		t.Fatalf("pack number = %q, must stay reserved after a rejection", store.order.PackNo)
	}
	if store.order.Status != models.StatusProcessing {
		t.Fatalf("status = %q, a rejected order stays in processing", store.order.Status)
	}

	// Operator fixes the address and tries again.
	store.order.ShippingAddress = "Konstitucijos pr. 20"
	carrier.createResponse = []byte(`<description type="ok"><pack>V12345E1000042</pack></description>`)

	result, err := svc.CreateShipment(context.Background(), store.order.ID)
	if err != nil {
		t.Fatalf("CreateShipment() retry failed: %v", err)
	}
	if result.PackNo != "V12345E1000042" {
		t.Errorf("retry PackNo = %q, want the reserved pack number", result.PackNo)
	}
	if store.assignCalls != 1 {
		t.Errorf("pack number assigned %d times, want once", store.assignCalls)
	}
	if store.shippedTracking != "V12345E1000042" {
		t.Errorf("persisted tracking = %q", store.shippedTracking)
	}

	// A third call finds the order shipped and is refused.
	if _, err := svc.CreateShipment(context.Background(), store.order.ID); !errors.Is(err, ErrShipmentExists) {
		t.Fatalf("expected ErrShipmentExists after a successful shipment, got %v", err)
	}
}

func TestCreateShipmentWrongStatus(t *testing.T) {
	t.Parallel()

	order := processingOrder()
	order.Status = models.StatusPending
	store := &fakeOrderStore{order: order}

	svc := newTestShipmentService(store, &fakeCarrier{}, &fakeLabelStore{})
	_, err := svc.CreateShipment(context.Background(), order.ID)
	if !errors.Is(err, db.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestCreateShipmentCarrierRejection(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{
		order:          processingOrder(),
		assignedPackNo: "V12345E1000002",
	}
	carrier := &fakeCarrier{
		createResponse: []byte(`<description type="error"><error><text>Invalid post code</text></error></description>`),
	}

	svc := newTestShipmentService(store, carrier, &fakeLabelStore{})
	_, err := svc.CreateShipment(context.Background(), store.order.ID)

	var carrierErr *venipak.CarrierError
	if !errors.As(err, &carrierErr) {
		t.Fatalf("expected *CarrierError, got %v", err)
	}
	if carrierErr.Reason != "Invalid post code" {
		t.Errorf("Reason = %q", carrierErr.Reason)
	}
	if store.shippedTracking != "" {
		t.Errorf("rejected shipment must not mark the order shipped")
	}
}

func TestCreateShipmentUnreadableResponse(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{
		order:          processingOrder(),
		assignedPackNo: "V12345E1000008",
	}
	carrier := &fakeCarrier{
		createResponse: []byte(`<<< not xml at all`),
	}

	svc := newTestShipmentService(store, carrier, &fakeLabelStore{})
	_, err := svc.CreateShipment(context.Background(), store.order.ID)

	var parseErr *venipak.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	var carrierErr *venipak.CarrierError
	if errors.As(err, &carrierErr) {
		t.Fatalf("an unreadable response is not a carrier rejection")
	}
	if store.shippedTracking != "" {
		t.Errorf("order must not be marked shipped on an unreadable response")
	}
}

func TestCreateShipmentPickupWithoutCode(t *testing.T) {
	t.Parallel()

	order := processingOrder()
	order.ShippingMethod = models.ShippingMethodPickupPoint
	order.PickupPoint = nil
	store := &fakeOrderStore{order: order, assignedPackNo: "V12345E1000003"}
	carrier := &fakeCarrier{}

	svc := newTestShipmentService(store, carrier, &fakeLabelStore{})
	_, err := svc.CreateShipment(context.Background(), order.ID)
	if !errors.Is(err, venipak.ErrPickupPointCode) {
		t.Fatalf("expected ErrPickupPointCode, got %v", err)
	}
	if carrier.sentXML != nil {
		t.Errorf("nothing should reach the carrier without a pickup point code")
	}
}

func TestCreateShipmentLabelFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{
		order:          processingOrder(),
		assignedPackNo: "V12345E1000004",
	}
	carrier := &fakeCarrier{
		createResponse: []byte(`<description type="ok"><pack>V12345E1000004</pack></description>`),
		labelErr:       &venipak.TransportError{Op: "fetch_label", Status: 500},
	}

	svc := newTestShipmentService(store, carrier, &fakeLabelStore{})
	result, err := svc.CreateShipment(context.Background(), store.order.ID)
	if err != nil {
		t.Fatalf("CreateShipment() failed: %v", err)
	}
	if result.LabelPath != "" {
		t.Errorf("LabelPath = %q, want empty when the label fetch failed", result.LabelPath)
	}
	if store.shippedTracking == "" {
		t.Errorf("shipment must be persisted regardless of the label")
	}
}

func TestLabelPrefersStoredCopy(t *testing.T) {
	t.Parallel()

	order := processingOrder()
	order.PackNo = "V12345E1000005"
	store := &fakeOrderStore{order: order}
	labels := &fakeLabelStore{saved: map[string][]byte{
		"ORD-10000042-V12345E1000005.pdf": []byte("%PDF stored"),
	}}
	carrier := &fakeCarrier{labelErr: errors.New("must not be called")}

	svc := newTestShipmentService(store, carrier, labels)
	pdf, err := svc.Label(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Label() failed: %v", err)
	}
	if string(pdf) != "%PDF stored" {
		t.Fatalf("Label() = %q", pdf)
	}
}

func TestLabelFallsBackToCarrier(t *testing.T) {
	t.Parallel()

	order := processingOrder()
	order.PackNo = "V12345E1000006"
	store := &fakeOrderStore{order: order}
	carrier := &fakeCarrier{label: []byte("%PDF fresh")}
	labels := &fakeLabelStore{}

	svc := newTestShipmentService(store, carrier, labels)
	pdf, err := svc.Label(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Label() failed: %v", err)
	}
	if string(pdf) != "%PDF fresh" {
		t.Fatalf("Label() = %q", pdf)
	}
	if len(labels.saved) != 1 {
		t.Errorf("carrier label must be stored for reprints")
	}
}

func TestLabelNotReady(t *testing.T) {
	t.Parallel()

	order := processingOrder()
	order.PackNo = "V12345E1000007"
	store := &fakeOrderStore{order: order}
	carrier := &fakeCarrier{label: nil}

	svc := newTestShipmentService(store, carrier, &fakeLabelStore{})
	_, err := svc.Label(context.Background(), order.ID)
	if !errors.Is(err, ErrLabelNotReady) {
		t.Fatalf("expected ErrLabelNotReady, got %v", err)
	}
}

func TestLabelWithoutShipment(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{order: processingOrder()}
	svc := newTestShipmentService(store, &fakeCarrier{}, &fakeLabelStore{})
	_, err := svc.Label(context.Background(), store.order.ID)
	if !errors.Is(err, ErrLabelNotReady) {
		t.Fatalf("expected ErrLabelNotReady, got %v", err)
	}
}
