package venipak

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/amberline/fulfillment/internal/models"
	"github.com/amberline/fulfillment/internal/rates"
)

const (
	// The import document type the carrier parser expects.
	descriptionType = "1"

	deliveryTypeNextWorkingDay = "nwd"
	globalDeliveryTier         = "standard"

	weightPerUnitKg = 0.5
	minWeightKg     = 0.1

	// Packages above this declare dimensions regardless of class.
	dimensionWeightThresholdKg = 30.0

	// Fixed parcel dimensions in meters. The store does not measure packages;
	// the carrier only needs dimensions for global or oversized shipments.
	defaultLengthM = "0.35"
	defaultWidthM  = "0.25"
	defaultHeightM = "0.10"

	fallbackGoodsDescription = "General merchandise"
	maxGoodsDescriptionLen   = 80
)

// The carrier parser is strict about element order; struct field order below
// is the wire order and must not be rearranged.
type importDescription struct {
	XMLName  xml.Name       `xml:"description"`
	Type     string         `xml:"type,attr"`
	Manifest importManifest `xml:"manifest"`
}

type importManifest struct {
	Title    string         `xml:"title,attr"`
	Shipment importShipment `xml:"shipment"`
}

type importShipment struct {
	Consignee importConsignee `xml:"consignee"`
	Attribute importAttribute `xml:"attribute"`
	Pack      importPack      `xml:"pack"`
}

type importConsignee struct {
	Name          string `xml:"name"`
	CompanyCode   string `xml:"company_code,omitempty"`
	Country       string `xml:"country"`
	City          string `xml:"city"`
	Address       string `xml:"address"`
	PostCode      string `xml:"post_code"`
	ContactPerson string `xml:"contact_person"`
	ContactTel    string `xml:"contact_tel"`
	ContactEmail  string `xml:"contact_email"`
}

type importAttribute struct {
	ShipmentCode  string        `xml:"shipment_code"`
	DeliveryType  string        `xml:"delivery_type"`
	COD           string        `xml:"cod"`
	International *struct{}     `xml:"international,omitempty"`
	Global        *importGlobal `xml:"global,omitempty"`
}

type importGlobal struct {
	Delivery    string `xml:"global_delivery"`
	Description string `xml:"shipment_description"`
	Value       string `xml:"value"`
}

type importPack struct {
	PackNo      string `xml:"pack_no"`
	Weight      string `xml:"weight"`
	Length      string `xml:"length,omitempty"`
	Width       string `xml:"width,omitempty"`
	Height      string `xml:"height,omitempty"`
	Description string `xml:"shipment_description,omitempty"`
}

// BuildShipmentXML renders the carrier import document for one shipment.
// Free text is escaped by the XML encoder; addresses are normalized per
// destination before encoding.
func BuildShipmentXML(order *models.Order, packNo, manifestTitle string, route rates.Route) ([]byte, error) {
	consignee, err := buildConsignee(order, route)
	if err != nil {
		return nil, err
	}

	weight := PackageWeightKg(order.UnitCount())
	declareDimensions := route.Class == rates.ClassGlobal || weight > dimensionWeightThresholdKg

	pack := importPack{
		PackNo: packNo,
		Weight: formatWeight(weight),
	}
	if declareDimensions {
		pack.Length = defaultLengthM
		pack.Width = defaultWidthM
		pack.Height = defaultHeightM
		pack.Description = goodsDescription(order)
	}

	attribute := importAttribute{
		ShipmentCode: order.OrderNumber,
		DeliveryType: deliveryTypeNextWorkingDay,
		COD:          "0",
	}
	switch route.Class {
	case rates.ClassInternational:
		attribute.International = &struct{}{}
	case rates.ClassGlobal:
		attribute.Global = &importGlobal{
			Delivery:    globalDeliveryTier,
			Description: goodsDescription(order),
			Value:       declaredValue(order),
		}
	}

	doc := importDescription{
		Type: descriptionType,
		Manifest: importManifest{
			Title: manifestTitle,
			Shipment: importShipment{
				Consignee: consignee,
				Attribute: attribute,
				Pack:      pack,
			},
		},
	}

	encoded, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shipment XML: %w", err)
	}
	return append([]byte(xml.Header), encoded...), nil
}

// buildConsignee picks the addressee. For pickup delivery the pickup point is
// the addressee and the customer is the contact; for home delivery the
// customer is both.
func buildConsignee(order *models.Order, route rates.Route) (importConsignee, error) {
	contactTel := NormalizePhone(order.ShippingPhone, route.Code)

	if order.IsPickupDelivery() {
		point := order.PickupPoint
		if point == nil || strings.TrimSpace(point.Code) == "" {
			return importConsignee{}, ErrPickupPointCode
		}

		pointCountry := point.Country
		if pointCountry == "" {
			pointCountry = route.Code
		}
		return importConsignee{
			Name:          point.Name,
			CompanyCode:   point.Code,
			Country:       pointCountry,
			City:          point.City,
			Address:       point.Address,
			PostCode:      NormalizePostalCode(point.PostalCode, pointCountry),
			ContactPerson: order.CustomerName,
			ContactTel:    contactTel,
			ContactEmail:  order.CustomerEmail,
		}, nil
	}

	return importConsignee{
		Name:          order.CustomerName,
		Country:       route.Code,
		City:          order.ShippingCity,
		Address:       order.ShippingAddress,
		PostCode:      NormalizePostalCode(order.ShippingPostalCode, route.Code),
		ContactPerson: order.CustomerName,
		ContactTel:    contactTel,
		ContactEmail:  order.CustomerEmail,
	}, nil
}

// PackageWeightKg is a coarse approximation: half a kilogram per ordered
// unit, never below the carrier minimum.
func PackageWeightKg(units int) float64 {
	weight := float64(units) * weightPerUnitKg
	if weight < minWeightKg {
		return minWeightKg
	}
	return weight
}

func formatWeight(kg float64) string {
	return strconv.FormatFloat(kg, 'f', 1, 64)
}

// declaredValue formats the order total as a fixed-point decimal string for
// customs declaration.
func declaredValue(order *models.Order) string {
	return decimal.NewFromInt(int64(order.TotalCents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func goodsDescription(order *models.Order) string {
	names := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if name := strings.TrimSpace(item.Name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fallbackGoodsDescription
	}

	description := strings.Join(names, ", ")
	if len(description) > maxGoodsDescriptionLen {
		description = description[:maxGoodsDescriptionLen]
	}
	return description
}
