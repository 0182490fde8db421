// Package email provides email templates.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// ShipmentInfo carries the fields the shipment email templates render.
type ShipmentInfo struct {
	OrderNumber    string
	CustomerName   string
	CustomerEmail  string
	Carrier        string
	TrackingNumber string
	TrackingURL    string
	ShippedDate    string
	DeliveredDate  string
}

// Renderer provides methods to render email templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer creates a new email template renderer with built-in templates.
func NewRenderer() (*Renderer, error) {
	bodies := map[string]struct {
		html string
		text string
	}{
		"shipment_confirmation": {html: shipmentConfirmationHTML, text: shipmentConfirmationText},
		"shipment_delivered":    {html: shipmentDeliveredHTML, text: shipmentDeliveredText},
	}

	tmpl := template.New("email")
	for key, body := range bodies {
		if _, err := tmpl.New(key + "_html").Parse(body.html); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", key, err)
		}
		if _, err := tmpl.New(key + "_text").Parse(body.text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", key, err)
		}
	}

	return &Renderer{templates: tmpl}, nil
}

// Render renders an email template with the given data.
func (r *Renderer) Render(_ context.Context, templateName string, data *ShipmentInfo) (*Email, error) {
	var htmlBuf, textBuf bytes.Buffer

	if err := r.templates.ExecuteTemplate(&htmlBuf, templateName+"_html", data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := r.templates.ExecuteTemplate(&textBuf, templateName+"_text", data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	var subject string
	switch templateName {
	case "shipment_confirmation":
		subject = fmt.Sprintf("Your Order Has Shipped - %s", data.OrderNumber)
	case "shipment_delivered":
		subject = fmt.Sprintf("Your Order Has Been Delivered - %s", data.OrderNumber)
	default:
		return nil, fmt.Errorf("unknown email template: %s", templateName)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: subject,
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

// SendShipmentConfirmation notifies the customer that the parcel was handed
// to the carrier. A nil provider means email is switched off.
func SendShipmentConfirmation(ctx context.Context, p Provider, info *ShipmentInfo) error {
	return send(ctx, p, "shipment_confirmation", info)
}

// SendDeliveryNotice notifies the customer that the parcel was delivered.
func SendDeliveryNotice(ctx context.Context, p Provider, info *ShipmentInfo) error {
	return send(ctx, p, "shipment_delivered", info)
}

func send(ctx context.Context, p Provider, templateName string, info *ShipmentInfo) error {
	if p == nil {
		return nil
	}

	renderer, err := NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	message, err := renderer.Render(ctx, templateName, info)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.SendEmail(ctx, message)
}

const shipmentConfirmationText = `Great news! Your order has shipped!

Order Number: {{.OrderNumber}}
Shipped Date: {{.ShippedDate}}

{{if .TrackingNumber}}Tracking Number: {{.TrackingNumber}}
Carrier: {{.Carrier}}
{{if .TrackingURL}}Track your package: {{.TrackingURL}}{{end}}
{{end}}
We'll let you know when your package is delivered!
`

const shipmentConfirmationHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order Shipped</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #059669; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .tracking { background: white; padding: 20px; border-radius: 6px; margin: 15px 0; border-left: 4px solid #059669; }
    .tracking-number { font-size: 24px; font-weight: bold; color: #059669; }
    .button { display: inline-block; background: #059669; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 15px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Your Order Has Shipped!</h1>
    <p>Great news, {{.CustomerName}}! Your order is on its way.</p>
  </div>
  <div class="content">
    <p><strong>Order Number:</strong> {{.OrderNumber}}</p>
    <p><strong>Shipped Date:</strong> {{.ShippedDate}}</p>

    {{if .TrackingNumber}}
    <div class="tracking">
      <p><strong>Carrier:</strong> {{.Carrier}}</p>
      <p class="tracking-number">{{.TrackingNumber}}</p>
      {{if .TrackingURL}}
      <a href="{{.TrackingURL}}" class="button">Track Your Package</a>
      {{end}}
    </div>
    {{end}}

    <p>We'll let you know when your package is delivered!</p>
  </div>
</body>
</html>
`

const shipmentDeliveredText = `Your order has been delivered!

Order Number: {{.OrderNumber}}
Delivered Date: {{.DeliveredDate}}

We hope you enjoy your purchase! If you have any questions or concerns, please don't hesitate to reach out.
`

const shipmentDeliveredHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order Delivered</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #7c3aed; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Your Order Has Been Delivered!</h1>
    <p>Your package has arrived, {{.CustomerName}}!</p>
  </div>
  <div class="content">
    <p><strong>Order Number:</strong> {{.OrderNumber}}</p>
    <p><strong>Delivered Date:</strong> {{.DeliveredDate}}</p>
    <p>We hope you enjoy your purchase! If you have any questions or concerns about your order, please don't hesitate to reach out.</p>
  </div>
</body>
</html>
`
