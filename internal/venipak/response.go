package venipak

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// The carrier embeds literal <br> tags in response text, which breaks strict
// XML parsing. They are flattened to whitespace before decoding.
var brTagPattern = regexp.MustCompile(`(?i)<br\s*/?\s*>`)

// CreateResult is the decoded outcome of a shipment import.
type CreateResult struct {
	// PackNo echoes the submitted pack number on success.
	PackNo string
	// ExternalTracking, Courier and ShipmentID are present only when a
	// secondary carrier handles a global shipment and issues its own code.
	ExternalTracking string
	Courier          string
	ShipmentID       string
	// Fallback marks the defensive default: a well-formed response of an
	// unknown shape treated as success with no extracted fields.
	Fallback bool
}

type createResponse struct {
	XMLName xml.Name `xml:"description"`
	Type    string   `xml:"type,attr"`
	Text    string   `xml:",chardata"`
	Error   struct {
		Text string `xml:"text"`
	} `xml:"error"`
	Pack struct {
		Value          string `xml:",chardata"`
		TrackingNumber string `xml:"tracking_number,attr"`
		Courier        string `xml:"courier,attr"`
		ShipmentID     string `xml:"shipment_id,attr"`
	} `xml:"pack"`
}

// ParseCreateResponse decodes the carrier's answer to a shipment import.
// An explicit carrier rejection comes back as *CarrierError with the embedded
// reason text.
func ParseCreateResponse(raw []byte) (*CreateResult, error) {
	cleaned := brTagPattern.ReplaceAll(raw, []byte(" "))

	var resp createResponse
	if err := xml.Unmarshal(cleaned, &resp); err != nil {
		return nil, &ParseError{Reason: "malformed create response", Err: err}
	}

	switch resp.Type {
	case "error":
		reason := strings.TrimSpace(resp.Error.Text)
		if reason == "" {
			reason = "carrier returned an error without detail"
		}
		return nil, &CarrierError{Reason: reason}
	case "ok":
		result := &CreateResult{
			PackNo:           strings.TrimSpace(resp.Pack.Value),
			ExternalTracking: strings.TrimSpace(resp.Pack.TrackingNumber),
			Courier:          strings.TrimSpace(resp.Pack.Courier),
			ShipmentID:       strings.TrimSpace(resp.Pack.ShipmentID),
		}
		if result.PackNo == "" {
			result.PackNo = strings.TrimSpace(resp.Text)
		}
		return result, nil
	default:
		// Unknown but well-formed shape: best-effort success with nothing
		// extracted. Kept as a named branch so callers and tests can see it.
		return &CreateResult{Fallback: true}, nil
	}
}

// TrackingEvent is one tracking record; the carrier sends the latest first.
type TrackingEvent struct {
	Status   string       `json:"status"`
	Terminal string       `json:"terminal"`
	Date     TrackingTime `json:"date"`
}

// TrackingTime tolerates the carrier's timestamp formats.
type TrackingTime struct {
	time.Time
}

var trackingTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func (t *TrackingTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range trackingTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized tracking timestamp: %q", raw)
}

// ParseTrackingResponse decodes a tracking payload and returns the latest
// event. A nil event without error means the carrier does not know the
// shipment yet.
func ParseTrackingResponse(raw []byte) (*TrackingEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return nil, nil
	}

	var events []TrackingEvent
	if err := json.Unmarshal(trimmed, &events); err == nil {
		if len(events) == 0 {
			return nil, nil
		}
		return &events[0], nil
	}

	// Some endpoints return a single object instead of an array.
	var single TrackingEvent
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, &ParseError{Reason: "malformed tracking response", Err: err}
	}
	return &single, nil
}
