package venipak

// Package venipak implements the carrier wire protocol: shipment import XML,
// label retrieval and tracking lookups.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	createPath   = "/import/send.php"
	labelPath    = "/print_label.php"
	trackingPath = "/tracking.php"

	// One bounded exchange per call; retries belong to the caller.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 4 << 20 // 4 MB

	pdfMagic = "%PDF"
)

// Config enumerates everything the client needs; nothing is read from
// ambient state.
type Config struct {
	BaseURL         string
	Username        string
	Password        string
	AccountID       int
	FirstPackNumber int
}

// Configured reports whether the credentials required for carrier calls are set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Username) != "" &&
		strings.TrimSpace(c.Password) != "" &&
		c.AccountID > 0
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateShipment submits an import XML and returns the raw carrier response.
func (c *Client) CreateShipment(ctx context.Context, shipmentXML []byte) ([]byte, error) {
	if !c.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(createPath), bytes.NewReader(shipmentXML))
	if err != nil {
		return nil, fmt.Errorf("failed to build create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	body, err := c.exchange(req, "create_shipment")
	if err != nil {
		return nil, err
	}

	c.logger.Debug("carrier create response received", "bytes", len(body))
	return body, nil
}

// FetchLabel retrieves the shipping label PDF for a pack number. A nil result
// without error means the carrier has not produced the label yet.
func (c *Client) FetchLabel(ctx context.Context, packNo string) ([]byte, error) {
	if !c.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("user", c.cfg.Username)
	form.Set("pass", c.cfg.Password)
	form.Set("pack_no", packNo)
	form.Set("format", "a6")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(labelPath), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build label request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.exchange(req, "fetch_label")
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !bytes.HasPrefix(body, []byte(pdfMagic)) {
		return nil, &ParseError{Reason: "label payload is not a PDF"}
	}
	return body, nil
}

// FetchTracking returns the raw tracking payload for a pack number. An empty
// payload means the carrier does not know the shipment yet.
func (c *Client) FetchTracking(ctx context.Context, packNo string) ([]byte, error) {
	if !c.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	query := url.Values{}
	query.Set("type", "1")
	query.Set("output", "json")
	query.Set("code", packNo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(trackingPath)+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracking request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	return c.exchange(req, "fetch_tracking")
}

// ManifestTitle formats the daily manifest batch identifier for a day:
// account id followed by YYMMDD and the batch ordinal.
func ManifestTitle(accountID int, day time.Time) string {
	return fmt.Sprintf("%d%s001", accountID, day.Format("060102"))
}

// TrackingURL returns the customer-facing tracking page for a pack number.
func TrackingURL(trackingNumber string) string {
	number := strings.TrimSpace(trackingNumber)
	if number == "" {
		return ""
	}
	return "https://venipak.com/track-shipment/?track_no=" + url.QueryEscape(number)
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + path
}

// exchange performs one HTTP round trip. Every failure mode comes back as a
// typed error; nothing panics or retries here.
func (c *Client) exchange(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: readErr}
	}
	if closeErr != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: closeErr}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Body: truncateBody(body)}
	}
	return body, nil
}

func truncateBody(body []byte) string {
	const maxLen = 512
	if len(body) > maxLen {
		return string(body[:maxLen])
	}
	return string(body)
}
