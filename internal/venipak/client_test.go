package venipak

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		Username:        "shop",
		Password:        "secret",
		AccountID:       12345,
		FirstPackNumber: 1000000,
	}
}

func TestCreateShipmentSendsXMLWithBasicAuth(t *testing.T) {
	t.Parallel()

	var gotContentType, gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotUser, gotPass, _ = r.BasicAuth()
		_, _ = w.Write([]byte(`<description type="ok"><pack>V12345E1000001</pack></description>`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	raw, err := client.CreateShipment(context.Background(), []byte(`<description type="1"></description>`))
	if err != nil {
		t.Fatalf("CreateShipment() failed: %v", err)
	}

	if gotContentType != "text/xml; charset=utf-8" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	if gotUser != "shop" || gotPass != "secret" {
		t.Fatalf("basic auth = %q/%q", gotUser, gotPass)
	}
	if len(raw) == 0 {
		t.Fatalf("expected raw response bytes")
	}
}

func TestCreateShipmentNotConfigured(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{BaseURL: "https://go.venipak.lt/ws"}, nil, nil)
	_, err := client.CreateShipment(context.Background(), []byte("<description/>"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCreateShipmentNon2xxIsTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	_, err := client.CreateShipment(context.Background(), []byte("<description/>"))

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if transportErr.Status != http.StatusBadGateway {
		t.Fatalf("Status = %d, want 502", transportErr.Status)
	}
	if transportErr.Body == "" {
		t.Fatalf("transport error must keep the raw body for diagnostics")
	}
}

func TestFetchLabel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
		}
		if r.PostFormValue("pack_no") != "V12345E1000001" {
			t.Errorf("pack_no = %q", r.PostFormValue("pack_no"))
		}
		if r.PostFormValue("user") != "shop" {
			t.Errorf("user = %q", r.PostFormValue("user"))
		}
		_, _ = w.Write([]byte("%PDF-1.4 label bytes"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	pdf, err := client.FetchLabel(context.Background(), "V12345E1000001")
	if err != nil {
		t.Fatalf("FetchLabel() failed: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatalf("expected PDF bytes")
	}
}

func TestFetchLabelNotReadyYet(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	pdf, err := client.FetchLabel(context.Background(), "V12345E1000001")
	if err != nil {
		t.Fatalf("FetchLabel() failed: %v", err)
	}
	if pdf != nil {
		t.Fatalf("empty body must mean label pending, got %d bytes", len(pdf))
	}
}

func TestFetchLabelRejectsNonPDF(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>login page</html>"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	_, err := client.FetchLabel(context.Background(), "V12345E1000001")

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError for non-PDF payload, got %v", err)
	}
}

func TestFetchTrackingQuery(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("type") != "1" || query.Get("output") != "json" || query.Get("code") != "V12345E1000001" {
			t.Errorf("unexpected query: %v", query)
		}
		_, _ = w.Write([]byte(`[{"status":"In transit"}]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	raw, err := client.FetchTracking(context.Background(), "V12345E1000001")
	if err != nil {
		t.Fatalf("FetchTracking() failed: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("expected tracking payload")
	}
}

func TestExchangeTransportFailure(t *testing.T) {
	t.Parallel()

	client := NewClient(testConfig("http://127.0.0.1:1"), &http.Client{}, nil)
	_, err := client.FetchTracking(context.Background(), "V12345E1000001")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
}
