package rates

import (
	"strings"
	"testing"
)

func validRateCard() *RateCard {
	return &RateCard{
		HomeCountry: "LT",
		Classes: map[string][]string{
			"domestic":      {"LT", "LV", "EE"},
			"international": {"PL", "FI"},
		},
		Fees: map[string]string{
			"domestic":      "4.00",
			"international": "4.00",
			"global":        "20.00",
		},
		Countries: []CountryConfig{
			{Code: "LT", Names: []string{"lithuania", "lietuva"}},
		},
	}
}

func TestValidateRateCard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(card *RateCard)
		wantErr string
	}{
		{
			name:   "valid card",
			mutate: func(card *RateCard) {},
		},
		{
			name:    "bad home country",
			mutate:  func(card *RateCard) { card.HomeCountry = "Lithuania" },
			wantErr: "home_country",
		},
		{
			name:    "unknown class",
			mutate:  func(card *RateCard) { card.Classes["express"] = []string{"LT"} },
			wantErr: "unknown shipment class",
		},
		{
			name:    "missing fee",
			mutate:  func(card *RateCard) { delete(card.Fees, "global") },
			wantErr: "missing fee",
		},
		{
			name:    "non-decimal fee",
			mutate:  func(card *RateCard) { card.Fees["global"] = "twenty" },
			wantErr: "not a decimal",
		},
		{
			name:    "negative fee",
			mutate:  func(card *RateCard) { card.Fees["domestic"] = "-1.00" },
			wantErr: "zero or positive",
		},
		{
			name: "ambiguous country name",
			mutate: func(card *RateCard) {
				card.Countries = append(card.Countries, CountryConfig{Code: "LV", Names: []string{"lietuva"}})
			},
			wantErr: "maps to both",
		},
		{
			name: "invalid country code in class",
			mutate: func(card *RateCard) {
				card.Classes["domestic"] = []string{"LTU"}
			},
			wantErr: "invalid country code",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			card := validRateCard()
			tc.mutate(card)

			err := NewValidator().Validate(card)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestParseRateCard(t *testing.T) {
	t.Parallel()

	card, err := NewParser().Parse([]byte("home_country: LT\nfees:\n  global: \"20.00\"\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if card.HomeCountry != "LT" {
		t.Fatalf("HomeCountry = %q, want LT", card.HomeCountry)
	}

	if _, err := NewParser().Parse([]byte("home_country: [")); err == nil {
		t.Fatalf("expected parse error for malformed YAML")
	}
}
