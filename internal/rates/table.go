package rates

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

type Class string

const (
	ClassDomestic      Class = "domestic"
	ClassInternational Class = "international"
	ClassGlobal        Class = "global"
)

// Route is the classification result for a destination country.
type Route struct {
	Code  string // ISO-3166 alpha-2
	Class Class
	Fee   decimal.Decimal
	// Fallback marks the explicit default branch: the input country was not
	// recognized and the carrier home country was substituted. Callers log it;
	// a silent mis-shipment is the known failure mode here.
	Fallback bool
}

// Table answers checkout quoting and shipment-time routing from one source.
type Table struct {
	homeCountry string
	classes     map[string]Class
	fees        map[Class]decimal.Decimal
	aliases     map[string]string
}

//go:embed rates.yaml
var defaultRateCard []byte

// Load builds the table from the YAML rate card at path, or from the embedded
// default when path is empty.
func Load(path string) (*Table, error) {
	content := defaultRateCard
	if path != "" {
		fileContent, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rate card: %w", err)
		}
		content = fileContent
	}

	card, err := NewParser().Parse(content)
	if err != nil {
		return nil, err
	}
	if err := NewValidator().Validate(card); err != nil {
		return nil, fmt.Errorf("rate card validation failed: %w", err)
	}

	return NewTable(card), nil
}

func NewTable(card *RateCard) *Table {
	t := &Table{
		homeCountry: card.HomeCountry,
		classes:     make(map[string]Class),
		fees:        make(map[Class]decimal.Decimal),
		aliases:     make(map[string]string),
	}

	for name, codes := range card.Classes {
		for _, code := range codes {
			t.classes[code] = Class(name)
		}
	}
	for class, raw := range card.Fees {
		// Validated upstream; a bad literal here is a programming error.
		t.fees[Class(class)] = decimal.RequireFromString(raw)
	}
	for _, country := range card.Countries {
		for _, name := range country.Names {
			t.aliases[strings.ToLower(strings.TrimSpace(name))] = country.Code
		}
	}

	return t
}

// Classify maps a free-text country name or ISO alpha-2 code to a route.
// Two-letter inputs are treated as already normalized. Unrecognized values
// take the fallback branch to the carrier home country.
func (t *Table) Classify(country string) Route {
	trimmed := strings.TrimSpace(country)

	code := ""
	fallback := false
	switch {
	case IsValidCountryCode(strings.ToUpper(trimmed)) && len(trimmed) == 2:
		code = strings.ToUpper(trimmed)
	default:
		if mapped, ok := t.aliases[strings.ToLower(trimmed)]; ok {
			code = mapped
		} else {
			code = t.homeCountry
			fallback = true
		}
	}

	class := t.classFor(code)
	return Route{
		Code:     code,
		Class:    class,
		Fee:      t.Fee(class),
		Fallback: fallback,
	}
}

// Fee returns the flat shipping fee for a class in the store base currency.
func (t *Table) Fee(class Class) decimal.Decimal {
	if fee, ok := t.fees[class]; ok {
		return fee
	}
	return t.fees[ClassGlobal]
}

// HomeCountry is the carrier home country used by the fallback branch.
func (t *Table) HomeCountry() string {
	return t.homeCountry
}

func (t *Table) classFor(code string) Class {
	if class, ok := t.classes[code]; ok {
		return class
	}
	return ClassGlobal
}
