package rates

// Package rates provides the shipping rate card: destination classification
// and the flat fee per shipment class.

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type RateCard struct {
	HomeCountry string              `yaml:"home_country"`
	Classes     map[string][]string `yaml:"classes"`
	Fees        map[string]string   `yaml:"fees"`
	Countries   []CountryConfig     `yaml:"countries"`
}

type CountryConfig struct {
	Code  string   `yaml:"code"`
	Names []string `yaml:"names"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*RateCard, error) {
	var card RateCard
	if err := yaml.Unmarshal(content, &card); err != nil {
		return nil, fmt.Errorf("failed to parse rate card YAML: %w", err)
	}

	return &card, nil
}
