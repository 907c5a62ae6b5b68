// Package parser decodes host configuration files.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/domain/ports"
)

// YamlConfigParser implements ports.ConfigParser for YAML.
type YamlConfigParser struct {
	strict bool
}

// YamlOption configures a YamlConfigParser.
type YamlOption func(*YamlConfigParser)

// WithKnownFields rejects keys that do not map to a HostConfig field.
func WithKnownFields() YamlOption {
	return func(p *YamlConfigParser) {
		p.strict = true
	}
}

// NewYamlConfigParser creates a new YamlConfigParser.
func NewYamlConfigParser(opts ...YamlOption) ports.ConfigParser {
	p := &YamlConfigParser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse unmarshals YAML bytes into a HostConfig. Fields absent from the
// document keep their zero value; an empty document is an empty config.
func (p *YamlConfigParser) Parse(data []byte) (*entities.HostConfig, error) {
	var cfg entities.HostConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse host config: %w", err)
	}
	return &cfg, nil
}
