// Package policy matches instructions against the host's trust rules.
package policy

import (
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/domain/ports"
)

type policyConfig struct {
	denialHandler ports.DenialHandler
}

func defaultPolicyConfig() policyConfig {
	return policyConfig{
		denialHandler: &StderrDenialHandler{},
	}
}

// PolicyOption configures the Policy.
type PolicyOption func(*policyConfig)

// WithDenialHandler sets the denial handler.
func WithDenialHandler(h ports.DenialHandler) PolicyOption {
	return func(c *policyConfig) {
		if h != nil {
			c.denialHandler = h
		}
	}
}

// Policy implements ports.TrustPolicy. Rules are compiled once per
// *entities.TrustRules and must not be modified afterwards.
type Policy struct {
	config policyConfig
	cache  sync.Map // key: *entities.TrustRules, value: *compiledRules
}

type compiledRules struct {
	allow []string
	deny  []string
}

// NewPolicy creates a new Policy.
func NewPolicy(opts ...PolicyOption) ports.TrustPolicy {
	cfg := defaultPolicyConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Policy{config: cfg}
}

func (p *Policy) getCompiled(rules *entities.TrustRules) *compiledRules {
	if v, ok := p.cache.Load(rules); ok {
		return v.(*compiledRules)
	}

	// Malformed patterns never match.
	c := &compiledRules{}
	for _, pattern := range rules.Allow {
		if doublestar.ValidatePattern(pattern) {
			c.allow = append(c.allow, pattern)
		}
	}
	for _, pattern := range rules.Deny {
		if doublestar.ValidatePattern(pattern) {
			c.deny = append(c.deny, pattern)
		}
	}

	v, _ := p.cache.LoadOrStore(rules, c)
	return v.(*compiledRules)
}

// Decide implements ports.TrustPolicy.
func (p *Policy) Decide(engine, instruction string, rules *entities.TrustRules) entities.TrustDecision {
	if rules.Empty() {
		return entities.TrustAsk
	}
	c := p.getCompiled(rules)
	name := entities.QualifiedInstruction(engine, instruction)

	for _, pattern := range c.deny {
		if doublestar.MatchUnvalidated(pattern, name) {
			p.config.denialHandler.OnDenial(engine, instruction, pattern)
			return entities.TrustDeny
		}
	}
	for _, pattern := range c.allow {
		if doublestar.MatchUnvalidated(pattern, name) {
			return entities.TrustAllow
		}
	}
	return entities.TrustAsk
}
