package entities

// TrustRules decide which instructions may run without asking the operator.
// Patterns are doublestar globs matched against "<engine lua name>/<instruction id>",
// for example "DemoC/*" or "*/web-*". Deny takes precedence over Allow.
type TrustRules struct {
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty" validate:"dive,glob"`
	Deny  []string `json:"deny,omitempty" yaml:"deny,omitempty" validate:"dive,glob"`
}

// Empty reports whether no rule is configured.
func (r *TrustRules) Empty() bool {
	return r == nil || (len(r.Allow) == 0 && len(r.Deny) == 0)
}

// TrustDecision is the outcome of checking an instruction against TrustRules.
type TrustDecision int

const (
	// TrustAsk leaves the decision to the instruction flags and the operator.
	TrustAsk TrustDecision = iota
	// TrustAllow runs the instruction without confirmation.
	TrustAllow
	// TrustDeny refuses to run the instruction.
	TrustDeny
)

func (d TrustDecision) String() string {
	switch d {
	case TrustAllow:
		return "allow"
	case TrustDeny:
		return "deny"
	default:
		return "ask"
	}
}

// QualifiedInstruction returns the name TrustRules patterns are matched against.
func QualifiedInstruction(engine, instruction string) string {
	return engine + "/" + instruction
}
