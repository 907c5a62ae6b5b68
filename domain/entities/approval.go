package entities

import "slices"

// ConfirmationRequest describes an instruction awaiting operator approval.
type ConfirmationRequest struct {
	Engine      string
	Instruction InstructionMetadata
	Parameters  []NamedValue
}

// ApprovalSet records instructions an operator has approved permanently,
// keyed by engine lua name.
type ApprovalSet struct {
	Engines map[string][]string `json:"engines,omitempty" yaml:"engines,omitempty"`
}

// IsApproved reports whether the instruction of the given engine was approved.
func (a *ApprovalSet) IsApproved(engine, instruction string) bool {
	if a == nil || a.Engines == nil {
		return false
	}
	return slices.Contains(a.Engines[engine], instruction)
}

// Approve records an approval. Approving twice is a no-op.
func (a *ApprovalSet) Approve(engine, instruction string) {
	if a.Engines == nil {
		a.Engines = make(map[string][]string)
	}
	if slices.Contains(a.Engines[engine], instruction) {
		return
	}
	a.Engines[engine] = append(a.Engines[engine], instruction)
	slices.Sort(a.Engines[engine])
}
