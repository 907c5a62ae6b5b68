package ports

import "github.com/testangel/testangel-sdk/domain/entities"

// Confirmer asks an operator whether an instruction that is not AUTOMATIC may run.
type Confirmer interface {
	// IsInteractive returns true if an operator can answer prompts.
	IsInteractive() bool

	// ConfirmInstruction asks the operator to approve one execution.
	// Returns: approved (run this time), always (persist the approval), error.
	ConfirmInstruction(req entities.ConfirmationRequest) (approved bool, always bool, err error)
}

// ApprovalStore persists "always" answers given to a Confirmer.
type ApprovalStore interface {
	// Load retrieves all approvals.
	// Returns an empty ApprovalSet (not error) if none exist.
	Load() (*entities.ApprovalSet, error)

	// Save persists the approvals.
	Save(approvals *entities.ApprovalSet) error

	// ConfigPath returns the path to the backing store (for user messaging).
	ConfigPath() string
}
