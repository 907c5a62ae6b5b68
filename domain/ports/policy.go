package ports

import "github.com/testangel/testangel-sdk/domain/entities"

// TrustPolicy decides whether an instruction may run without confirmation.
type TrustPolicy interface {
	// Decide checks the instruction of engine against rules. Nil or empty
	// rules yield TrustAsk.
	Decide(engine, instruction string, rules *entities.TrustRules) entities.TrustDecision
}

// DenialHandler is notified when a TrustPolicy refuses an instruction.
type DenialHandler interface {
	OnDenial(engine, instruction, pattern string)
}
