package entities

import "fmt"

// EvidenceKind identifies how an evidence value should be interpreted.
type EvidenceKind uint32

const (
	// EvidenceTextual is plain text.
	EvidenceTextual EvidenceKind = 0
	// EvidencePNGBase64 is a PNG image encoded as base64 text.
	EvidencePNGBase64 EvidenceKind = 1
)

// String returns the upper-case name used in diagnostics.
func (k EvidenceKind) String() string {
	switch k {
	case EvidenceTextual:
		return "TEXTUAL"
	case EvidencePNGBase64:
		return "PNG_BASE64"
	default:
		return fmt.Sprintf("EVIDENCE(%d)", uint32(k))
	}
}

// Evidence is a labelled artifact recorded while an instruction executes.
// Both supported kinds carry their payload as text.
type Evidence struct {
	Label string       `json:"label"`
	Value string       `json:"value"`
	Kind  EvidenceKind `json:"kind"`
}

// TextEvidence creates a TEXTUAL evidence item.
func TextEvidence(label, text string) Evidence {
	return Evidence{Label: label, Kind: EvidenceTextual, Value: text}
}

// ImageEvidence creates a PNG_BASE64 evidence item.
func ImageEvidence(label, pngBase64 string) Evidence {
	return Evidence{Label: label, Kind: EvidencePNGBase64, Value: pngBase64}
}
