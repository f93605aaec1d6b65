package domain

import "fmt"

// EvidenceFormat tags the upstream report format a summary was normalized
// from. Resolution happens once at the ingestion boundary; everything past
// it sees only EvidenceSummary.
type EvidenceFormat string

const (
	EvidenceFormatScanner EvidenceFormat = "scanner"
	EvidenceFormatAudit   EvidenceFormat = "audit-export"
	EvidenceFormatManual  EvidenceFormat = "manual"
)

// ControlResult is one per-control outcome from an upstream parser.
type ControlResult struct {
	ControlID string `json:"controlId"`
	Passed    bool   `json:"passed"`
}

// EvidenceInput is the only shape the issuer accepts from upstream parsers:
// a summary, its provenance, and optionally the per-control results the
// summary claims to condense.
type EvidenceInput struct {
	Format     EvidenceFormat  `json:"format,omitempty"`
	Summary    EvidenceSummary `json:"summary"`
	Provenance Provenance      `json:"provenance"`
	Controls   []ControlResult `json:"controls,omitempty"`
}

// NormalizeEvidence validates an EvidenceInput and returns the summary that
// will be attested. When per-control results are present the counts and
// score are recomputed from them and must match the supplied summary; a
// summary that disagrees with its own controls is rejected rather than
// silently corrected.
func NormalizeEvidence(in EvidenceInput) (EvidenceSummary, error) {
	s := in.Summary
	if s.ControlsTested < 0 || s.ControlsPassed < 0 || s.ControlsFailed < 0 {
		return EvidenceSummary{}, fmt.Errorf("%w: negative control counts", ErrMalformedInput)
	}
	if s.ControlsPassed+s.ControlsFailed != s.ControlsTested {
		return EvidenceSummary{}, fmt.Errorf("%w: passed+failed != tested", ErrMalformedInput)
	}
	if s.OverallScore < 0 || s.OverallScore > 100 {
		return EvidenceSummary{}, fmt.Errorf("%w: overall score out of range", ErrMalformedInput)
	}
	if len(in.Controls) == 0 {
		return s, nil
	}

	derived := SummarizeControls(in.Controls)
	if derived != s {
		return EvidenceSummary{}, fmt.Errorf("%w: summary disagrees with per-control results", ErrMalformedInput)
	}
	return derived, nil
}

// SummarizeControls folds per-control results into the summary shape. The
// score is integer percent of passing controls, zero when nothing ran.
func SummarizeControls(controls []ControlResult) EvidenceSummary {
	s := EvidenceSummary{ControlsTested: len(controls)}
	for _, c := range controls {
		if c.Passed {
			s.ControlsPassed++
		} else {
			s.ControlsFailed++
		}
	}
	if s.ControlsTested > 0 {
		s.OverallScore = s.ControlsPassed * 100 / s.ControlsTested
	}
	return s
}
