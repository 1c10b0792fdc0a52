package verify

// Detail messages for negative verification outcomes. The reauthentication
// details are deliberately distinct so a caller can tell "retry via the full
// identity flow" apart from a genuine similarity failure.
const (
	DetailNoFacePassport     = "No face detected in passport image"
	DetailNoFaceSelfie       = "No face detected in selfie image"
	DetailBelowThreshold     = "Similarity below threshold"
	DetailHistoryUnavailable = "History unavailable; please reverify with full identity flow"
	DetailNoHistory          = "No prior embeddings found for user; please reverify with full flow"
)

// Result is the single structured outcome of a verification. Similarity is
// nil when no comparison could be made at all; Detail is set on every
// negative outcome and nil on success; Threshold always carries the decision
// boundary in effect at evaluation time.
type Result struct {
	IsAuthenticated bool     `json:"is_authenticated"`
	Similarity      *float64 `json:"similarity"`
	Threshold       float64  `json:"threshold"`
	Detail          *string  `json:"detail"`
}

func (e *Engine) accepted(sim float64) *Result {
	return &Result{
		IsAuthenticated: true,
		Similarity:      &sim,
		Threshold:       e.threshold,
	}
}

func (e *Engine) rejected(detail string) *Result {
	return &Result{
		IsAuthenticated: false,
		Threshold:       e.threshold,
		Detail:          &detail,
	}
}

func (e *Engine) rejectedWithScore(sim float64, detail string) *Result {
	r := e.rejected(detail)
	r.Similarity = &sim
	return r
}
