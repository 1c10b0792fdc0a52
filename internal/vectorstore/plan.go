package vectorstore

import "github.com/kozaktomas/face-auth/internal/constants"

// DefaultIndexSpec is the index every searched collection must carry:
// inner product on unit vectors equals cosine similarity, and IVF flat is
// the approximate-nearest-neighbor family the decision engine is tuned for.
func DefaultIndexSpec() IndexSpec {
	return IndexSpec{
		Metric: MetricInnerProduct,
		Family: FamilyIVFFlat,
		Lists:  constants.IndexLists,
	}
}

// IndexPlan is the outcome of comparing an existing index against the
// required spec.
type IndexPlan int

const (
	// PlanKeep leaves the existing index untouched.
	PlanKeep IndexPlan = iota
	// PlanCreate creates the index because none exists on the field.
	PlanCreate
	// PlanRebuild drops the mismatched index and recreates it. A collection
	// is never searched under a mismatched metric.
	PlanRebuild
)

func (p IndexPlan) String() string {
	switch p {
	case PlanKeep:
		return "keep"
	case PlanCreate:
		return "create"
	case PlanRebuild:
		return "rebuild"
	default:
		return "unknown"
	}
}

// PlanIndex decides what to do with the existing vector index (nil when the
// field has none) given the required spec. Pure function, unit-testable
// without a live store; the bootstrapper executes the resulting plan.
func PlanIndex(existing *IndexInfo, want IndexSpec) IndexPlan {
	if existing == nil {
		return PlanCreate
	}
	if existing.Metric != want.Metric || existing.Family != want.Family {
		return PlanRebuild
	}
	return PlanKeep
}
