package resolver

import (
	"fmt"

	"github.com/capnteebs/parlance/pkg/config"
	"github.com/capnteebs/parlance/pkg/lexicon"
)

// Policy holds the bucket thresholds and the floor applied to explicit
// candidates.
type Policy struct {
	Direct        float64
	Related       float64
	Contextual    float64
	ExplicitFloor float64
}

// DefaultPolicy: direct >= 0.85, related >= 0.70, contextual >= 0.50.
func DefaultPolicy() Policy {
	return Policy{Direct: 0.85, Related: 0.70, Contextual: 0.50, ExplicitFloor: 0.85}
}

// PolicyFromConfig converts and validates the policy section.
func PolicyFromConfig(c config.PolicyConfig) (Policy, error) {
	p := Policy{
		Direct:        c.DirectThreshold,
		Related:       c.RelatedThreshold,
		Contextual:    c.ContextualThreshold,
		ExplicitFloor: c.ExplicitFloor,
	}
	return p, p.Validate()
}

// Validate requires 0 <= contextual < related < direct <= 1 and a floor in
// [0,1].
func (p Policy) Validate() error {
	if !(0 <= p.Contextual && p.Contextual < p.Related && p.Related < p.Direct && p.Direct <= 1) {
		return fmt.Errorf("invalid policy: thresholds must satisfy 0 <= contextual < related < direct <= 1 (got %.4f, %.4f, %.4f)",
			p.Contextual, p.Related, p.Direct)
	}
	if p.ExplicitFloor < 0 || p.ExplicitFloor > 1 {
		return fmt.Errorf("invalid policy: explicit floor %.4f outside [0,1]", p.ExplicitFloor)
	}
	return nil
}

// Bucket maps a fused score to its tier; scores below the contextual
// threshold map to BucketNone.
func (p Policy) Bucket(score float64) lexicon.Bucket {
	switch {
	case score >= p.Direct:
		return lexicon.BucketDirect
	case score >= p.Related:
		return lexicon.BucketRelated
	case score >= p.Contextual:
		return lexicon.BucketContextual
	}
	return lexicon.BucketNone
}
