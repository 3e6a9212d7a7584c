package routing

import (
	"math"

	"github.com/pkg/errors"

	"access_router/pkg/graph"
)

// ErrInvalidRule is returned for an avoidance rule with an empty tag or a
// multiplier that is not a finite positive number.
var ErrInvalidRule = errors.New("invalid avoidance rule")

// DefaultStairsPenalty is the multiplier applied to stair junctions when the
// caller asks to avoid stairs without naming a multiplier.
const DefaultStairsPenalty = 10.0

// AvoidRule inflates the cost of entering a node that carries Tag.
type AvoidRule struct {
	Tag        graph.Tag
	Multiplier float64
}

// Policy is an ordered list of avoidance rules. Avoidance is a cost penalty,
// never an exclusion: a penalized route is still returned when it is the only
// one.
type Policy []AvoidRule

// AvoidStairs is the policy used for step-free routing.
func AvoidStairs() Policy {
	return Policy{{Tag: graph.TagHasStairs, Multiplier: DefaultStairsPenalty}}
}

// Validate checks every rule.
func (p Policy) Validate() error {
	for i, r := range p {
		if r.Tag == "" {
			return errors.Wrapf(ErrInvalidRule, "rule %d: empty tag", i)
		}
		if math.IsNaN(r.Multiplier) || math.IsInf(r.Multiplier, 0) || r.Multiplier <= 0 {
			return errors.Wrapf(ErrInvalidRule, "rule %d (%s): multiplier %v", i, r.Tag, r.Multiplier)
		}
	}
	return nil
}

// Multiplier returns the largest multiplier among rules whose tag is on n,
// or 1 when no rule matches.
func (p Policy) Multiplier(n *graph.Node) float64 {
	m, matched := 0.0, false
	for _, r := range p {
		if n.HasTag(r.Tag) && (!matched || r.Multiplier > m) {
			m, matched = r.Multiplier, true
		}
	}
	if !matched {
		return 1
	}
	return m
}

// Avoids reports whether n carries any tag named by the policy.
func (p Policy) Avoids(n *graph.Node) bool {
	for _, r := range p {
		if n.HasTag(r.Tag) {
			return true
		}
	}
	return false
}
