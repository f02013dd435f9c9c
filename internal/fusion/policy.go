package fusion

import (
	"fmt"
	"strings"
)

// Policy selects how overlapping valid pixels are combined.
type Policy string

const (
	// PolicyMean is the per-pixel arithmetic mean of valid inputs.
	PolicyMean Policy = "mean"
	// PolicyWeightedMean is the per-pixel weighted mean of valid inputs.
	PolicyWeightedMean Policy = "weighted-mean"
	// PolicyRecency takes the most recent valid input within tolerance.
	PolicyRecency Policy = "recency-gap-fill"
)

// Policies lists the supported policies in documentation order.
var Policies = []Policy{PolicyMean, PolicyWeightedMean, PolicyRecency}

// ParsePolicy parses a policy name. Empty selects PolicyMean.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyMean:
		return PolicyMean, nil
	case PolicyWeightedMean, "weighted":
		return PolicyWeightedMean, nil
	case PolicyRecency, "recency":
		return PolicyRecency, nil
	}
	return "", fmt.Errorf("%w: %q (valid: mean, weighted-mean, recency-gap-fill)", ErrUnknownPolicy, s)
}

func (p Policy) String() string { return string(p) }
