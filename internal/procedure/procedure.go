// Package procedure defines aircraft preset procedures: ordered sequences of
// scripted configuration steps, and the repository they are served from.
package procedure

import (
	"fmt"
)

// Step is one unit of a preset procedure.
//
// ActionCode is always defined: for conditional steps it evaluates a
// boolean-like numeric predicate, for action steps it performs a
// side-effecting mutation of host state. ExpectedStateCheckCode may be empty,
// in which case the step is never skipped.
type Step struct {
	// ID is a stable identifier used for progress reporting.
	ID int64 `json:"id"`

	// Description is a human-readable label, used in logging only.
	Description string `json:"description"`

	// IsConditional marks a wait-until-condition step rather than a
	// state-mutating step.
	IsConditional bool `json:"isConditional"`

	// ActionCode is the opaque script executed for this step.
	ActionCode string `json:"actionCode"`

	// ExpectedStateCheckCode, when non-empty, evaluates to non-zero when the
	// target state already holds and the step can be skipped.
	ExpectedStateCheckCode string `json:"expectedStateCheckCode,omitempty"`

	// DelayAfter is the time in milliseconds to wait after this step fires
	// before the next step is considered. For conditional steps it is the
	// polling interval between condition re-checks.
	DelayAfter float64 `json:"delayAfterMs"`
}

// Procedure is an ordered sequence of steps identified by a preset ID.
// Immutable once registered with a Repository.
type Procedure struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Size returns the number of steps.
func (p *Procedure) Size() int {
	return len(p.Steps)
}

// Validate checks a procedure definition for structural errors.
func (p *Procedure) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("procedure %q: preset id must be positive, got %d", p.Name, p.ID)
	}
	seen := make(map[int64]struct{}, len(p.Steps))
	for i, s := range p.Steps {
		if s.ActionCode == "" {
			return fmt.Errorf("procedure %d step %d (%s): action code is empty", p.ID, i, s.Description)
		}
		if s.DelayAfter < 0 {
			return fmt.Errorf("procedure %d step %d (%s): negative delay %f", p.ID, i, s.Description, s.DelayAfter)
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("procedure %d: duplicate step id %d", p.ID, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}
