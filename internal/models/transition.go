package models

import "fmt"

// TransitionResult reports the outcome of a bulk state transition. Affected counts
// only rows whose state this call actually changed.
type TransitionResult struct {
	Requested   int      `json:"requested"`
	Affected    int      `json:"affected"`
	AffectedIDs []string `json:"affected_ids"`
	SkippedIDs  []string `json:"skipped_ids,omitempty"`
}

// NewTransitionResult derives skipped ids from the requested and affected sets.
func NewTransitionResult(requested, affected []string) *TransitionResult {
	done := make(map[string]struct{}, len(affected))
	for _, id := range affected {
		done[id] = struct{}{}
	}
	skipped := make([]string, 0)
	for _, id := range requested {
		if _, ok := done[id]; !ok {
			skipped = append(skipped, id)
		}
	}
	if affected == nil {
		affected = []string{}
	}
	return &TransitionResult{
		Requested:   len(requested),
		Affected:    len(affected),
		AffectedIDs: affected,
		SkippedIDs:  skipped,
	}
}

// NothingMatched reports whether no record was in a state allowing the transition.
func (r *TransitionResult) NothingMatched() bool {
	return r == nil || r.Affected == 0
}

// Summary renders a human message such as "3 of 5 records approved".
func (r *TransitionResult) Summary(verb string) string {
	if r.NothingMatched() {
		return fmt.Sprintf("no records were %s: none were in a state that allows it", verb)
	}
	if r.Requested > 0 {
		return fmt.Sprintf("%d of %d records %s", r.Affected, r.Requested, verb)
	}
	return fmt.Sprintf("%d records %s", r.Affected, verb)
}
