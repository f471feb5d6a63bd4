package effect

import "slices"

// AccuracyPenalty returns the total hit-chance penalty from active effects.
//
// Postcondition: Returns >= 0.
func AccuracyPenalty(s *ActiveSet) int {
	total := 0
	for _, a := range s.effects {
		total += a.Def.AccuracyPenalty * a.Stacks
	}
	return total
}

// APPenalty returns the AP removed from the next grant.
//
// Postcondition: Returns >= 0.
func APPenalty(s *ActiveSet) int {
	total := 0
	for _, a := range s.effects {
		total += a.Def.APPenalty * a.Stacks
	}
	return total
}

// HPPerTurn returns the static per-turn HP change across all effects.
func HPPerTurn(s *ActiveSet) int {
	total := 0
	for _, a := range s.effects {
		total += a.Def.HPPerTurn * a.Stacks
	}
	return total
}

// IsActionRestricted reports whether any active effect forbids the action kind.
func IsActionRestricted(s *ActiveSet, kind string) bool {
	for _, a := range s.effects {
		if slices.Contains(a.Def.RestrictActions, kind) {
			return true
		}
	}
	return false
}
