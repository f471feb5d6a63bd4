// Package dice provides the randomness abstraction, weapon damage expressions
// and the roll audit trail for the battle core.
package dice

import "fmt"

// Source is the randomness provider for every roll in a battle.
//
// Implementations used by a single battle need not be safe for concurrent use;
// the battle serialises all rolls.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RollResult holds the audit trail for a single damage expression roll.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String formats the roll as "2d6+3 [4 5] = 12". A roll built without an
// expression is labelled "roll".
func (r RollResult) String() string {
	label := r.Expression
	if label == "" {
		label = "roll"
	}
	return fmt.Sprintf("%s %v = %d", label, r.Dice, r.Total())
}
