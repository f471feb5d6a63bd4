package damage

import "github.com/alienfall/tactics/internal/game/unit"

type weightedPart struct {
	part   unit.BodyPart
	weight int
}

// hitTables give per-stance body-part weights summing to 100.
// Low stances expose the head and hide the legs.
var hitTables = map[unit.Stance][]weightedPart{
	unit.Standing: {
		{unit.Head, 10}, {unit.Torso, 40},
		{unit.LeftArm, 12}, {unit.RightArm, 12},
		{unit.LeftLeg, 13}, {unit.RightLeg, 13},
	},
	unit.Crouched: {
		{unit.Head, 15}, {unit.Torso, 45},
		{unit.LeftArm, 15}, {unit.RightArm, 15},
		{unit.LeftLeg, 5}, {unit.RightLeg, 5},
	},
	unit.Prone: {
		{unit.Head, 25}, {unit.Torso, 35},
		{unit.LeftArm, 15}, {unit.RightArm, 15},
		{unit.LeftLeg, 5}, {unit.RightLeg, 5},
	},
}

// HitLocation maps a roll in 0..99 to the body part struck.
// Out-of-range rolls are clamped.
func HitLocation(stance unit.Stance, roll int) unit.BodyPart {
	table, ok := hitTables[stance]
	if !ok {
		table = hitTables[unit.Standing]
	}
	roll = min(99, max(0, roll))
	for _, wp := range table {
		if roll < wp.weight {
			return wp.part
		}
		roll -= wp.weight
	}
	return unit.Torso
}
