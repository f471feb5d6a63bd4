// Package unit models soldiers and aliens on the battlefield: their sides,
// stances, body parts, stats and mutable battle state.
package unit

import "fmt"

// Side is the faction a unit fights for.
type Side string

const (
	SideXCOM     Side = "xcom"
	SideAlien    Side = "alien"
	SideCivilian Side = "civilian"
	SideAllied   Side = "allied"
)

// Sides lists every side in turn order.
var Sides = []Side{SideXCOM, SideAllied, SideAlien, SideCivilian}

// ParseSide validates a side name.
func ParseSide(s string) (Side, error) {
	for _, side := range Sides {
		if string(side) == s {
			return side, nil
		}
	}
	return "", fmt.Errorf("unit: unknown side %q", s)
}

// Stance is a unit's posture.
type Stance int

const (
	Standing Stance = iota
	Crouched
	Prone
)

var stanceNames = [...]string{"standing", "crouched", "prone"}

func (s Stance) String() string {
	if s < Standing || s > Prone {
		return fmt.Sprintf("stance(%d)", int(s))
	}
	return stanceNames[s]
}

// ParseStance accepts "standing", "crouched" or "prone"; "" means standing.
func ParseStance(s string) (Stance, error) {
	if s == "" {
		return Standing, nil
	}
	for i, n := range stanceNames {
		if n == s {
			return Stance(i), nil
		}
	}
	return Standing, fmt.Errorf("unit: unknown stance %q", s)
}

// BodyPart is a hit location with its own HP.
type BodyPart string

const (
	Head     BodyPart = "head"
	Torso    BodyPart = "torso"
	LeftArm  BodyPart = "left_arm"
	RightArm BodyPart = "right_arm"
	LeftLeg  BodyPart = "left_leg"
	RightLeg BodyPart = "right_leg"
)

// BodyParts lists every part in a fixed order.
var BodyParts = []BodyPart{Head, Torso, LeftArm, RightArm, LeftLeg, RightLeg}

// IsVital reports whether losing the part kills the unit.
func (p BodyPart) IsVital() bool { return p == Head || p == Torso }

// IsLeg reports whether the part carries the unit.
func (p BodyPart) IsLeg() bool { return p == LeftLeg || p == RightLeg }

// partRatio is the share of Health each part's HP is derived from.
var partRatio = map[BodyPart]float64{
	Head: 0.3, Torso: 0.5,
	LeftArm: 0.25, RightArm: 0.25,
	LeftLeg: 0.3, RightLeg: 0.3,
}

// Status is a unit's lifecycle state.
type Status int

const (
	Active Status = iota
	Dead
	Surrendered
	// Unconscious units keep their tile and can still be hit but cannot act.
	Unconscious
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Dead:
		return "dead"
	case Surrendered:
		return "surrendered"
	case Unconscious:
		return "unconscious"
	}
	return fmt.Sprintf("status(%d)", int(s))
}
