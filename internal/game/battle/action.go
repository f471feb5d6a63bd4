package battle

import (
	"fmt"

	"github.com/alienfall/tactics/internal/game/grid"
)

// Kind identifies what an action does.
type Kind string

const (
	KindMove      Kind = "move"
	KindCrouch    Kind = "crouch"
	KindUseItem   Kind = "use_item"
	KindCover     Kind = "cover"
	KindThrow     Kind = "throw"
	KindOverwatch Kind = "overwatch"
	KindSuppress  Kind = "suppress"
	KindRest      Kind = "rest"
	KindEndTurn   Kind = "end_turn"
	KindSurrender Kind = "surrender"
)

// Kinds lists every action kind.
var Kinds = []Kind{KindMove, KindCrouch, KindUseItem, KindCover, KindThrow,
	KindOverwatch, KindSuppress, KindRest, KindEndTurn, KindSurrender}

// ParseKind validates an action kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("battle: unknown action kind %q", s)
}

// Action is one command submitted to a battle. Which fields matter depends
// on Kind:
//
//	move       Target (destination) or Path (explicit steps)
//	use_item   Slot (default Weapon), TargetUnit (shot target or heal target, default self)
//	throw      Slot (default first throwable), Target (landing tile)
//	overwatch  Facing or Target (direction to watch), default current facing
//	suppress   TargetUnit
//
// crouch, cover, rest, end_turn and surrender take no arguments.
type Action struct {
	Kind       Kind         `yaml:"kind"`
	Actor      string       `yaml:"actor,omitempty"`
	Target     *grid.Coord  `yaml:"target,omitempty"`
	Path       []grid.Coord `yaml:"path,omitempty"`
	TargetUnit string       `yaml:"target_unit,omitempty"`
	Slot       string       `yaml:"slot,omitempty"`
	Facing     string       `yaml:"facing,omitempty"`
}

func (a Action) String() string {
	s := string(a.Kind)
	if a.Actor != "" {
		s += " by " + a.Actor
	}
	if a.TargetUnit != "" {
		s += " on " + a.TargetUnit
	}
	if a.Target != nil {
		s += " at " + a.Target.String()
	}
	return s
}

// Phase is where a unit is in its per-turn action cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActing
	PhaseResolved
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActing:
		return "acting"
	case PhaseResolved:
		return "resolved"
	case PhaseRejected:
		return "rejected"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}
