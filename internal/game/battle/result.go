package battle

import (
	"slices"

	"github.com/alienfall/tactics/internal/game/damage"
	"github.com/alienfall/tactics/internal/game/fow"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/unit"
)

// EventKind labels an entry in the battle's event stream.
type EventKind string

const (
	EventMove       EventKind = "move"
	EventStance     EventKind = "stance"
	EventCover      EventKind = "cover"
	EventShot       EventKind = "shot"
	EventReaction   EventKind = "reaction"
	EventDamage     EventKind = "damage"
	EventHeal       EventKind = "heal"
	EventThrow      EventKind = "throw"
	EventSmoke      EventKind = "smoke"
	EventOverwatch  EventKind = "overwatch"
	EventSuppress   EventKind = "suppress"
	EventPinned     EventKind = "pinned"
	EventEffect     EventKind = "effect"
	EventExpired    EventKind = "expired"
	EventDeath      EventKind = "death"
	EventKnockOut   EventKind = "unconscious"
	EventWake       EventKind = "wake"
	EventSurrender  EventKind = "surrender"
	EventRest       EventKind = "rest"
	EventTurnStart  EventKind = "turn_start"
	EventTurnEnd    EventKind = "turn_end"
	EventBattleOver EventKind = "battle_over"
)

// Event is one thing that happened, in chronological order.
type Event struct {
	Kind   EventKind
	Actor  string
	Target string
	At     grid.Coord
	// Chance and Roll are set for percentile checks.
	Chance int
	Roll   int
	Hit    bool
	Damage *damage.Result
	// Amount carries AP, HP or counter changes depending on Kind.
	Amount    int
	Narrative string
}

// UnitDelta summarises how one unit changed during an action.
type UnitDelta struct {
	ID          string
	From, To    grid.Coord
	APBefore    int
	APAfter     int
	HPBefore    int
	HPAfter     int
	StatusAfter unit.Status
	Effects     []string
}

// ActionResult is returned for every submitted action.
type ActionResult struct {
	Accepted bool
	Reason   ReasonCode
	Message  string
	APSpent  int
	// Units holds a delta for every unit that changed, sorted by id.
	Units []UnitDelta
	// Visibility lists every tile whose level changed for any side.
	Visibility []fow.Change
	Events     []Event
}

type unitState struct {
	pos     grid.Coord
	ap      int
	hp      int
	status  unit.Status
	effects []string
	stance  unit.Stance
	energy  int
}

func captureUnits(units []*unit.Unit) map[string]unitState {
	out := make(map[string]unitState, len(units))
	for _, u := range units {
		out[u.ID] = unitState{pos: u.Pos, ap: u.AP, hp: u.HP, status: u.Status,
			effects: u.Effects.IDs(), stance: u.Stance, energy: u.Energy}
	}
	return out
}

func diffUnits(before map[string]unitState, units []*unit.Unit) []UnitDelta {
	var out []UnitDelta
	for _, u := range units {
		b := before[u.ID]
		effects := u.Effects.IDs()
		if b.pos == u.Pos && b.ap == u.AP && b.hp == u.HP && b.status == u.Status &&
			b.stance == u.Stance && b.energy == u.Energy && slices.Equal(b.effects, effects) {
			continue
		}
		out = append(out, UnitDelta{ID: u.ID, From: b.pos, To: u.Pos, APBefore: b.ap, APAfter: u.AP,
			HPBefore: b.hp, HPAfter: u.HP, StatusAfter: u.Status, Effects: effects})
	}
	return out
}
