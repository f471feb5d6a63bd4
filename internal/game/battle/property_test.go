package battle_test

import (
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/alienfall/tactics/internal/game/battle"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/inventory"
	"github.com/alienfall/tactics/internal/game/unit"
)

type fullState struct {
	Pos         grid.Coord
	Facing      grid.Direction
	Stance      unit.Stance
	AP          int
	ReservedAP  int
	HP          int
	PartHP      map[unit.BodyPart]int
	Energy      int
	Stun        int
	Morale      int
	Overwatch   bool
	CoverBonus  int
	Suppression int
	Status      unit.Status
	Effects     []string
	Items       int
}

func snapshot(b *battle.Battle) map[string]fullState {
	out := map[string]fullState{}
	for _, u := range b.Units() {
		parts := make(map[unit.BodyPart]int, len(u.PartHP))
		for p, hp := range u.PartHP {
			parts[p] = hp
		}
		out[u.ID] = fullState{Pos: u.Pos, Facing: u.Facing, Stance: u.Stance, AP: u.AP, ReservedAP: u.ReservedAP,
			HP: u.HP, PartHP: parts, Energy: u.Energy, Stun: u.Stun, Morale: u.Morale, Overwatch: u.Overwatch, CoverBonus: u.CoverBonus,
			Suppression: u.Suppression, Status: u.Status, Effects: u.Effects.IDs(), Items: len(u.Inventory.Items())}
	}
	return out
}

func drawAction(t *rapid.T, ids []string) battle.Action {
	a := battle.Action{
		Kind:  rapid.SampledFrom(battle.Kinds).Draw(t, "kind"),
		Actor: rapid.SampledFrom(ids).Draw(t, "actor"),
	}
	if rapid.Bool().Draw(t, "has_target") {
		a.Target = &grid.Coord{X: rapid.IntRange(-1, 10).Draw(t, "x"), Y: rapid.IntRange(-1, 10).Draw(t, "y")}
	}
	if rapid.Bool().Draw(t, "has_target_unit") {
		a.TargetUnit = rapid.SampledFrom(ids).Draw(t, "target_unit")
	}
	if rapid.Bool().Draw(t, "has_slot") {
		a.Slot = rapid.SampledFrom(inventory.AllSlots).Draw(t, "slot")
	}
	if rapid.Bool().Draw(t, "has_facing") {
		a.Facing = rapid.SampledFrom([]string{"n", "e", "s", "w", "se", "up"}).Draw(t, "facing")
	}
	return a
}

func TestProperty_LedgerNeverOverspendsAndRejectionsChangeNothing(t *testing.T) {
	ids := []string{"s1", "s2", "x1", "x2"}
	rapid.Check(t, func(t *rapid.T) {
		opts := options(grid.New("field", 10, 10), nil,
			soldier("s1", unit.SideXCOM, grid.Coord{X: 1, Y: 1}, rifle, medkit, grenade),
			soldier("s2", unit.SideXCOM, grid.Coord{X: 2, Y: 1}, pistol, smokeGrenade),
			soldier("x1", unit.SideAlien, grid.Coord{X: 8, Y: 8}, rifle),
			soldier("x2", unit.SideAlien, grid.Coord{X: 7, Y: 8}, pistol, grenade),
		)
		opts.Seed = rapid.Uint64().Draw(t, "seed")
		b, err := battle.New(opts)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		n := rapid.IntRange(1, 40).Draw(t, "actions")
		for i := 0; i < n; i++ {
			a := drawAction(t, ids)
			before := snapshot(b)
			res := b.Submit(a)

			l := b.Ledger()
			if l.Spent < 0 || l.Spent > l.Granted {
				t.Fatalf("ledger %+v after %s", l, a)
			}
			if res.Accepted {
				if res.APSpent < 0 {
					t.Fatalf("negative AP spent for %s", a)
				}
				continue
			}
			if res.Reason == "" {
				t.Fatalf("rejection of %s carries no reason", a)
			}
			if after := snapshot(b); !reflect.DeepEqual(before, after) {
				t.Fatalf("rejected %s (%s) changed state:\nbefore %+v\nafter  %+v", a, res.Reason, before, after)
			}
		}
	})
}
