package battle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/battle"
	"github.com/alienfall/tactics/internal/game/dice"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/inventory"
	"github.com/alienfall/tactics/internal/game/unit"
)

var (
	rifle = &inventory.ItemDef{ID: "rifle", Name: "Rifle", Category: inventory.CategoryWeapon,
		Weapon: &inventory.WeaponStats{Damage: "60", DamageType: "kinetic", Penetration: 20, Range: 20, APCost: 2}}
	pistol = &inventory.ItemDef{ID: "pistol", Name: "Pistol", Category: inventory.CategoryWeapon,
		Weapon: &inventory.WeaponStats{Damage: "1d6", DamageType: "kinetic", Penetration: 5, Range: 4, APCost: 1}}
	stunRod = &inventory.ItemDef{ID: "stun_rod", Name: "Stun Rod", Category: inventory.CategoryWeapon,
		Weapon: &inventory.WeaponStats{Damage: "40", DamageType: "stun", Penetration: 20, Range: 20, APCost: 2}}
	medkit = &inventory.ItemDef{ID: "medkit", Name: "Medkit", Category: inventory.CategoryEquipment,
		Heal: 10, Consumable: true}
	grenade = &inventory.ItemDef{ID: "grenade", Name: "Grenade", Category: inventory.CategoryEquipment, Consumable: true,
		Throw: &inventory.ThrowStats{Damage: "30", DamageType: "explosive", Penetration: 5, BlastRadius: 1, BlastDropoff: 10}}
	smokeGrenade = &inventory.ItemDef{ID: "smoke", Name: "Smoke Grenade", Category: inventory.CategoryEquipment, Consumable: true,
		Throw: &inventory.ThrowStats{Smoke: true, BlastRadius: 1}}
)

// soldier builds a unit with 40 HP, 6 AP and 20 energy carrying items.
func soldier(id string, side unit.Side, pos grid.Coord, items ...*inventory.ItemDef) *unit.Unit {
	inv := inventory.NewManager()
	for _, d := range items {
		if ok, _ := inv.AutoEquip(inventory.NewItem(d)); !ok {
			panic("could not equip " + d.ID)
		}
	}
	return unit.New(unit.Spec{ID: id, Name: id, Side: side, Pos: pos, CanKneel: true, Inventory: inv,
		Base: unit.Stats{Health: 40, ActionPoints: 6, Aim: 60, Reaction: 5, Strength: 6, Sight: 20, Energy: 20}})
}

func options(g *grid.Grid, src dice.Source, units ...*unit.Unit) battle.Options {
	cfg := config.Defaults()
	return battle.Options{ID: "test", Grid: g, Units: units, Rules: cfg.Battle, Damage: cfg.Damage, Source: src}
}

func newBattle(t *testing.T, src dice.Source, units ...*unit.Unit) *battle.Battle {
	t.Helper()
	b, err := battle.New(options(grid.New("field", 12, 12), src, units...))
	require.NoError(t, err)
	return b
}

func at(x, y int) *grid.Coord { return &grid.Coord{X: x, Y: y} }

func eventsOf(res battle.ActionResult, kind battle.EventKind) []battle.Event {
	var out []battle.Event
	for _, e := range res.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// hit and miss force every percentile roll to succeed or fail.
var (
	hit  = dice.Fixed{Val: 0}
	miss = dice.Fixed{Val: 99}
)
