package ruleset

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/effect"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/inventory"
	"github.com/alienfall/tactics/internal/game/unit"
)

// RosterEntry places one unit on the map.
type RosterEntry struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Side     string     `yaml:"side"`
	Race     string     `yaml:"race"`
	Skills   []string   `yaml:"skills"`
	Position grid.Coord `yaml:"position"`
	Stance   string     `yaml:"stance"`
	Facing   string     `yaml:"facing"`
	// Loadout maps slot names to item ids.
	Loadout map[string]string `yaml:"loadout"`
}

// Roster is the set of units that start a battle.
type Roster struct {
	Units []RosterEntry `yaml:"units"`
}

// LoadRoster reads a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	var r Roster
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	return &r, nil
}

// Catalog bundles the static records needed to turn a roster into units.
type Catalog struct {
	Races   map[string]*Race
	Skills  map[string]*Skill
	Items   *inventory.Registry
	Effects *effect.Registry
}

// BuildUnits creates one unit per roster entry, sorted by id.
//
// Postcondition: every unit has its race stats, skill modifiers, battle-skill
// effects and loadout applied, or an error names the first bad entry.
func (c Catalog) BuildUnits(r *Roster) ([]*unit.Unit, error) {
	seen := map[string]bool{}
	units := make([]*unit.Unit, 0, len(r.Units))
	for _, e := range r.Units {
		if e.ID == "" || seen[e.ID] {
			return nil, &config.ConfigurationError{Source: "roster", Record: e.ID, Field: "id", Reason: "missing or duplicate"}
		}
		seen[e.ID] = true
		u, err := c.buildUnit(e)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units, nil
}

func (c Catalog) buildUnit(e RosterEntry) (*unit.Unit, error) {
	bad := func(field string, err error) error {
		return &config.ConfigurationError{Source: "roster", Record: e.ID, Field: field, Reason: err.Error()}
	}
	side, err := unit.ParseSide(e.Side)
	if err != nil {
		return nil, bad("side", err)
	}
	stance, err := unit.ParseStance(e.Stance)
	if err != nil {
		return nil, bad("stance", err)
	}
	facing := grid.North
	if e.Facing != "" {
		if facing, err = grid.ParseDirection(e.Facing); err != nil {
			return nil, bad("facing", err)
		}
	}
	race, ok := c.Races[e.Race]
	if !ok {
		return nil, bad("race", fmt.Errorf("unknown race %q", e.Race))
	}
	if stance == unit.Crouched && !race.CanKneel {
		return nil, bad("stance", fmt.Errorf("race %q cannot kneel", race.ID))
	}

	mods := map[string]int{}
	var battleSkills []*Skill
	for _, id := range e.Skills {
		s, ok := c.Skills[id]
		if !ok {
			return nil, bad("skills", fmt.Errorf("unknown skill %q", id))
		}
		if !s.AllowedFor(race.ID) {
			return nil, bad("skills", fmt.Errorf("skill %q not available to race %q", id, race.ID))
		}
		for k, v := range s.Stats {
			mods[k] += v
		}
		if s.Type == SkillBattle {
			battleSkills = append(battleSkills, s)
		}
	}

	inv := inventory.NewManager()
	if len(e.Loadout) > 0 {
		if c.Items == nil {
			return nil, bad("loadout", fmt.Errorf("no item catalog loaded"))
		}
		if err := inv.LoadTemplate(inventory.Template{Name: e.ID, Slots: e.Loadout}, c.Items); err != nil {
			return nil, bad("loadout", err)
		}
	}

	u := unit.New(unit.Spec{
		ID:           e.ID,
		Name:         e.Name,
		Side:         side,
		RaceID:       race.ID,
		Pos:          e.Position,
		Facing:       facing,
		Stance:       stance,
		Base:         race.Stats,
		SkillMods:    mods,
		NaturalArmor: race.NaturalArmor,
		ImmunePanic:  race.ImmunePanic,
		ImmuneBleed:  race.ImmuneBleed,
		CanKneel:     race.CanKneel,
		Inventory:    inv,
	})

	for _, s := range battleSkills {
		if c.Effects == nil {
			return nil, bad("skills", fmt.Errorf("no effect catalog for battle skill %q", s.ID))
		}
		def, ok := c.Effects.Get(s.BattleEffect)
		if !ok {
			return nil, bad("skills", fmt.Errorf("skill %q names unknown effect %q", s.ID, s.BattleEffect))
		}
		if err := u.Effects.Apply(def, 1, s.BattleDuration); err != nil {
			return nil, bad("skills", err)
		}
	}
	return u, nil
}
