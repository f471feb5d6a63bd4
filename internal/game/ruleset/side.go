package ruleset

import (
	"slices"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/unit"
)

// SideDef names a faction and whom it fights.
type SideDef struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	HostileTo []string `yaml:"hostile_to"`
}

func newSideDef() *SideDef { return &SideDef{} }

func (d *SideDef) key() string { return d.ID }

func (d *SideDef) applyDefaults() {
	if d.Name == "" {
		d.Name = d.ID
	}
}

func (d *SideDef) validate(source string) error {
	if _, err := unit.ParseSide(d.ID); err != nil {
		return &config.ConfigurationError{Source: source, Record: d.ID, Field: "id", Reason: err.Error()}
	}
	for _, h := range d.HostileTo {
		if _, err := unit.ParseSide(h); err != nil {
			return &config.ConfigurationError{Source: source, Record: d.ID, Field: "hostile_to", Reason: err.Error()}
		}
	}
	return nil
}

// Relations answers hostility questions between sides. Hostility is
// symmetric: either side listing the other is enough.
type Relations struct {
	hostile map[unit.Side][]unit.Side
}

// DefaultRelations has aliens fighting everyone else and nobody else at war.
func DefaultRelations() Relations {
	return Relations{hostile: map[unit.Side][]unit.Side{
		unit.SideXCOM:   {unit.SideAlien},
		unit.SideAllied: {unit.SideAlien},
		unit.SideAlien:  {unit.SideXCOM, unit.SideAllied, unit.SideCivilian},
	}}
}

// NewRelations builds relations from side records; sides without a record
// keep their default enemies.
func NewRelations(defs map[string]*SideDef) Relations {
	r := DefaultRelations()
	for _, d := range defs {
		var list []unit.Side
		for _, h := range d.HostileTo {
			list = append(list, unit.Side(h))
		}
		r.hostile[unit.Side(d.ID)] = list
	}
	return r
}

// Hostile reports whether a and b are at war.
func (r Relations) Hostile(a, b unit.Side) bool {
	if a == b {
		return false
	}
	return slices.Contains(r.hostile[a], b) || slices.Contains(r.hostile[b], a)
}

// LoadSides reads every side file in dir.
func LoadSides(dir string) (map[string]*SideDef, []error, error) {
	return loadRecords(dir, newSideDef)
}
