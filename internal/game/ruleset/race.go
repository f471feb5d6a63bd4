package ruleset

import (
	"fmt"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/unit"
)

// Default stats for fields a race file leaves at zero.
const (
	DefaultActionPoints = 4
	DefaultSight        = 20
	DefaultEnergy       = 20
)

// Race is a species template: base stats and innate traits.
type Race struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description"`
	Stats        unit.Stats `yaml:"stats"`
	NaturalArmor int        `yaml:"natural_armor"`
	ImmunePanic  bool       `yaml:"immune_panic"`
	ImmuneBleed  bool       `yaml:"immune_bleed"`
	// CanKneel defaults to true.
	CanKneel bool `yaml:"can_kneel"`
}

func newRace() *Race { return &Race{CanKneel: true} }

func (r *Race) key() string { return r.ID }

func (r *Race) applyDefaults() {
	if r.Name == "" {
		r.Name = r.ID
	}
	if r.Stats.ActionPoints == 0 {
		r.Stats.ActionPoints = DefaultActionPoints
	}
	if r.Stats.Sight == 0 {
		r.Stats.Sight = DefaultSight
	}
	if r.Stats.Energy == 0 {
		r.Stats.Energy = DefaultEnergy
	}
}

func (r *Race) validate(source string) error {
	bad := func(field, reason string) error {
		return &config.ConfigurationError{Source: source, Record: r.ID, Field: field, Reason: reason}
	}
	s := r.Stats
	switch {
	case r.ID == "":
		return bad("id", "must not be empty")
	case s.Health <= 0:
		return bad("stats.health", fmt.Sprintf("must be positive, got %d", s.Health))
	case s.ActionPoints < 0 || s.Aim < 0 || s.Reaction < 0 || s.Strength < 0 || s.Sight < 0 || s.Energy < 0:
		return bad("stats", "must not be negative")
	case r.NaturalArmor < 0:
		return bad("natural_armor", "must not be negative")
	}
	return nil
}

// LoadRaces reads every race file in dir.
func LoadRaces(dir string) (map[string]*Race, []error, error) {
	return loadRecords(dir, newRace)
}
