package ruleset

import (
	"fmt"
	"slices"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/unit"
)

// Skill types.
const (
	// SkillPassive skills only modify stats.
	SkillPassive = "passive"
	// SkillBattle skills also start every battle with an effect applied.
	SkillBattle = "battle"
)

// Skill is a trained ability.
type Skill struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Icon        string         `yaml:"icon"`
	Type        string         `yaml:"type"`
	Stats       map[string]int `yaml:"stats"`
	Cost        int            `yaml:"cost"`
	// Races limits who may learn the skill; empty means everyone.
	Races          []string `yaml:"races"`
	MinLevel       int      `yaml:"min_level"`
	MaxLevel       int      `yaml:"max_level"`
	BattleEffect   string   `yaml:"battle_effect"`
	BattleDuration int      `yaml:"battle_duration"`
}

func newSkill() *Skill { return &Skill{} }

func (s *Skill) key() string { return s.ID }

func (s *Skill) applyDefaults() {
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.Type == "" {
		s.Type = SkillPassive
	}
}

func (s *Skill) validate(source string) error {
	bad := func(field, reason string) error {
		return &config.ConfigurationError{Source: source, Record: s.ID, Field: field, Reason: reason}
	}
	if s.ID == "" {
		return bad("id", "must not be empty")
	}
	if s.Type != SkillPassive && s.Type != SkillBattle {
		return bad("type", fmt.Sprintf("must be passive or battle, got %q", s.Type))
	}
	for name := range s.Stats {
		if !unit.IsStat(name) {
			return bad("stats", fmt.Sprintf("unknown stat %q", name))
		}
	}
	if s.Type == SkillBattle && s.BattleEffect == "" {
		return bad("battle_effect", "required for battle skills")
	}
	if s.Cost < 0 || s.MinLevel < 0 || s.MaxLevel < 0 {
		return bad("cost", "cost and levels must not be negative")
	}
	if s.MaxLevel > 0 && s.MinLevel > s.MaxLevel {
		return bad("min_level", "must not exceed max_level")
	}
	return nil
}

// AllowedFor reports whether a unit of raceID may use the skill.
func (s *Skill) AllowedFor(raceID string) bool {
	return len(s.Races) == 0 || slices.Contains(s.Races, raceID)
}

// LoadSkills reads every skill file in dir.
func LoadSkills(dir string) (map[string]*Skill, []error, error) {
	return loadRecords(dir, newSkill)
}
