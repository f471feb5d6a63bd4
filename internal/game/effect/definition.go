// Package effect models battle effects such as bleeding and panic: their
// static definitions and the per-unit set of active effects.
package effect

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alienfall/tactics/internal/config"
)

// Duration types.
const (
	DurationTurns     = "turns"
	DurationPermanent = "permanent"
)

// Built-in effect ids raised by the damage model and suppression.
const (
	Bleeding   = "bleeding"
	Panicked   = "panicked"
	Suppressed = "suppressed"
)

// Def is the static definition of a battle effect.
type Def struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Icon         string `yaml:"icon"`
	DurationType string `yaml:"duration_type"`
	// Duration is the number of turns applied when the caller gives none.
	Duration  int `yaml:"duration"`
	MaxStacks int `yaml:"max_stacks"` // 0 = unstackable
	// AccuracyPenalty is subtracted from hit chance per stack.
	AccuracyPenalty int `yaml:"accuracy_penalty"`
	// APPenalty is removed from the AP grant per stack.
	APPenalty int `yaml:"ap_penalty"`
	// HPPerTurn is added to the overall HP pool per stack at turn start.
	HPPerTurn       int      `yaml:"hp_per_turn"`
	RestrictActions []string `yaml:"restrict_actions"`
	// LuaOnTick names a global Lua function called at turn start.
	LuaOnTick string `yaml:"lua_on_tick"`
}

// applyDefaults fills optional fields.
func (d *Def) applyDefaults() {
	if d.Name == "" {
		d.Name = d.ID
	}
	if d.DurationType == "" {
		d.DurationType = DurationTurns
	}
	if d.DurationType == DurationTurns && d.Duration == 0 {
		d.Duration = 1
	}
}

// Validate checks the definition after defaults are applied.
func (d *Def) Validate(source string) error {
	bad := func(field, reason string) error {
		return &config.ConfigurationError{Source: source, Record: d.ID, Field: field, Reason: reason}
	}
	switch {
	case d.ID == "":
		return bad("id", "must not be empty")
	case d.DurationType != DurationTurns && d.DurationType != DurationPermanent:
		return bad("duration_type", fmt.Sprintf("must be turns or permanent, got %q", d.DurationType))
	case d.Duration < 0:
		return bad("duration", "must not be negative")
	case d.MaxStacks < 0:
		return bad("max_stacks", "must not be negative")
	case d.AccuracyPenalty < 0 || d.APPenalty < 0:
		return bad("penalty", "penalties must not be negative")
	}
	return nil
}

// Registry holds all known effect definitions keyed by ID.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Def)}
}

// DefaultRegistry returns a Registry holding the built-in effects.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []*Def{
		{ID: Bleeding, Name: "Bleeding", Description: "Loses health every turn.",
			Duration: 3, MaxStacks: 3, HPPerTurn: -2},
		{ID: Panicked, Name: "Panicked", Description: "Cannot fire or throw.",
			Duration: 1, APPenalty: 1, AccuracyPenalty: 20,
			RestrictActions: []string{"use_item", "throw", "overwatch", "suppress"}},
		{ID: Suppressed, Name: "Suppressed", Description: "Pinned down by incoming fire.",
			Duration: 1, RestrictActions: []string{"overwatch"}},
	} {
		d.applyDefaults()
		r.Register(d)
	}
	return r
}

// Register adds def, replacing any entry with the same ID.
//
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Def) {
	r.defs[def.ID] = def
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns the definitions sorted by ID.
func (r *Registry) All() []*Def {
	out := make([]*Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadDirectory reads every *.yaml file in dir on top of the built-in effects.
// A file that fails validation is skipped and reported in skipped; unreadable
// or syntactically broken files abort the load.
//
// Postcondition: reg is non-nil when err is nil.
func LoadDirectory(dir string) (reg *Registry, skipped []error, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading effect dir %q: %w", dir, err)
	}
	reg = DefaultRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		def.applyDefaults()
		if err := def.Validate(path); err != nil {
			skipped = append(skipped, err)
			continue
		}
		reg.Register(&def)
	}
	return reg, skipped, nil
}
