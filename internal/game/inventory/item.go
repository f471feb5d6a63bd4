// Package inventory holds the item catalog and the per-unit equipment manager.
package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/dice"
)

// Item categories. Each slot accepts exactly one category.
const (
	CategoryArmor     = "armor"
	CategoryWeapon    = "weapon"
	CategoryEquipment = "equipment"
)

// WeaponStats describes a firearm or melee weapon.
type WeaponStats struct {
	Damage      string `yaml:"damage"` // dice expression, e.g. "2d6+2"
	DamageType  string `yaml:"damage_type"`
	Penetration int    `yaml:"penetration"`
	Range       int    `yaml:"range"`
	Accuracy    int    `yaml:"accuracy"`
	APCost      int    `yaml:"ap_cost"`
	CritBonus   int    `yaml:"crit_bonus"`
}

// ThrowStats describes a grenade or other thrown item.
type ThrowStats struct {
	Damage       string `yaml:"damage"`
	DamageType   string `yaml:"damage_type"`
	Penetration  int    `yaml:"penetration"`
	BlastRadius  int    `yaml:"blast_radius"`
	BlastDropoff int    `yaml:"blast_dropoff"`
	// Smoke grenades obscure tiles instead of dealing damage.
	Smoke bool `yaml:"smoke"`
}

// ItemDef is the static definition of an item, loaded from YAML.
type ItemDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	// Weight defaults to 1 when omitted.
	Weight        int            `yaml:"weight"`
	StatModifiers map[string]int `yaml:"stat_modifiers"`
	// EquipmentSlots is how many Equipment slots an armor unlocks, clamped to 1..4.
	EquipmentSlots int                `yaml:"equipment_slots"`
	Armor          map[string]int     `yaml:"armor"`
	Resistances    map[string]float64 `yaml:"resistances"`
	Blocks         []string           `yaml:"blocks"`
	Weapon         *WeaponStats       `yaml:"weapon"`
	Throw          *ThrowStats        `yaml:"throw"`
	// Heal is the body-part HP restored by a medical item.
	Heal       int  `yaml:"heal"`
	Consumable bool `yaml:"consumable"`
}

// Throwable reports whether the item can be thrown.
func (d *ItemDef) Throwable() bool { return d.Throw != nil }

func (d *ItemDef) applyDefaults() {
	if d.Name == "" {
		d.Name = d.ID
	}
	if d.Category == CategoryArmor {
		switch {
		case d.EquipmentSlots == 0:
			d.EquipmentSlots = DefaultEquipmentSlots
		case d.EquipmentSlots < 1:
			d.EquipmentSlots = 1
		case d.EquipmentSlots > MaxEquipmentSlots:
			d.EquipmentSlots = MaxEquipmentSlots
		}
	}
	if d.Weapon != nil && d.Weapon.APCost == 0 {
		d.Weapon.APCost = 2
	}
	if d.Heal > 0 || d.Throw != nil {
		d.Consumable = true
	}
}

// Validate checks that the ItemDef satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid.
func (d *ItemDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	switch d.Category {
	case CategoryArmor, CategoryWeapon, CategoryEquipment:
	default:
		errs = append(errs, fmt.Errorf("category must be one of armor, weapon, equipment; got %q", d.Category))
	}
	if d.Weight < 0 {
		errs = append(errs, errors.New("weight must be >= 0"))
	}
	for part, v := range d.Armor {
		if v < 0 {
			errs = append(errs, fmt.Errorf("armor.%s must be >= 0", part))
		}
	}
	for dt, r := range d.Resistances {
		if r < 0 {
			errs = append(errs, fmt.Errorf("resistances.%s must be >= 0", dt))
		}
	}
	if d.Category == CategoryWeapon && d.Weapon == nil {
		errs = append(errs, errors.New("weapon block is required for category weapon"))
	}
	if w := d.Weapon; w != nil {
		if _, err := dice.Parse(w.Damage); err != nil {
			errs = append(errs, fmt.Errorf("weapon.damage: %w", err))
		}
		if w.Range < 1 {
			errs = append(errs, errors.New("weapon.range must be >= 1"))
		}
		if w.APCost < 0 || w.Penetration < 0 {
			errs = append(errs, errors.New("weapon.ap_cost and weapon.penetration must be >= 0"))
		}
	}
	if t := d.Throw; t != nil {
		if !t.Smoke {
			if _, err := dice.Parse(t.Damage); err != nil {
				errs = append(errs, fmt.Errorf("throw.damage: %w", err))
			}
		}
		if t.BlastRadius < 0 || t.BlastDropoff < 0 {
			errs = append(errs, errors.New("throw.blast_radius and throw.blast_dropoff must be >= 0"))
		}
	}
	if d.Heal < 0 {
		errs = append(errs, errors.New("heal must be >= 0"))
	}
	return errors.Join(errs...)
}

// Item is one physical instance of an ItemDef.
type Item struct {
	InstanceID string
	Def        *ItemDef
}

// NewItem creates a fresh instance of def.
//
// Precondition: def must not be nil.
func NewItem(def *ItemDef) *Item {
	return &Item{InstanceID: uuid.NewString(), Def: def}
}

// Registry holds item definitions indexed by ID.
type Registry struct {
	items map[string]*ItemDef
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*ItemDef)}
}

// Register adds d, rejecting duplicate ids.
//
// Postcondition: Get(d.ID) returns (d, true) on success.
func (r *Registry) Register(d *ItemDef) error {
	if _, exists := r.items[d.ID]; exists {
		return fmt.Errorf("inventory: item ID %q already registered", d.ID)
	}
	r.items[d.ID] = d
	return nil
}

// Get returns the ItemDef for id.
func (r *Registry) Get(id string) (*ItemDef, bool) {
	d, ok := r.items[id]
	return d, ok
}

// All returns every definition sorted by ID.
func (r *Registry) All() []*ItemDef {
	out := make([]*ItemDef, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NewItem instantiates the definition registered under id.
func (r *Registry) NewItem(id string) (*Item, error) {
	d, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("inventory: unknown item %q", id)
	}
	return NewItem(d), nil
}

// ParseItemDef decodes one item document, applies defaults and validates it.
// source names the document in errors.
func ParseItemDef(source string, data []byte) (*ItemDef, error) {
	d := ItemDef{Weight: 1}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("parsing item %q: %w", source, err)
	}
	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return nil, &config.ConfigurationError{Source: source, Record: d.ID, Field: "item", Reason: err.Error()}
	}
	return &d, nil
}

// LoadItems reads every *.yaml and *.yml file in dir into a Registry.
// Invalid records are skipped and returned in skipped; unreadable directories,
// broken YAML and duplicate ids abort the load.
func LoadItems(dir string) (reg *Registry, skipped []error, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadItems: cannot read directory %q: %w", dir, err)
	}
	reg = NewRegistry()
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("LoadItems: cannot read file %q: %w", path, err)
		}
		d, err := ParseItemDef(path, data)
		if err != nil {
			var cfgErr *config.ConfigurationError
			if errors.As(err, &cfgErr) {
				skipped = append(skipped, err)
				continue
			}
			return nil, nil, err
		}
		if err := reg.Register(d); err != nil {
			return nil, nil, fmt.Errorf("LoadItems: %s: %w", path, err)
		}
	}
	return reg, skipped, nil
}
