package inventory

import (
	"fmt"
	"maps"
	"slices"
	"sort"
)

// Slot names.
const (
	SlotArmor  = "Armor"
	SlotWeapon = "Weapon"
)

// Equipment slot limits. Armor decides how many Equipment slots are open.
const (
	DefaultEquipmentSlots = 2
	MaxEquipmentSlots     = 4
)

// EquipmentSlot returns the name of the n-th (1-based) Equipment slot.
func EquipmentSlot(n int) string { return fmt.Sprintf("Equipment %d", n) }

// AllSlots lists every slot in auto-equip priority order.
var AllSlots = []string{
	SlotArmor, SlotWeapon,
	EquipmentSlot(1), EquipmentSlot(2), EquipmentSlot(3), EquipmentSlot(4),
}

// SlotCategory returns the item category a slot accepts, or "" for an unknown slot.
func SlotCategory(slot string) string {
	switch {
	case slot == SlotArmor:
		return CategoryArmor
	case slot == SlotWeapon:
		return CategoryWeapon
	case equipmentIndex(slot) > 0:
		return CategoryEquipment
	}
	return ""
}

func equipmentIndex(slot string) int {
	for i := 1; i <= MaxEquipmentSlots; i++ {
		if slot == EquipmentSlot(i) {
			return i
		}
	}
	return 0
}

// Manager owns one unit's equipped items.
//
// Invariants: every equipped item sits in an available slot whose category
// matches the item; an item displaced by equip or by losing a slot moves to
// the stash and is never dropped.
type Manager struct {
	slots     map[string]*Item
	open      int
	stash     []*Item
	templates map[string]Template
}

// NewManager returns an empty manager with the default Equipment slots open.
func NewManager() *Manager {
	return &Manager{
		slots:     make(map[string]*Item),
		open:      DefaultEquipmentSlots,
		templates: make(map[string]Template),
	}
}

// AvailableSlots returns the currently usable slots in priority order.
func (m *Manager) AvailableSlots() []string {
	return slices.Clone(AllSlots[:2+m.open])
}

// IsAvailable reports whether slot can currently hold an item.
func (m *Manager) IsAvailable(slot string) bool {
	return slices.Contains(m.AvailableSlots(), slot)
}

// ItemAt returns the item in slot, or nil.
func (m *Manager) ItemAt(slot string) *Item {
	return m.slots[slot]
}

// EquipItem places item in slot. An item already in the slot is displaced to
// the stash; item itself leaves the stash if it was there. Equipping armor
// resizes the Equipment slots.
//
// Postcondition: returns false and leaves the manager unchanged when the slot
// is unavailable, the category does not match, or item is already equipped.
func (m *Manager) EquipItem(slot string, item *Item) bool {
	if item == nil || item.Def == nil || !m.IsAvailable(slot) {
		return false
	}
	if SlotCategory(slot) != item.Def.Category {
		return false
	}
	if s, _ := m.slotOf(item); s != "" {
		return false
	}
	m.stash = slices.DeleteFunc(m.stash, func(it *Item) bool { return it.InstanceID == item.InstanceID })
	if prev := m.slots[slot]; prev != nil {
		m.stash = append(m.stash, prev)
	}
	m.slots[slot] = item
	if slot == SlotArmor {
		m.resize(openedBy(item.Def))
	}
	return true
}

// UnequipItem removes and returns the item in slot, or nil when empty.
// Removing armor falls back to the default Equipment slot count.
func (m *Manager) UnequipItem(slot string) *Item {
	item := m.slots[slot]
	if item == nil {
		return nil
	}
	delete(m.slots, slot)
	if slot == SlotArmor {
		m.resize(DefaultEquipmentSlots)
	}
	return item
}

// openedBy returns the Equipment slots an armor opens, clamped to 1..4.
func openedBy(armor *ItemDef) int {
	if armor.EquipmentSlots == 0 {
		return DefaultEquipmentSlots
	}
	return max(1, min(armor.EquipmentSlots, MaxEquipmentSlots))
}

// resize opens n Equipment slots; items in slots that close go to the stash.
func (m *Manager) resize(n int) {
	m.open = n
	for i := m.open + 1; i <= MaxEquipmentSlots; i++ {
		s := EquipmentSlot(i)
		if it := m.slots[s]; it != nil {
			m.stash = append(m.stash, it)
			delete(m.slots, s)
		}
	}
}

// AutoEquip puts item in the first empty available slot that accepts it,
// trying Armor, Weapon, then Equipment 1..4.
func (m *Manager) AutoEquip(item *Item) (bool, string) {
	if item == nil || item.Def == nil {
		return false, ""
	}
	for _, slot := range m.AvailableSlots() {
		if m.slots[slot] == nil && SlotCategory(slot) == item.Def.Category {
			if m.EquipItem(slot, item) {
				return true, slot
			}
		}
	}
	return false, ""
}

// TotalWeight sums the weight of every equipped item.
func (m *Manager) TotalWeight() int {
	total := 0
	for _, it := range m.slots {
		total += it.Def.Weight
	}
	return total
}

// Items returns the equipped items in slot priority order.
func (m *Manager) Items() []*Item {
	var out []*Item
	for _, s := range AllSlots {
		if it := m.slots[s]; it != nil {
			out = append(out, it)
		}
	}
	return out
}

// Find returns the first slot, in priority order, whose item satisfies pred.
func (m *Manager) Find(pred func(*Item) bool) (string, *Item) {
	for _, s := range AllSlots {
		if it := m.slots[s]; it != nil && pred(it) {
			return s, it
		}
	}
	return "", nil
}

func (m *Manager) slotOf(item *Item) (string, *Item) {
	return m.Find(func(it *Item) bool { return it.InstanceID == item.InstanceID })
}

// Weapon returns the item in the Weapon slot, or nil.
func (m *Manager) Weapon() *Item { return m.slots[SlotWeapon] }

// Consume removes a used-up item from slot and returns it. Unlike
// UnequipItem the item leaves play.
func (m *Manager) Consume(slot string) *Item {
	return m.UnequipItem(slot)
}

// ClearAll unequips everything and returns the removed items in priority order.
func (m *Manager) ClearAll() []*Item {
	out := m.Items()
	clear(m.slots)
	m.open = DefaultEquipmentSlots
	return out
}

// Stash returns the displaced items without removing them.
func (m *Manager) Stash() []*Item { return slices.Clone(m.stash) }

// TakeStash returns and clears the displaced items.
func (m *Manager) TakeStash() []*Item {
	out := m.stash
	m.stash = nil
	return out
}

// StatModifiers sums the stat modifiers of every equipped item.
func (m *Manager) StatModifiers() map[string]int {
	out := map[string]int{}
	for _, it := range m.slots {
		for k, v := range it.Def.StatModifiers {
			out[k] += v
		}
	}
	return out
}

func (m *Manager) armor() *ItemDef {
	if it := m.slots[SlotArmor]; it != nil {
		return it.Def
	}
	return nil
}

// ArmorRating returns the worn armor's rating for a body part.
func (m *Manager) ArmorRating(part string) int {
	if a := m.armor(); a != nil {
		return a.Armor[part]
	}
	return 0
}

// Resistance returns the worn armor's damage multiplier for dtype, default 1.
func (m *Manager) Resistance(dtype string) float64 {
	if a := m.armor(); a != nil {
		if r, ok := a.Resistances[dtype]; ok {
			return r
		}
	}
	return 1
}

// Blocks reports whether the worn armor fully negates dtype.
func (m *Manager) Blocks(dtype string) bool {
	a := m.armor()
	return a != nil && slices.Contains(a.Blocks, dtype)
}

// Resistances returns a copy of the worn armor's damage multipliers.
func (m *Manager) Resistances() map[string]float64 {
	if a := m.armor(); a != nil {
		return maps.Clone(a.Resistances)
	}
	return nil
}

// BlockedTypes returns the damage types the worn armor negates.
func (m *Manager) BlockedTypes() []string {
	if a := m.armor(); a != nil {
		return slices.Clone(a.Blocks)
	}
	return nil
}

// Template is an instance-independent loadout: slot name to item id.
type Template struct {
	Name  string            `yaml:"name"`
	Slots map[string]string `yaml:"slots"`
}

// SaveTemplate captures the current loadout.
func (m *Manager) SaveTemplate(name string) Template {
	t := Template{Name: name, Slots: make(map[string]string, len(m.slots))}
	for s, it := range m.slots {
		t.Slots[s] = it.Def.ID
	}
	return t
}

// LoadTemplate replaces every slot with fresh instances from reg. The whole
// template is checked before anything changes; on success the previous items
// move to the stash.
func (m *Manager) LoadTemplate(t Template, reg *Registry) error {
	defs := make(map[string]*ItemDef, len(t.Slots))
	open := DefaultEquipmentSlots
	for slot, id := range t.Slots {
		cat := SlotCategory(slot)
		if cat == "" {
			return fmt.Errorf("inventory: template %q: unknown slot %q", t.Name, slot)
		}
		d, ok := reg.Get(id)
		if !ok {
			return fmt.Errorf("inventory: template %q: unknown item %q", t.Name, id)
		}
		if d.Category != cat {
			return fmt.Errorf("inventory: template %q: %s cannot hold %s item %q", t.Name, slot, d.Category, id)
		}
		defs[slot] = d
		if slot == SlotArmor {
			open = openedBy(d)
		}
	}
	for slot := range defs {
		if i := equipmentIndex(slot); i > open {
			return fmt.Errorf("inventory: template %q: %s is not opened by its armor", t.Name, slot)
		}
	}

	m.stash = append(m.stash, m.ClearAll()...)
	for _, slot := range AllSlots {
		if d, ok := defs[slot]; ok {
			m.EquipItem(slot, NewItem(d))
		}
	}
	return nil
}

// SaveNamedTemplate stores the current loadout under name, replacing any
// template of the same name.
func (m *Manager) SaveNamedTemplate(name string) Template {
	t := m.SaveTemplate(name)
	m.templates[name] = t
	return t
}

// LoadNamedTemplate applies a template stored with SaveNamedTemplate.
func (m *Manager) LoadNamedTemplate(name string, reg *Registry) error {
	t, ok := m.templates[name]
	if !ok {
		return fmt.Errorf("inventory: no template named %q", name)
	}
	return m.LoadTemplate(Template{Name: t.Name, Slots: maps.Clone(t.Slots)}, reg)
}

// DeleteTemplate forgets a named template.
func (m *Manager) DeleteTemplate(name string) { delete(m.templates, name) }

// TemplateNames returns the stored template names sorted.
func (m *Manager) TemplateNames() []string {
	names := make([]string, 0, len(m.templates))
	for n := range m.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
