package inventory_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/inventory"
)

func TestParseItemDef_Defaults(t *testing.T) {
	d, err := inventory.ParseItemDef("vest.yaml", []byte("id: vest\ncategory: armor\narmor: {torso: 10}\n"))
	require.NoError(t, err)
	assert.Equal(t, "vest", d.Name)
	assert.Equal(t, 1, d.Weight, "weight defaults to 1")
	assert.Equal(t, inventory.DefaultEquipmentSlots, d.EquipmentSlots)

	d, err = inventory.ParseItemDef("suit.yaml", []byte("id: suit\ncategory: armor\nweight: 0\nequipment_slots: 7\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, d.Weight)
	assert.Equal(t, inventory.MaxEquipmentSlots, d.EquipmentSlots)
}

func TestParseItemDef_WeaponAndThrow(t *testing.T) {
	d, err := inventory.ParseItemDef("g.yaml", []byte(`
id: frag
category: equipment
throw:
  damage: 3d6
  damage_type: explosive
  blast_radius: 2
  blast_dropoff: 3
`))
	require.NoError(t, err)
	assert.True(t, d.Throwable())
	assert.True(t, d.Consumable)

	d, err = inventory.ParseItemDef("r.yaml", []byte("id: r\ncategory: weapon\nweapon: {damage: 2d6, range: 20}\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, d.Weapon.APCost)
}

func TestParseItemDef_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"category":   "id: x\ncategory: hat\n",
		"no weapon":  "id: x\ncategory: weapon\n",
		"bad damage": "id: x\ncategory: weapon\nweapon: {damage: lots, range: 3}\n",
		"neg weight": "id: x\ncategory: equipment\nweight: -1\n",
		"smokeless":  "id: x\ncategory: equipment\nthrow: {blast_radius: 1}\n",
		"neg armor":  "id: x\ncategory: armor\narmor: {head: -2}\n",
	} {
		_, err := inventory.ParseItemDef(name, []byte(doc))
		require.Error(t, err, name)
		var cfgErr *config.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr), name)
	}
}

func TestLoadItems(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	write("rifle.yaml", "id: rifle\ncategory: weapon\nweapon: {damage: 2d6+2, range: 20, penetration: 10}\n")
	write("smoke.yml", "id: smoke\ncategory: equipment\nthrow: {smoke: true, blast_radius: 1}\n")
	write("bad.yaml", "id: bad\ncategory: shoe\n")
	write("README.md", "ignored")

	reg, skipped, err := inventory.LoadItems(dir)
	require.NoError(t, err)
	assert.Len(t, reg.All(), 2)
	assert.Len(t, skipped, 1)
	it, err := reg.NewItem("rifle")
	require.NoError(t, err)
	assert.NotEmpty(t, it.InstanceID)
	_, err = reg.NewItem("bad")
	assert.Error(t, err)
}

func TestLoadItems_SyntaxErrorAborts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.yaml"), []byte("id: [unterminated\n"), 0644))
	_, _, err := inventory.LoadItems(dir)
	assert.Error(t, err)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	reg := inventory.NewRegistry()
	require.NoError(t, reg.Register(kitDef("a")))
	assert.Error(t, reg.Register(kitDef("a")))
}
