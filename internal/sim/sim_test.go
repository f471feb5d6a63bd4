package sim_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/battle"
	"github.com/alienfall/tactics/internal/game/dice"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/ruleset"
	"github.com/alienfall/tactics/internal/game/unit"
	"github.com/alienfall/tactics/internal/sim"
)

func shippedContent() config.ContentConfig {
	root := filepath.Join("..", "..", "content")
	return config.ContentConfig{
		ItemsDir:   filepath.Join(root, "items"),
		EffectsDir: filepath.Join(root, "effects"),
		RacesDir:   filepath.Join(root, "races"),
		SkillsDir:  filepath.Join(root, "skills"),
		SidesDir:   filepath.Join(root, "sides"),
		MapsDir:    filepath.Join(root, "maps"),
		ScriptsDir: filepath.Join(root, "scripts"),
	}
}

// duelContent writes a two-unit content tree and returns its config.
func duelContent(t *testing.T) config.ContentConfig {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"items/cannon.yaml": "id: cannon\ncategory: weapon\nweapon: {damage: \"60\", damage_type: kinetic, penetration: 20, range: 20}\n",
		"items/broken.yaml": "id: broken\ncategory: hat\n",
		"effects/.keep":     "",
		"races/human.yaml":  "id: human\nstats: {health: 40, aim: 60}\n",
		"skills/.keep":      "",
		"maps/yard.yaml":    "id: yard\nwidth: 8\nheight: 1\ntileset:\n  - gid: 1\n    name: dirt\nlayers:\n  floor:\n    - [1, 1, 1, 1, 1, 1, 1, 1]\n",
		"roster.yaml": `
units:
  - {id: a, side: xcom, race: human, position: {x: 0, y: 0}, facing: e, loadout: {Weapon: cannon}}
  - {id: b, side: alien, race: human, position: {x: 5, y: 0}, facing: w, loadout: {Weapon: cannon}}
`,
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	return config.ContentConfig{
		ItemsDir:   filepath.Join(root, "items"),
		EffectsDir: filepath.Join(root, "effects"),
		RacesDir:   filepath.Join(root, "races"),
		SkillsDir:  filepath.Join(root, "skills"),
		SidesDir:   filepath.Join(root, "sides"),
		MapsDir:    filepath.Join(root, "maps"),
		ScriptsDir: filepath.Join(root, "scripts"),
	}
}

func parseScript(t *testing.T, doc string) battle.Script {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "script-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString(doc)
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	defer f.Close()
	s, err := battle.ParseScript(f)
	require.NoError(t, err)
	return s
}

func TestLoadContent_SkipsBadRecordsAndOptionalDirs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c, err := sim.LoadContent(duelContent(t), zap.New(core))
	require.NoError(t, err)

	assert.Len(t, c.Catalog.Items.All(), 1)
	assert.Equal(t, 1, logs.FilterMessage("skipping record").Len())
	assert.Empty(t, c.ScriptsDir, "missing scripts dir disables hooks")
	assert.True(t, c.Relations.Hostile(unit.SideXCOM, unit.SideAlien), "missing sides dir keeps default relations")

	scripts, err := c.NewScripts(1, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, scripts)
}

func TestLoadContent_MissingItemsDir(t *testing.T) {
	cfg := duelContent(t)
	cfg.ItemsDir = filepath.Join(t.TempDir(), "nope")
	_, err := sim.LoadContent(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestOptions_UnknownMap(t *testing.T) {
	cfg := duelContent(t)
	c, err := sim.LoadContent(cfg, zap.NewNop())
	require.NoError(t, err)
	roster, err := ruleset.LoadRoster(filepath.Join(filepath.Dir(cfg.ItemsDir), "roster.yaml"))
	require.NoError(t, err)

	_, err = c.Options(config.Defaults(), sim.Params{MapID: "moon", Roster: roster}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestRun_StopsOnceBattleIsDecided(t *testing.T) {
	cfg := duelContent(t)
	c, err := sim.LoadContent(cfg, zap.NewNop())
	require.NoError(t, err)
	roster, err := ruleset.LoadRoster(filepath.Join(filepath.Dir(cfg.ItemsDir), "roster.yaml"))
	require.NoError(t, err)

	opts, err := c.Options(config.Defaults(), sim.Params{BattleID: "duel", MapID: "yard", Roster: roster}, nil, zap.NewNop())
	require.NoError(t, err)
	opts.Source = dice.Fixed{Val: 0}
	b, err := battle.New(opts)
	require.NoError(t, err)

	script := parseScript(t, `
actions:
  - {kind: move, actor: b, target: {x: 4, y: 0}}
  - {kind: use_item, actor: a, target_unit: b}
  - {kind: end_turn}
  - {kind: use_item, actor: b, target_unit: a}
`)
	core, logs := observer.New(zapcore.InfoLevel)
	sum, err := sim.Run(context.Background(), b, script, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, "duel", sum.BattleID)
	assert.Equal(t, 2, sum.Submitted)
	assert.Equal(t, 1, sum.Accepted)
	assert.Equal(t, 1, sum.Rejected, "b cannot move on xcom's turn")
	assert.True(t, sum.Outcome.Over)
	assert.Equal(t, unit.SideXCOM, sum.Outcome.Winner)
	assert.Len(t, sum.Journal.Entries, 2)
	assert.Equal(t, 1, logs.FilterMessage("action rejected").Len())
	assert.NotZero(t, logs.FilterField(zap.String("kind", string(battle.EventDeath))).Len())
}

func TestRun_Cancelled(t *testing.T) {
	cfg := duelContent(t)
	c, err := sim.LoadContent(cfg, zap.NewNop())
	require.NoError(t, err)
	roster, err := ruleset.LoadRoster(filepath.Join(filepath.Dir(cfg.ItemsDir), "roster.yaml"))
	require.NoError(t, err)
	opts, err := c.Options(config.Defaults(), sim.Params{MapID: "yard", Roster: roster, Seed: 3}, nil, zap.NewNop())
	require.NoError(t, err)
	b, err := battle.New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := sim.Run(ctx, b, parseScript(t, "actions:\n  - {kind: end_turn}\n"), zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Submitted)
}

func TestShippedContent_RunsAndReplays(t *testing.T) {
	cfg := config.Defaults()
	cfg.Content = shippedContent()
	logger := zap.NewNop()

	c, err := sim.LoadContent(cfg.Content, logger)
	require.NoError(t, err)
	require.NotEmpty(t, c.ScriptsDir)
	assert.True(t, c.Relations.Hostile(unit.SideAlien, unit.SideCivilian))

	f, err := os.Open(filepath.Join("..", "..", "content", "battles", "farmhouse.yaml"))
	require.NoError(t, err)
	defer f.Close()
	script, err := battle.ParseScript(f)
	require.NoError(t, err)

	build := func(seed uint64) battle.Options {
		roster, err := ruleset.LoadRoster(filepath.Join("..", "..", "content", "rosters", "farmhouse.yaml"))
		require.NoError(t, err)
		scripts, err := c.NewScripts(seed, logger)
		require.NoError(t, err)
		t.Cleanup(scripts.Close)
		opts, err := c.Options(cfg, sim.Params{BattleID: "farm", MapID: "farmhouse", Roster: roster, Seed: seed}, scripts, logger)
		require.NoError(t, err)
		return opts
	}

	for _, seed := range []uint64{1, 7, 2024} {
		b, err := battle.New(build(seed))
		require.NoError(t, err)
		assert.Equal(t, 14, b.Grid().Width())
		tile, err := b.Grid().TileAt(grid.Coord{X: 6, Y: 3})
		require.NoError(t, err)
		assert.Equal(t, 50, tile.CoverValue)

		sum, err := sim.Run(context.Background(), b, script, logger)
		require.NoError(t, err)
		require.NotZero(t, sum.Submitted)
		assert.Equal(t, sum.Submitted, sum.Accepted+sum.Rejected)

		replayed, err := battle.Replay(build(seed), sum.Journal)
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, b.Outcome(), replayed.Outcome())
		for _, u := range b.Units() {
			r, ok := replayed.Unit(u.ID)
			require.True(t, ok)
			assert.Equal(t, u.HP, r.HP, "seed %d unit %s", seed, u.ID)
			assert.Equal(t, u.Pos, r.Pos, "seed %d unit %s", seed, u.ID)
		}
	}
}

type fakeStore struct {
	saved    []battle.Journal
	finished map[string]unit.Side
	err      error
}

func (f *fakeStore) SaveJournal(_ context.Context, _ string, j battle.Journal) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, j)
	return nil
}

func (f *fakeStore) FinishBattle(_ context.Context, id string, winner unit.Side) error {
	if f.finished == nil {
		f.finished = map[string]unit.Side{}
	}
	f.finished[id] = winner
	return nil
}

func TestRecord(t *testing.T) {
	store := &fakeStore{}
	sum := sim.Summary{BattleID: "b1", Journal: battle.Journal{BattleID: "b1", Seed: 4}}
	require.NoError(t, sim.Record(context.Background(), store, "yard", sum))
	assert.Len(t, store.saved, 1)
	assert.Empty(t, store.finished, "undecided battles stay open")

	sum.Outcome = battle.Outcome{Over: true, Winner: unit.SideAlien}
	require.NoError(t, sim.Record(context.Background(), store, "yard", sum))
	assert.Equal(t, unit.SideAlien, store.finished["b1"])

	store.err = errors.New("disk full")
	assert.ErrorContains(t, sim.Record(context.Background(), store, "yard", sum), "disk full")
}
