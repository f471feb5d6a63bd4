// Package sim drives a scripted battle from content on disk. It is the
// wiring behind cmd/battlesim: content catalogs, map provider, Lua hooks,
// the battle engine and the optional journal store.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/battle"
	"github.com/alienfall/tactics/internal/game/dice"
	"github.com/alienfall/tactics/internal/game/effect"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/inventory"
	"github.com/alienfall/tactics/internal/game/ruleset"
	"github.com/alienfall/tactics/internal/game/unit"
	"github.com/alienfall/tactics/internal/scripting"
)

// Content is every static record a battle is built from.
type Content struct {
	Catalog   ruleset.Catalog
	Relations ruleset.Relations
	Maps      grid.Provider
	// ScriptsDir holds the global Lua hooks; empty when the directory is absent.
	ScriptsDir string
}

// LoadContent reads the item, effect, race, skill and side directories named
// by cfg. Skipped records are logged as warnings; unreadable directories
// abort the load, except the sides and scripts directories which are optional.
func LoadContent(cfg config.ContentConfig, logger *zap.Logger) (*Content, error) {
	warn := func(kind string, skipped []error) {
		for _, err := range skipped {
			logger.Warn("skipping record", zap.String("kind", kind), zap.Error(err))
		}
	}

	items, skipped, err := inventory.LoadItems(cfg.ItemsDir)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	warn("item", skipped)

	effects, skipped, err := effect.LoadDirectory(cfg.EffectsDir)
	if err != nil {
		return nil, fmt.Errorf("loading effects: %w", err)
	}
	warn("effect", skipped)

	races, skipped, err := ruleset.LoadRaces(cfg.RacesDir)
	if err != nil {
		return nil, fmt.Errorf("loading races: %w", err)
	}
	warn("race", skipped)

	skills, skipped, err := ruleset.LoadSkills(cfg.SkillsDir)
	if err != nil {
		return nil, fmt.Errorf("loading skills: %w", err)
	}
	warn("skill", skipped)

	relations := ruleset.DefaultRelations()
	if exists(cfg.SidesDir) {
		sides, skipped, err := ruleset.LoadSides(cfg.SidesDir)
		if err != nil {
			return nil, fmt.Errorf("loading sides: %w", err)
		}
		warn("side", skipped)
		relations = ruleset.NewRelations(sides)
	}

	c := &Content{
		Catalog:   ruleset.Catalog{Races: races, Skills: skills, Items: items, Effects: effects},
		Relations: relations,
		Maps:      grid.YAMLProvider{Dir: cfg.MapsDir},
	}
	if exists(cfg.ScriptsDir) {
		c.ScriptsDir = cfg.ScriptsDir
	}
	logger.Info("content loaded",
		zap.Int("items", len(items.All())),
		zap.Int("races", len(races)),
		zap.Int("skills", len(skills)),
	)
	return c, nil
}

func exists(dir string) bool {
	if dir == "" {
		return false
	}
	_, err := os.Stat(dir)
	return !errors.Is(err, fs.ErrNotExist)
}

// Params names one simulated battle.
type Params struct {
	BattleID string
	MapID    string
	Roster   *ruleset.Roster
	Seed     uint64
}

// NewScripts creates a Lua manager with the global hooks loaded, or nil when
// the content has no scripts directory. The battle swaps in its own roller.
func (c *Content) NewScripts(seed uint64, logger *zap.Logger) (*scripting.Manager, error) {
	if c.ScriptsDir == "" {
		return nil, nil
	}
	m := scripting.NewManager(dice.NewRoller(dice.NewSeeded(seed), logger), logger)
	if err := m.LoadGlobal(c.ScriptsDir, 0); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// Options builds battle options with freshly created units, so the result can
// start a battle or replay its journal.
func (c *Content) Options(cfg config.Config, p Params, scripts *scripting.Manager, logger *zap.Logger) (battle.Options, error) {
	g, err := c.Maps.Load(p.MapID)
	if err != nil {
		return battle.Options{}, err
	}
	units, err := c.Catalog.BuildUnits(p.Roster)
	if err != nil {
		return battle.Options{}, err
	}
	relations := c.Relations
	return battle.Options{
		ID:        p.BattleID,
		Grid:      g,
		Units:     units,
		Rules:     cfg.Battle,
		Damage:    cfg.Damage,
		Effects:   c.Catalog.Effects,
		Relations: &relations,
		Seed:      p.Seed,
		Scripts:   scripts,
		Logger:    logger,
	}, nil
}

// Summary describes a finished run.
type Summary struct {
	BattleID  string
	Submitted int
	Accepted  int
	Rejected  int
	Outcome   battle.Outcome
	Journal   battle.Journal
}

// Run submits the script's actions in order. It stops early when the battle
// is decided or ctx is cancelled; rejected actions are logged and skipped.
func Run(ctx context.Context, b *battle.Battle, s battle.Script, logger *zap.Logger) (Summary, error) {
	sum := Summary{BattleID: b.ID()}
	for _, a := range s.Actions {
		if b.Outcome().Over {
			break
		}
		if err := ctx.Err(); err != nil {
			sum.Outcome = b.Outcome()
			sum.Journal = b.Journal()
			return sum, err
		}
		res := b.Submit(a)
		sum.Submitted++
		if !res.Accepted {
			sum.Rejected++
			logger.Warn("action rejected",
				zap.Stringer("action", a),
				zap.String("reason", string(res.Reason)),
				zap.String("message", res.Message),
			)
			continue
		}
		sum.Accepted++
		for _, ev := range res.Events {
			logEvent(logger, ev)
		}
	}
	sum.Outcome = b.Outcome()
	sum.Journal = b.Journal()
	return sum, nil
}

func logEvent(logger *zap.Logger, ev battle.Event) {
	fields := []zap.Field{zap.String("kind", string(ev.Kind))}
	if ev.Actor != "" {
		fields = append(fields, zap.String("actor", ev.Actor))
	}
	if ev.Target != "" {
		fields = append(fields, zap.String("target", ev.Target))
	}
	if ev.Chance > 0 {
		fields = append(fields, zap.Int("chance", ev.Chance), zap.Int("roll", ev.Roll), zap.Bool("hit", ev.Hit))
	}
	if ev.Damage != nil {
		fields = append(fields, zap.String("part", string(ev.Damage.Part)), zap.Int("damage", ev.Damage.PoolDamage))
	}
	if ev.Amount != 0 {
		fields = append(fields, zap.Int("amount", ev.Amount))
	}
	logger.Info(ev.Narrative, fields...)
}

// JournalStore persists finished journals.
type JournalStore interface {
	SaveJournal(ctx context.Context, mapID string, j battle.Journal) error
	FinishBattle(ctx context.Context, id string, winner unit.Side) error
}

// Record saves the run's journal and, when the battle is decided, its winner.
func Record(ctx context.Context, store JournalStore, mapID string, sum Summary) error {
	if err := store.SaveJournal(ctx, mapID, sum.Journal); err != nil {
		return fmt.Errorf("saving journal: %w", err)
	}
	if sum.Outcome.Over {
		if err := store.FinishBattle(ctx, sum.BattleID, sum.Outcome.Winner); err != nil {
			return fmt.Errorf("finishing battle: %w", err)
		}
	}
	return nil
}
