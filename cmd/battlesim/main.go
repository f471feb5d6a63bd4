// Package main runs a scripted battle from content files and logs its event
// stream. With -replay it re-judges a saved journal instead.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/battle"
	"github.com/alienfall/tactics/internal/game/ruleset"
	"github.com/alienfall/tactics/internal/observability"
	"github.com/alienfall/tactics/internal/sim"
	"github.com/alienfall/tactics/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	mapID := flag.String("map", "farmhouse", "map id under content.maps_dir")
	rosterPath := flag.String("roster", "content/rosters/farmhouse.yaml", "path to the unit roster")
	scriptPath := flag.String("script", "content/battles/farmhouse.yaml", "path to the action script")
	seed := flag.Uint64("seed", 0, "dice seed (0 picks one from the clock)")
	battleID := flag.String("id", "", "battle id (default: random UUID)")
	journalOut := flag.String("journal-out", "", "write the journal as YAML to this path")
	replayPath := flag.String("replay", "", "replay a YAML journal instead of running the script")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	content, err := sim.LoadContent(cfg.Content, logger)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	roster, err := ruleset.LoadRoster(*rosterPath)
	if err != nil {
		logger.Fatal("loading roster", zap.Error(err))
	}

	if *replayPath != "" {
		replay(cfg, content, *mapID, roster, *replayPath, logger)
		return
	}

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	f, err := os.Open(*scriptPath)
	if err != nil {
		logger.Fatal("opening script", zap.Error(err))
	}
	script, err := battle.ParseScript(f)
	f.Close()
	if err != nil {
		logger.Fatal("parsing script", zap.Error(err))
	}

	scripts, err := content.NewScripts(*seed, logger)
	if err != nil {
		logger.Fatal("loading lua scripts", zap.Error(err))
	}
	if scripts != nil {
		defer scripts.Close()
	}
	opts, err := content.Options(cfg, sim.Params{BattleID: *battleID, MapID: *mapID, Roster: roster, Seed: *seed}, scripts, logger)
	if err != nil {
		logger.Fatal("building battle", zap.Error(err))
	}

	engine := battle.NewEngine()
	b, err := engine.Start(opts)
	if err != nil {
		logger.Fatal("starting battle", zap.Error(err))
	}
	defer engine.End(b.ID())
	blog := observability.BattleLogger(logger, b.ID(), b.Seed())
	blog.Info("battle started", zap.String("map", *mapID), zap.Int("units", len(b.Units())), zap.Int("actions", len(script.Actions)))

	sum, err := sim.Run(ctx, b, script, blog)
	if err != nil {
		blog.Warn("simulation interrupted", zap.Error(err))
	}
	blog.Info("battle finished",
		zap.Bool("over", sum.Outcome.Over),
		zap.String("winner", string(sum.Outcome.Winner)),
		zap.Int("accepted", sum.Accepted),
		zap.Int("rejected", sum.Rejected),
		zap.Duration("elapsed", time.Since(start)),
	)

	if *journalOut != "" {
		data, err := yaml.Marshal(sum.Journal)
		if err != nil {
			blog.Fatal("encoding journal", zap.Error(err))
		}
		if err := os.WriteFile(*journalOut, data, 0644); err != nil {
			blog.Fatal("writing journal", zap.Error(err))
		}
		blog.Info("journal written", zap.String("path", *journalOut))
	}

	if cfg.Journal.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Database, blog)
		if err != nil {
			blog.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		if err := sim.Record(ctx, pool.Journal(), *mapID, sum); err != nil {
			blog.Fatal("recording journal", zap.Error(err))
		}
		blog.Info("journal recorded", zap.Int("entries", len(sum.Journal.Entries)))
	}
}

func replay(cfg config.Config, content *sim.Content, mapID string, roster *ruleset.Roster, path string, logger *zap.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading journal", zap.Error(err))
	}
	var j battle.Journal
	if err := yaml.Unmarshal(data, &j); err != nil {
		logger.Fatal("parsing journal", zap.Error(err))
	}

	scripts, err := content.NewScripts(j.Seed, logger)
	if err != nil {
		logger.Fatal("loading lua scripts", zap.Error(err))
	}
	if scripts != nil {
		defer scripts.Close()
	}
	opts, err := content.Options(cfg, sim.Params{BattleID: j.BattleID, MapID: mapID, Roster: roster, Seed: j.Seed}, scripts, logger)
	if err != nil {
		logger.Fatal("building battle", zap.Error(err))
	}
	b, err := battle.Replay(opts, j)
	if err != nil {
		logger.Fatal("replay diverged", zap.Error(err))
	}
	out := b.Outcome()
	logger.Info("replay matches journal",
		zap.String("battle_id", b.ID()),
		zap.Int("entries", len(j.Entries)),
		zap.Bool("over", out.Over),
		zap.String("winner", string(out.Winner)),
	)
}
