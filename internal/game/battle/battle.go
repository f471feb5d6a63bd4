// Package battle runs a turn-based tactical battle: it validates and
// resolves unit actions, fires reactions, keeps the AP ledger and records a
// replayable journal.
package battle

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/alienfall/tactics/internal/config"
	"github.com/alienfall/tactics/internal/game/damage"
	"github.com/alienfall/tactics/internal/game/dice"
	"github.com/alienfall/tactics/internal/game/effect"
	"github.com/alienfall/tactics/internal/game/fow"
	"github.com/alienfall/tactics/internal/game/grid"
	"github.com/alienfall/tactics/internal/game/ruleset"
	"github.com/alienfall/tactics/internal/game/unit"
	"github.com/alienfall/tactics/internal/observability"
	"github.com/alienfall/tactics/internal/scripting"
)

// Options configures a new Battle.
type Options struct {
	ID    string
	Grid  *grid.Grid
	Units []*unit.Unit
	Rules config.BattleConfig
	// Damage configures the damage model.
	Damage config.DamageConfig
	// Effects defaults to effect.DefaultRegistry.
	Effects *effect.Registry
	// Relations defaults to ruleset.DefaultRelations.
	Relations *ruleset.Relations
	// Seed feeds the default seeded dice source.
	Seed uint64
	// Source overrides the dice source. Battles built with an override
	// cannot be replayed from their journal.
	Source dice.Source
	// Scripts runs lua_on_tick effect hooks; nil disables them.
	Scripts     *scripting.Manager
	ScriptScope string
	Logger      *zap.Logger
}

// Outcome reports whether the battle is decided.
type Outcome struct {
	Over bool
	// Winner is the first remaining side in turn order, or "" when no one is left.
	Winner    unit.Side
	Remaining []unit.Side
}

// Battle is one running battle. All exported methods are safe for
// concurrent use; actions are applied one at a time.
type Battle struct {
	mu sync.Mutex

	id        string
	seed      uint64
	grid      *grid.Grid
	units     []*unit.Unit
	byID      map[string]*unit.Unit
	rules     config.BattleConfig
	damage    *damage.Model
	effects   *effect.Registry
	relations ruleset.Relations
	vision    *fow.Engine
	roller    *dice.Roller
	scripts   *scripting.Manager
	scope     string
	logger    *zap.Logger

	side   unit.Side
	turn   int
	phase  map[string]Phase
	done   map[string]bool
	ledger Ledger
	smoke  []smokeCloud

	outcome Outcome
	journal Journal
}

type smokeCloud struct {
	side   unit.Side
	centre grid.Coord
	radius int
}

// New places the units on the grid, computes initial visibility and starts
// the first turn for the first side in turn order with live units.
//
// Precondition: opts.Grid non-nil; unit ids unique; every unit on a distinct
// walkable tile.
func New(opts Options) (*Battle, error) {
	if opts.Grid == nil {
		return nil, errors.New("battle: grid is required")
	}
	if len(opts.Units) == 0 {
		return nil, errors.New("battle: at least one unit is required")
	}
	if err := opts.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("battle: %w", err)
	}
	if err := opts.Damage.Validate(); err != nil {
		return nil, fmt.Errorf("battle: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Effects == nil {
		opts.Effects = effect.DefaultRegistry()
	}
	rel := ruleset.DefaultRelations()
	if opts.Relations != nil {
		rel = *opts.Relations
	}
	src := opts.Source
	if src == nil {
		src = dice.NewSeeded(opts.Seed)
	}

	units := append([]*unit.Unit(nil), opts.Units...)
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	byID := make(map[string]*unit.Unit, len(units))
	for _, u := range units {
		if _, dup := byID[u.ID]; dup {
			return nil, fmt.Errorf("battle: duplicate unit id %q", u.ID)
		}
		if !opts.Grid.IsPassable(u.Pos) {
			return nil, fmt.Errorf("battle: unit %s cannot stand at %v", u.ID, u.Pos)
		}
		byID[u.ID] = u
	}
	for _, u := range units {
		opts.Grid.Place(u.ID, u.Pos)
	}

	logger := observability.BattleLogger(opts.Logger, opts.ID, opts.Seed)
	b := &Battle{
		id:        opts.ID,
		seed:      opts.Seed,
		grid:      opts.Grid,
		units:     units,
		byID:      byID,
		rules:     opts.Rules,
		damage:    damage.NewModel(opts.Damage, opts.Effects),
		effects:   opts.Effects,
		relations: rel,
		vision:    fow.New(opts.Grid, opts.Rules),
		roller:    dice.NewRoller(src, logger),
		scripts:   opts.Scripts,
		scope:     opts.ScriptScope,
		logger:    logger,
		phase:     make(map[string]Phase, len(units)),
		done:      make(map[string]bool, len(units)),
		journal:   Journal{BattleID: opts.ID, Seed: opts.Seed},
	}
	if b.scripts != nil {
		b.scripts.SetRoller(b.roller)
		b.scripts.GetUnit = b.unitInfo
	}
	b.vision.RecomputeAll(b.units)

	first, ok := b.nextSide("")
	if !ok {
		return nil, errors.New("battle: no live units")
	}
	b.startTurn(first)
	b.logger.Info("battle started", zap.Int("units", len(units)), zap.String("map", opts.Grid.ID()),
		zap.String("side", string(first)))
	return b, nil
}

// ID returns the battle id.
func (b *Battle) ID() string { return b.id }

// Seed returns the dice seed the battle was created with.
func (b *Battle) Seed() uint64 { return b.seed }

// Grid returns the battle map. Callers must not mutate it.
func (b *Battle) Grid() *grid.Grid { return b.grid }

// Side returns the side whose turn it is.
func (b *Battle) Side() unit.Side {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.side
}

// Turn returns the number of side turns started so far.
func (b *Battle) Turn() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.turn
}

// Unit returns the unit with id. The pointer is live battle state; callers
// must treat it as read-only.
func (b *Battle) Unit(id string) (*unit.Unit, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.byID[id]
	return u, ok
}

// Units returns every unit sorted by id.
func (b *Battle) Units() []*unit.Unit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*unit.Unit(nil), b.units...)
}

// Phase returns where unit id is in its action cycle this turn.
func (b *Battle) Phase(id string) Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase[id]
}

// Ledger returns the AP ledger of the current turn.
func (b *Battle) Ledger() Ledger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger
}

// Visibility returns side's level for c.
func (b *Battle) Visibility(side unit.Side, c grid.Coord) fow.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vision.VisibilityOf(side, c)
}

// VisibleEnemies returns the other-side units side can currently see.
func (b *Battle) VisibleEnemies(side unit.Side) []*unit.Unit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vision.UnitsVisibleTo(side, b.units)
}

// Outcome reports whether only one hostile faction remains.
func (b *Battle) Outcome() Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outcome
}

// EndTurn ends the current side's turn.
func (b *Battle) EndTurn() ActionResult {
	return b.Submit(Action{Kind: KindEndTurn})
}

// Surrender removes unit id from play. It may be called on any side's turn.
func (b *Battle) Surrender(id string) ActionResult {
	return b.Submit(Action{Kind: KindSurrender, Actor: id})
}

// Submit validates and resolves a, recording it in the journal. A rejected
// action leaves the battle exactly as it was.
func (b *Battle) Submit(a Action) ActionResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := captureUnits(b.units)
	spentBefore := b.ledger.Spent
	res := b.submit(a)
	if res.Accepted {
		res.Units = diffUnits(before, b.units)
		res.APSpent = b.ledger.Spent - spentBefore
		if res.APSpent < 0 {
			res.APSpent = 0
		}
	}

	b.journal.Entries = append(b.journal.Entries, JournalEntry{
		Seq: len(b.journal.Entries) + 1, Turn: b.turn, Side: b.side,
		Action: a, Accepted: res.Accepted, Reason: res.Reason,
	})

	if res.Accepted {
		b.logger.Info("action resolved", zap.String("action", a.String()), zap.Int("ap_spent", res.APSpent),
			zap.Int("events", len(res.Events)))
	} else {
		b.logger.Info("action rejected", zap.String("action", a.String()),
			zap.String("reason", string(res.Reason)), zap.String("message", res.Message))
	}
	return res
}

func (b *Battle) submit(a Action) ActionResult {
	if b.outcome.Over {
		return rejected(reject(ReasonUnitUnavailable, "battle is over"))
	}
	switch a.Kind {
	case KindEndTurn:
		return b.endTurn()
	case KindSurrender:
		return b.surrender(a.Actor)
	}

	u, ok := b.byID[a.Actor]
	if !ok {
		return rejected(reject(ReasonUnitUnavailable, "no unit %q", a.Actor))
	}
	if verr := b.checkActor(u, a.Kind); verr != nil {
		return rejected(verr)
	}

	b.phase[u.ID] = PhaseActing
	var res ActionResult
	var verr *ValidationError
	switch a.Kind {
	case KindMove:
		verr = b.move(u, a, &res)
	case KindCrouch:
		verr = b.crouch(u, &res)
	case KindCover:
		verr = b.cover(u, &res)
	case KindUseItem:
		verr = b.useItem(u, a, &res)
	case KindThrow:
		verr = b.throw(u, a, &res)
	case KindOverwatch:
		verr = b.overwatch(u, a, &res)
	case KindSuppress:
		verr = b.suppress(u, a, &res)
	case KindRest:
		b.rest(u, &res)
	default:
		verr = reject(ReasonInvalidTarget, "unknown action kind %q", a.Kind)
	}
	if verr != nil {
		b.phase[u.ID] = PhaseRejected
		return rejected(verr)
	}
	b.phase[u.ID] = PhaseResolved

	switch a.Kind {
	case KindMove, KindRest:
	default:
		if u.Alive() {
			res.Events = append(res.Events, b.reactionCheck(u, &res)...)
		}
	}
	res.Accepted = true
	b.checkOutcome(&res)
	return res
}

func rejected(verr *ValidationError) ActionResult {
	return ActionResult{Reason: verr.Reason, Message: verr.Message}
}

// checkActor applies the checks shared by every unit action. Effects never
// restrict resting.
func (b *Battle) checkActor(u *unit.Unit, kind Kind) *ValidationError {
	switch {
	case !u.Alive():
		return reject(ReasonUnitUnavailable, "%s is %s", u.ID, u.Status)
	case u.Side != b.side:
		return reject(ReasonUnitUnavailable, "%s acts on %s's turn, not %s's", u.ID, u.Side, b.side)
	case b.done[u.ID]:
		return reject(ReasonUnitUnavailable, "%s has ended its turn", u.ID)
	case kind != KindRest && effect.IsActionRestricted(u.Effects, string(kind)):
		return reject(ReasonActionRestricted, "%s cannot %s while %v", u.ID, kind, u.Effects.IDs())
	}
	return nil
}

func (b *Battle) surrender(id string) ActionResult {
	u, ok := b.byID[id]
	if !ok || !u.Alive() {
		return rejected(reject(ReasonUnitUnavailable, "no active unit %q", id))
	}
	u.Surrender()
	b.grid.Vacate(u.Pos)
	var res ActionResult
	res.Visibility = b.vision.RecomputeAll(b.units)
	res.Events = append(res.Events, Event{Kind: EventSurrender, Actor: u.ID, At: u.Pos,
		Narrative: fmt.Sprintf("%s surrenders.", u.Name)})
	res.Accepted = true
	b.checkOutcome(&res)
	return res
}

// checkOutcome ends the battle once no two remaining sides are hostile.
func (b *Battle) checkOutcome(res *ActionResult) {
	var remaining []unit.Side
	for _, s := range unit.Sides {
		if b.hasLive(s) {
			remaining = append(remaining, s)
		}
	}
	for i, a := range remaining {
		for _, c := range remaining[i+1:] {
			if b.relations.Hostile(a, c) {
				return
			}
		}
	}
	b.outcome = Outcome{Over: true, Remaining: remaining}
	if len(remaining) > 0 {
		b.outcome.Winner = remaining[0]
	}
	res.Events = append(res.Events, Event{Kind: EventBattleOver, Narrative: fmt.Sprintf("Battle over; winner %q.", b.outcome.Winner)})
	b.logger.Info("battle over", zap.String("winner", string(b.outcome.Winner)))
}

func (b *Battle) hasLive(s unit.Side) bool {
	for _, u := range b.units {
		if u.Side == s && u.Alive() {
			return true
		}
	}
	return false
}

func (b *Battle) unitInfo(id string) *scripting.UnitInfo {
	u, ok := b.byID[id]
	if !ok {
		return nil
	}
	info := toUnitInfo(u)
	return &info
}

func toUnitInfo(u *unit.Unit) scripting.UnitInfo {
	return scripting.UnitInfo{ID: u.ID, Name: u.Name, Side: string(u.Side), HP: u.HP, MaxHP: u.MaxHP,
		AP: u.AP, Stance: u.Stance.String(), Effects: u.Effects.IDs()}
}
