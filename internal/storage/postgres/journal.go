package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alienfall/tactics/internal/game/battle"
	"github.com/alienfall/tactics/internal/game/unit"
)

// ErrBattleNotFound is returned when a battle id has no stored journal.
var ErrBattleNotFound = errors.New("battle not found")

// ErrBattleExists is returned when creating a battle whose id is already stored.
var ErrBattleExists = errors.New("battle already exists")

// BattleRecord is the stored header of one battle.
type BattleRecord struct {
	ID        string
	MapID     string
	Seed      uint64
	Winner    string
	CreatedAt time.Time
	EndedAt   *time.Time
}

// JournalRepository records battle journals so they can be replayed later.
type JournalRepository struct {
	db *pgxpool.Pool
}

// NewJournalRepository creates a JournalRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewJournalRepository(db *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{db: db}
}

// CreateBattle stores the header of a new battle.
//
// Postcondition: Returns ErrBattleExists when id is already stored.
func (r *JournalRepository) CreateBattle(ctx context.Context, id, mapID string, seed uint64) (BattleRecord, error) {
	rec := BattleRecord{ID: id, MapID: mapID, Seed: seed}
	err := r.db.QueryRow(ctx, `
		INSERT INTO battles (id, map_id, seed)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		id, mapID, int64(seed),
	).Scan(&rec.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return BattleRecord{}, ErrBattleExists
		}
		return BattleRecord{}, fmt.Errorf("inserting battle: %w", err)
	}
	return rec, nil
}

// AppendEntry stores one journal entry. The action is kept as YAML so the
// table does not need to change when action fields are added.
//
// Precondition: the battle must exist and e.Seq must be unique within it.
func (r *JournalRepository) AppendEntry(ctx context.Context, battleID string, e battle.JournalEntry) error {
	action, err := battle.EncodeAction(e.Action)
	if err != nil {
		return fmt.Errorf("encoding action %d: %w", e.Seq, err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO battle_actions (battle_id, seq, turn, side, action, accepted, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		battleID, e.Seq, e.Turn, string(e.Side), string(action), e.Accepted, string(e.Reason),
	)
	if err != nil {
		return fmt.Errorf("inserting action %d of %s: %w", e.Seq, battleID, err)
	}
	return nil
}

// SaveJournal stores a whole journal in one transaction, creating the battle
// header first.
func (r *JournalRepository) SaveJournal(ctx context.Context, mapID string, j battle.Journal) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO battles (id, map_id, seed) VALUES ($1, $2, $3)`,
			j.BattleID, mapID, int64(j.Seed)); err != nil {
			if isDuplicateKeyError(err) {
				return ErrBattleExists
			}
			return fmt.Errorf("inserting battle: %w", err)
		}
		batch := &pgx.Batch{}
		for _, e := range j.Entries {
			action, err := battle.EncodeAction(e.Action)
			if err != nil {
				return fmt.Errorf("encoding action %d: %w", e.Seq, err)
			}
			batch.Queue(`
				INSERT INTO battle_actions (battle_id, seq, turn, side, action, accepted, reason)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				j.BattleID, e.Seq, e.Turn, string(e.Side), string(action), e.Accepted, string(e.Reason))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting actions of %s: %w", j.BattleID, err)
		}
		return nil
	})
}

// FinishBattle records the winner and end time.
//
// Postcondition: Returns ErrBattleNotFound if no battle has id.
func (r *JournalRepository) FinishBattle(ctx context.Context, id string, winner unit.Side) error {
	tag, err := r.db.Exec(ctx, `UPDATE battles SET winner = $2, ended_at = NOW() WHERE id = $1`, id, string(winner))
	if err != nil {
		return fmt.Errorf("finishing battle %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBattleNotFound
	}
	return nil
}

// GetBattle returns the stored header for id.
//
// Postcondition: Returns ErrBattleNotFound if no battle has id.
func (r *JournalRepository) GetBattle(ctx context.Context, id string) (BattleRecord, error) {
	var (
		rec    BattleRecord
		seed   int64
		winner *string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, map_id, seed, winner, created_at, ended_at
		FROM battles WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.MapID, &seed, &winner, &rec.CreatedAt, &rec.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BattleRecord{}, ErrBattleNotFound
		}
		return BattleRecord{}, fmt.Errorf("querying battle %s: %w", id, err)
	}
	rec.Seed = uint64(seed)
	if winner != nil {
		rec.Winner = *winner
	}
	return rec, nil
}

// Load returns the journal of battle id with its entries in sequence order.
//
// Postcondition: Returns ErrBattleNotFound if no battle has id.
func (r *JournalRepository) Load(ctx context.Context, id string) (battle.Journal, error) {
	rec, err := r.GetBattle(ctx, id)
	if err != nil {
		return battle.Journal{}, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT seq, turn, side, action, accepted, reason
		FROM battle_actions WHERE battle_id = $1 ORDER BY seq ASC`, id)
	if err != nil {
		return battle.Journal{}, fmt.Errorf("listing actions of %s: %w", id, err)
	}
	defer rows.Close()

	j := battle.Journal{BattleID: rec.ID, Seed: rec.Seed}
	for rows.Next() {
		var (
			e            battle.JournalEntry
			side, reason string
			action       string
		)
		if err := rows.Scan(&e.Seq, &e.Turn, &side, &action, &e.Accepted, &reason); err != nil {
			return battle.Journal{}, fmt.Errorf("scanning action of %s: %w", id, err)
		}
		e.Side = unit.Side(side)
		e.Reason = battle.ReasonCode(reason)
		if e.Action, err = battle.DecodeAction([]byte(action)); err != nil {
			return battle.Journal{}, fmt.Errorf("action %d of %s: %w", e.Seq, id, err)
		}
		j.Entries = append(j.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return battle.Journal{}, fmt.Errorf("iterating actions of %s: %w", id, err)
	}
	return j, nil
}

// ListBattles returns every stored battle header, newest first.
func (r *JournalRepository) ListBattles(ctx context.Context) ([]BattleRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, map_id, seed, COALESCE(winner, ''), created_at, ended_at
		FROM battles ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing battles: %w", err)
	}
	defer rows.Close()

	var out []BattleRecord
	for rows.Next() {
		var (
			rec  BattleRecord
			seed int64
		)
		if err := rows.Scan(&rec.ID, &rec.MapID, &seed, &rec.Winner, &rec.CreatedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("scanning battle: %w", err)
		}
		rec.Seed = uint64(seed)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// SQLSTATE 23505 is unique_violation.
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
