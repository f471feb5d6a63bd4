package battle

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/alienfall/tactics/internal/game/unit"
)

// JournalEntry records one submitted action and how it was judged.
type JournalEntry struct {
	Seq      int        `yaml:"seq"`
	Turn     int        `yaml:"turn"`
	Side     unit.Side  `yaml:"side"`
	Action   Action     `yaml:"action"`
	Accepted bool       `yaml:"accepted"`
	Reason   ReasonCode `yaml:"reason,omitempty"`
}

// Journal is everything needed to replay a battle from its starting state.
type Journal struct {
	BattleID string         `yaml:"battle_id"`
	Seed     uint64         `yaml:"seed"`
	Entries  []JournalEntry `yaml:"entries"`
}

// Journal returns a copy of the battle's journal.
func (b *Battle) Journal() Journal {
	b.mu.Lock()
	defer b.mu.Unlock()
	j := b.journal
	j.Entries = append([]JournalEntry(nil), b.journal.Entries...)
	return j
}

// Replay rebuilds a battle from its starting options and journal. opts must
// describe the same map and freshly built units the original started with;
// its Seed and Source are replaced by the journal's seed.
//
// Postcondition: every entry is re-judged the same way, or an error names
// the first divergence.
func Replay(opts Options, j Journal) (*Battle, error) {
	opts.Seed = j.Seed
	opts.Source = nil
	if opts.ID == "" {
		opts.ID = j.BattleID
	}
	b, err := New(opts)
	if err != nil {
		return nil, err
	}
	for _, e := range j.Entries {
		res := b.Submit(e.Action)
		if res.Accepted != e.Accepted || res.Reason != e.Reason {
			return b, fmt.Errorf("battle: replay diverged at entry %d (%s): accepted=%t reason=%q, journal accepted=%t reason=%q",
				e.Seq, e.Action, res.Accepted, res.Reason, e.Accepted, e.Reason)
		}
	}
	return b, nil
}

// EncodeAction renders a as YAML.
func EncodeAction(a Action) ([]byte, error) {
	return yaml.Marshal(a)
}

// DecodeAction parses one YAML action, rejecting unknown fields and kinds.
func DecodeAction(data []byte) (Action, error) {
	var a Action
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&a); err != nil {
		return Action{}, fmt.Errorf("battle: decoding action: %w", err)
	}
	if _, err := ParseKind(string(a.Kind)); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Script is an ordered list of actions, as read by the simulator.
type Script struct {
	Actions []Action `yaml:"actions"`
}

// ParseScript reads a YAML action script.
func ParseScript(r io.Reader) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Script{}, fmt.Errorf("battle: decoding script: %w", err)
	}
	var errs []error
	for i, a := range s.Actions {
		if _, err := ParseKind(string(a.Kind)); err != nil {
			errs = append(errs, fmt.Errorf("action %d: %w", i+1, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Script{}, err
	}
	return s, nil
}
