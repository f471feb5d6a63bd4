package dice

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Expression is a parsed "NdS+M" damage expression.
//
// Invariant: Count >= 1, Sides >= 1.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

// Parse accepts "d6", "3d6", "2d10+4", "1d8-1" and the flat form "7".
//
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	s := strings.ToLower(raw)

	countStr, rest, hasDie := strings.Cut(s, "d")
	if !hasDie {
		flat, err := strconv.Atoi(s)
		if err != nil || flat < 0 {
			return Expression{}, fmt.Errorf("dice: invalid flat value %q", raw)
		}
		return Expression{Raw: raw, Count: 1, Sides: 1, Modifier: flat - 1}, nil
	}

	count := 1
	if countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil || n < 1 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q", raw)
		}
		count = n
	}

	sidesStr, modStr := rest, ""
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		sidesStr, modStr = rest[:i], rest[i:]
	}
	sides, err := strconv.Atoi(sidesStr)
	if err != nil || sides < 2 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q", raw)
	}
	mod := 0
	if modStr != "" {
		if mod, err = strconv.Atoi(modStr); err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", raw, err)
		}
	}
	return Expression{Raw: raw, Count: count, Sides: sides, Modifier: mod}, nil
}

// MustParse parses expr and panics on error.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err.Error())
	}
	return e
}

// Min and Max bound every possible Total of the expression.
func (e Expression) Min() int { return e.Count + e.Modifier }
func (e Expression) Max() int { return e.Count*e.Sides + e.Modifier }

// Roll evaluates e against src.
//
// Postcondition: len(result.Dice) == e.Count; e.Min() <= Total() <= e.Max().
func (e Expression) Roll(src Source) RollResult {
	rolled := make([]int, e.Count)
	for i := range rolled {
		if e.Sides == 1 {
			rolled[i] = 1
			continue
		}
		rolled[i] = src.Intn(e.Sides) + 1
	}
	return RollResult{Expression: e.Raw, Dice: rolled, Modifier: e.Modifier}
}

// Roller rolls expressions against a Source and logs every roll at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source exposes the underlying randomness so percentile checks share one stream.
func (r *Roller) Source() Source { return r.src }

// Percent returns a roll in [0, 100) and logs it under label.
func (r *Roller) Percent(label string) int {
	v := r.src.Intn(100)
	r.logger.Debug("percentile roll", zap.String("check", label), zap.Int("value", v))
	return v
}

// Roll evaluates e and logs the result.
func (r *Roller) Roll(e Expression) RollResult {
	res := e.Roll(r.src)
	r.logger.Debug("dice roll", zap.Stringer("roll", res), zap.Int("modifier", res.Modifier))
	return res
}

// RollExpr parses expr and rolls it.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}
