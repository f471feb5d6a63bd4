// Package observability builds the zap loggers the simulator and migrate
// tool share, and the per-battle child logger events are written through.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alienfall/tactics/internal/config"
)

// NewLogger builds a logger writing cfg.Format entries at cfg.Level or above
// to every sink in cfg.Outputs.
//
// Precondition: cfg passes config validation.
// Postcondition: Returns a logger or a non-nil error if a sink cannot be opened.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	enc, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}

	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	sink, _, err := zap.Open(outputs...)
	if err != nil {
		return nil, fmt.Errorf("opening log outputs %v: %w", outputs, err)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch format {
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.ConsoleSeparator = "  "
		return zapcore.NewConsoleEncoder(ec), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// BattleLogger returns a child logger tagged with the battle session id and
// seed, so a logged run can be reproduced with -seed.
func BattleLogger(base *zap.Logger, battleID string, seed uint64) *zap.Logger {
	return base.Named("battle").With(zap.String("battle_id", battleID), zap.Uint64("seed", seed))
}
