// Package config provides Viper-based configuration loading for the battle core.
package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings for the battle journal.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// ConnectAttempts is how many times the journal store pings before giving up.
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JournalConfig controls whether resolved actions are recorded to PostgreSQL.
type JournalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Outputs are zap sink URLs or file paths; "stderr" and "stdout" name
	// the standard streams. Empty means stderr.
	Outputs []string `mapstructure:"outputs"`
}

// ContentConfig names the directories static battle content is read from.
type ContentConfig struct {
	ItemsDir   string `mapstructure:"items_dir"`
	EffectsDir string `mapstructure:"effects_dir"`
	RacesDir   string `mapstructure:"races_dir"`
	SkillsDir  string `mapstructure:"skills_dir"`
	SidesDir   string `mapstructure:"sides_dir"`
	MapsDir    string `mapstructure:"maps_dir"`
	ScriptsDir string `mapstructure:"scripts_dir"`
}

// BattleConfig holds the action economy and tactical rule constants.
type BattleConfig struct {
	// CrouchAP is the cost of toggling between standing and crouched.
	CrouchAP int `mapstructure:"crouch_ap"`
	// CoverAP is the cost of taking cover against an adjacent obstacle.
	CoverAP int `mapstructure:"cover_ap"`
	// ThrowAP is the cost of throwing an item.
	ThrowAP int `mapstructure:"throw_ap"`
	// HealAP is the cost of using a medical item.
	HealAP int `mapstructure:"heal_ap"`
	// OverwatchAP is moved from current AP into the reaction reserve.
	OverwatchAP int `mapstructure:"overwatch_ap"`
	// ReactionAP is the reserve a reaction shot consumes.
	ReactionAP int `mapstructure:"reaction_ap"`
	// SuppressAP is the cost of a suppression burst.
	SuppressAP int `mapstructure:"suppress_ap"`
	// OverwatchArc is the full width in degrees of the overwatch cone.
	OverwatchArc float64 `mapstructure:"overwatch_arc"`
	// ReactionAccuracy is added to the hit chance of reaction shots.
	ReactionAccuracy int `mapstructure:"reaction_accuracy"`
	// CrouchedAccuracy is added to the hit chance of crouched shooters.
	CrouchedAccuracy int `mapstructure:"crouched_accuracy"`
	// PartialSightAccuracy is added to the hit chance through partial cover of sight.
	PartialSightAccuracy int `mapstructure:"partial_sight_accuracy"`
	// RangeAccuracy is subtracted from the hit chance per tile of distance.
	RangeAccuracy int `mapstructure:"range_accuracy"`
	// MinHitChance and MaxHitChance clamp every hit roll.
	MinHitChance int `mapstructure:"min_hit_chance"`
	MaxHitChance int `mapstructure:"max_hit_chance"`
	// SuppressionAmount is added to a target's suppression counter per burst.
	SuppressionAmount int `mapstructure:"suppression_amount"`
	// SuppressionDecay is removed from every counter at the unit's turn start.
	SuppressionDecay int `mapstructure:"suppression_decay"`
	// SuppressionAccuracy is subtracted from the hit chance per counter point.
	SuppressionAccuracy int `mapstructure:"suppression_accuracy"`
	// PinChance is the percent chance per counter point of being pinned.
	PinChance int `mapstructure:"pin_chance"`
	// PinAPPenalty is removed from a pinned unit's AP grant.
	PinAPPenalty int `mapstructure:"pin_ap_penalty"`
	// CrouchedVision and ProneVision scale sight range by stance.
	CrouchedVision float64 `mapstructure:"crouched_vision"`
	ProneVision    float64 `mapstructure:"prone_vision"`
	// ThrowRange is added to half the thrower's strength.
	ThrowRange int `mapstructure:"throw_range"`
	// RestEnergy is the stamina restored by resting.
	RestEnergy int `mapstructure:"rest_energy"`
	// RestAPBonus is granted at the next turn start after resting.
	RestAPBonus int `mapstructure:"rest_ap_bonus"`
	// CrippledMoveAP is added to every step when a leg is disabled.
	CrippledMoveAP int `mapstructure:"crippled_move_ap"`
	// StunRecovery is removed from the stun pool at each of the unit's turn
	// starts; RestStun is removed by resting.
	StunRecovery int `mapstructure:"stun_recovery"`
	RestStun     int `mapstructure:"rest_stun"`
	// MoraleRecovery is restored at each turn start; RestMorale by resting.
	MoraleRecovery int `mapstructure:"morale_recovery"`
	RestMorale     int `mapstructure:"rest_morale"`
	// LowMorale is the morale at or below which a unit loses AP, one per
	// point below LowMorale+1.
	LowMorale int `mapstructure:"low_morale"`
}

// DamageConfig holds the armor, critical and side-effect constants.
type DamageConfig struct {
	// Deflection scales damage when penetration does not exceed armor.
	Deflection float64 `mapstructure:"deflection"`
	// SpilloverRatio scales body-part overflow into the overall HP pool.
	SpilloverRatio float64 `mapstructure:"spillover_ratio"`
	// CritBase is the base critical chance in percent.
	CritBase int `mapstructure:"crit_base"`
	// CritMultiplier scales critical damage.
	CritMultiplier float64 `mapstructure:"crit_multiplier"`
	// CritCrouched and CritProne are subtracted when the target is low.
	CritCrouched int `mapstructure:"crit_crouched"`
	CritProne    int `mapstructure:"crit_prone"`
	// CritCloseRange is the distance at or below which CritCloseBonus applies.
	CritCloseRange int `mapstructure:"crit_close_range"`
	CritCloseBonus int `mapstructure:"crit_close_bonus"`
	// CritRangeFalloff is subtracted from the crit chance per tile of distance.
	CritRangeFalloff int `mapstructure:"crit_range_falloff"`
	// BleedTypes lists damage types that can open a bleeding wound.
	BleedTypes []string `mapstructure:"bleed_types"`
	// PanicThreshold is the fraction of max HP below which a hit costs a
	// full MoraleShock on top of the wound itself.
	PanicThreshold float64 `mapstructure:"panic_threshold"`
	// MoraleShock is the morale a hit costs per max HP of pool damage,
	// scaled down by the target's bravery. A unit at zero morale panics.
	MoraleShock int `mapstructure:"morale_shock"`
	// StunRatios is the share of damage, by damage type, that goes to the
	// stun pool instead of HP.
	StunRatios map[string]float64 `mapstructure:"stun_ratios"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Content  ContentConfig  `mapstructure:"content"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Damage   DamageConfig   `mapstructure:"damage"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Journal.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := c.Battle.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Damage.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks that every cost and ratio is in range.
func (b BattleConfig) Validate() error {
	var errs []string
	costs := []struct {
		name string
		val  int
	}{
		{"battle.crouch_ap", b.CrouchAP},
		{"battle.cover_ap", b.CoverAP},
		{"battle.throw_ap", b.ThrowAP},
		{"battle.heal_ap", b.HealAP},
		{"battle.overwatch_ap", b.OverwatchAP},
		{"battle.reaction_ap", b.ReactionAP},
		{"battle.suppress_ap", b.SuppressAP},
		{"battle.suppression_amount", b.SuppressionAmount},
		{"battle.suppression_decay", b.SuppressionDecay},
		{"battle.pin_chance", b.PinChance},
		{"battle.pin_ap_penalty", b.PinAPPenalty},
		{"battle.rest_energy", b.RestEnergy},
		{"battle.rest_ap_bonus", b.RestAPBonus},
		{"battle.crippled_move_ap", b.CrippledMoveAP},
		{"battle.stun_recovery", b.StunRecovery},
		{"battle.rest_stun", b.RestStun},
		{"battle.morale_recovery", b.MoraleRecovery},
		{"battle.rest_morale", b.RestMorale},
		{"battle.low_morale", b.LowMorale},
		{"battle.range_accuracy", b.RangeAccuracy},
		{"battle.suppression_accuracy", b.SuppressionAccuracy},
	}
	for _, c := range costs {
		if c.val < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0, got %d", c.name, c.val))
		}
	}
	if b.ReactionAP > b.OverwatchAP {
		errs = append(errs, "battle.reaction_ap must not exceed battle.overwatch_ap")
	}
	if b.OverwatchArc <= 0 || b.OverwatchArc > 360 {
		errs = append(errs, fmt.Sprintf("battle.overwatch_arc must be in (0, 360], got %v", b.OverwatchArc))
	}
	if b.MinHitChance < 0 || b.MaxHitChance > 100 || b.MinHitChance > b.MaxHitChance {
		errs = append(errs, fmt.Sprintf("battle hit chance bounds invalid: [%d, %d]", b.MinHitChance, b.MaxHitChance))
	}
	if b.CrouchedVision <= 0 || b.CrouchedVision > 1 {
		errs = append(errs, fmt.Sprintf("battle.crouched_vision must be in (0, 1], got %v", b.CrouchedVision))
	}
	if b.ProneVision <= 0 || b.ProneVision > 1 {
		errs = append(errs, fmt.Sprintf("battle.prone_vision must be in (0, 1], got %v", b.ProneVision))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the damage model constants.
func (d DamageConfig) Validate() error {
	var errs []string
	if d.Deflection < 0 || d.Deflection > 1 {
		errs = append(errs, fmt.Sprintf("damage.deflection must be in [0, 1], got %v", d.Deflection))
	}
	if d.SpilloverRatio < 0 {
		errs = append(errs, fmt.Sprintf("damage.spillover_ratio must be >= 0, got %v", d.SpilloverRatio))
	}
	if d.CritBase < 0 || d.CritBase > 100 {
		errs = append(errs, fmt.Sprintf("damage.crit_base must be in [0, 100], got %d", d.CritBase))
	}
	if d.CritMultiplier < 1 {
		errs = append(errs, fmt.Sprintf("damage.crit_multiplier must be >= 1, got %v", d.CritMultiplier))
	}
	if d.CritRangeFalloff < 0 {
		errs = append(errs, "damage.crit_range_falloff must not be negative")
	}
	if d.PanicThreshold < 0 || d.PanicThreshold > 1 {
		errs = append(errs, fmt.Sprintf("damage.panic_threshold must be in [0, 1], got %v", d.PanicThreshold))
	}
	if d.MoraleShock < 0 {
		errs = append(errs, fmt.Sprintf("damage.morale_shock must be >= 0, got %d", d.MoraleShock))
	}
	for _, dtype := range slices.Sorted(maps.Keys(d.StunRatios)) {
		if r := d.StunRatios[dtype]; r < 0 || r > 1 {
			errs = append(errs, fmt.Sprintf("damage.stun_ratios.%s must be in [0, 1], got %v", dtype, r))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must be in [0, max_conns]")
	}
	if d.ConnectAttempts < 1 {
		errs = append(errs, fmt.Sprintf("database.connect_attempts must be >= 1, got %d", d.ConnectAttempts))
	}
	if d.ConnectBackoff < 0 {
		errs = append(errs, "database.connect_backoff must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("TACTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Config populated only with default values.
//
// Postcondition: Defaults().Validate() == nil.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("config: defaults do not unmarshal: " + err.Error())
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputs", []string{"stderr"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tactics")
	v.SetDefault("database.password", "tactics")
	v.SetDefault("database.name", "tactics")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("database.connect_backoff", "500ms")

	v.SetDefault("journal.enabled", false)

	v.SetDefault("content.items_dir", "content/items")
	v.SetDefault("content.effects_dir", "content/effects")
	v.SetDefault("content.races_dir", "content/races")
	v.SetDefault("content.skills_dir", "content/skills")
	v.SetDefault("content.sides_dir", "content/sides")
	v.SetDefault("content.maps_dir", "content/maps")
	v.SetDefault("content.scripts_dir", "content/scripts")

	v.SetDefault("battle.crouch_ap", 1)
	v.SetDefault("battle.cover_ap", 1)
	v.SetDefault("battle.throw_ap", 2)
	v.SetDefault("battle.heal_ap", 2)
	v.SetDefault("battle.overwatch_ap", 2)
	v.SetDefault("battle.reaction_ap", 2)
	v.SetDefault("battle.suppress_ap", 2)
	v.SetDefault("battle.overwatch_arc", 120.0)
	v.SetDefault("battle.reaction_accuracy", -10)
	v.SetDefault("battle.crouched_accuracy", 10)
	v.SetDefault("battle.partial_sight_accuracy", -20)
	v.SetDefault("battle.range_accuracy", 2)
	v.SetDefault("battle.min_hit_chance", 5)
	v.SetDefault("battle.max_hit_chance", 95)
	v.SetDefault("battle.suppression_amount", 2)
	v.SetDefault("battle.suppression_decay", 1)
	v.SetDefault("battle.suppression_accuracy", 10)
	v.SetDefault("battle.pin_chance", 15)
	v.SetDefault("battle.pin_ap_penalty", 2)
	v.SetDefault("battle.crouched_vision", 0.75)
	v.SetDefault("battle.prone_vision", 0.5)
	v.SetDefault("battle.throw_range", 4)
	v.SetDefault("battle.rest_energy", 5)
	v.SetDefault("battle.rest_ap_bonus", 1)
	v.SetDefault("battle.crippled_move_ap", 1)
	v.SetDefault("battle.stun_recovery", 2)
	v.SetDefault("battle.rest_stun", 4)
	v.SetDefault("battle.morale_recovery", 1)
	v.SetDefault("battle.rest_morale", 3)
	v.SetDefault("battle.low_morale", 3)

	v.SetDefault("damage.deflection", 0.5)
	v.SetDefault("damage.spillover_ratio", 0.5)
	v.SetDefault("damage.crit_base", 10)
	v.SetDefault("damage.crit_multiplier", 1.5)
	v.SetDefault("damage.crit_crouched", 5)
	v.SetDefault("damage.crit_prone", 10)
	v.SetDefault("damage.crit_close_range", 2)
	v.SetDefault("damage.crit_close_bonus", 15)
	v.SetDefault("damage.crit_range_falloff", 1)
	v.SetDefault("damage.bleed_types", []string{"kinetic", "laser", "melee"})
	v.SetDefault("damage.panic_threshold", 0.3)
	v.SetDefault("damage.morale_shock", 10)
	v.SetDefault("damage.stun_ratios", map[string]float64{"stun": 1})
}
