// Package config provides Viper-based configuration loading for lootmaster.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/lootmaster/internal/game/dice"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/loot"
)

// DatabaseConfig holds PostgreSQL connection settings.
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
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Roster sources.
const (
	RosterFromFile     = "file"
	RosterFromPostgres = "postgres"
)

// ContentConfig locates the static content and the roster.
type ContentConfig struct {
	ItemsDir      string `mapstructure:"items_dir"`
	JobsDir       string `mapstructure:"jobs_dir"`
	EncountersDir string `mapstructure:"encounters_dir"`
	// RosterSource is "file" or "postgres".
	RosterSource string `mapstructure:"roster_source"`
	// RosterFile is the group YAML read when RosterSource is "file".
	RosterFile string `mapstructure:"roster_file"`
	// GroupID selects the group when RosterSource is "postgres".
	GroupID string `mapstructure:"group_id"`
}

// RulesConfig configures the ranking rules.
type RulesConfig struct {
	// Order lists the active rules, highest precedence first. Configurable
	// rules not listed are kept inactive.
	Order []string `mapstructure:"order"`
	// Ignore lists rules from Order that exclude candidates instead of ranking them.
	Ignore []string `mapstructure:"ignore"`
	Strict bool     `mapstructure:"strict"`
	// RandomRoll is the dice expression behind the random rule, e.g. "1d100".
	RandomRoll         string         `mapstructure:"random_roll"`
	RolePriority       map[string]int `mapstructure:"role_priority"`
	StrictRolePriority map[string]int `mapstructure:"strict_role_priority"`
}

// Scoring engines.
const (
	EngineNone      = "none"
	EngineItemLevel = "itemlevel"
	EngineLua       = "lua"
)

// ScoringConfig selects the engine behind the dps_gain rule.
type ScoringConfig struct {
	// Engine is "none", "itemlevel" or "lua".
	Engine string `mapstructure:"engine"`
	// Script is a Lua file or directory of Lua files; required for "lua".
	Script           string        `mapstructure:"script"`
	InstructionLimit int           `mapstructure:"instruction_limit"`
	MateriaBonus     float64       `mapstructure:"materia_bonus"`
	WeaponWeight     float64       `mapstructure:"weapon_weight"`
	CacheSize        int           `mapstructure:"cache_size"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// Config is the top-level application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Content  ContentConfig  `mapstructure:"content"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if c.Content.RosterSource == RosterFromPostgres {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := c.Rules.RuleSet(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateScoring(c.Scoring); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
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
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
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

func validateContent(c ContentConfig) error {
	var errs []string
	if c.ItemsDir == "" {
		errs = append(errs, "content.items_dir must not be empty")
	}
	if c.JobsDir == "" {
		errs = append(errs, "content.jobs_dir must not be empty")
	}
	switch c.RosterSource {
	case RosterFromFile:
		if c.RosterFile == "" {
			errs = append(errs, "content.roster_file must not be empty when content.roster_source is file")
		}
	case RosterFromPostgres:
		if c.GroupID == "" {
			errs = append(errs, "content.group_id must not be empty when content.roster_source is postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("content.roster_source must be one of [file, postgres], got %q", c.RosterSource))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateScoring(s ScoringConfig) error {
	var errs []string
	switch s.Engine {
	case EngineNone, EngineItemLevel:
	case EngineLua:
		if s.Script == "" {
			errs = append(errs, "scoring.script must not be empty when scoring.engine is lua")
		}
	default:
		errs = append(errs, fmt.Sprintf("scoring.engine must be one of [none, itemlevel, lua], got %q", s.Engine))
	}
	if s.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scoring.instruction_limit must be >= 0, got %d", s.InstructionLimit))
	}
	if s.CacheSize < 0 {
		errs = append(errs, fmt.Sprintf("scoring.cache_size must be >= 0, got %d", s.CacheSize))
	}
	if s.CacheTTL < 0 {
		errs = append(errs, "scoring.cache_ttl must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// RuleSet converts the rules section into a loot.RuleSet.
//
// Postcondition: Returns a RuleSet that passes Validate, or an error describing all violations.
func (r RulesConfig) RuleSet() (*loot.RuleSet, error) {
	var errs []error
	rs := loot.DefaultRuleSet()
	rs.Strict = r.Strict

	if len(r.Order) > 0 {
		listed := make(map[loot.RuleKind]bool, len(r.Order))
		rs.Rules = nil
		for _, name := range r.Order {
			k, err := loot.ParseRuleKind(name)
			if err != nil {
				errs = append(errs, fmt.Errorf("rules.order: %w", err))
				continue
			}
			if listed[k] {
				errs = append(errs, fmt.Errorf("rules.order: %s listed more than once", k))
				continue
			}
			listed[k] = true
			rs.Rules = append(rs.Rules, loot.Rule{Kind: k, Active: true})
		}
		for _, def := range loot.DefaultRuleSet().Rules {
			if !listed[def.Kind] {
				rs.Rules = append(rs.Rules, loot.Rule{Kind: def.Kind})
			}
		}
	}

	for _, name := range r.Ignore {
		k, err := loot.ParseRuleKind(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("rules.ignore: %w", err))
			continue
		}
		i := ruleIndex(rs, k)
		if i < 0 || !rs.Rules[i].Active {
			errs = append(errs, fmt.Errorf("rules.ignore: %s must also be listed in rules.order", k))
			continue
		}
		rs.Rules[i].IgnorePlayers = true
	}

	if r.RandomRoll != "" {
		expr, err := dice.Parse(r.RandomRoll)
		if err != nil {
			errs = append(errs, fmt.Errorf("rules.random_roll: %w", err))
		} else {
			rs.RandomRoll = expr
		}
	}
	if len(r.RolePriority) > 0 {
		table, err := roleTable("rules.role_priority", r.RolePriority, []job.Role{job.RoleTank, job.RoleHealer, job.RoleDPS})
		errs = append(errs, err)
		rs.RolePriority = table
	}
	if len(r.StrictRolePriority) > 0 {
		table, err := roleTable("rules.strict_role_priority", r.StrictRolePriority,
			[]job.Role{job.RoleTank, job.RoleHealer, job.RoleMelee, job.RoleRanged, job.RoleCaster})
		errs = append(errs, err)
		rs.StrictRolePriority = table
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	return rs, nil
}

func ruleIndex(rs *loot.RuleSet, k loot.RuleKind) int {
	for i, r := range rs.Rules {
		if r.Kind == k {
			return i
		}
	}
	return -1
}

func roleTable(field string, raw map[string]int, allowed []job.Role) (map[job.Role]int, error) {
	ok := make(map[job.Role]bool, len(allowed))
	for _, r := range allowed {
		ok[r] = true
	}
	var errs []error
	table := make(map[job.Role]int, len(raw))
	for name, prio := range raw {
		role := job.Role(strings.ToLower(name))
		if !ok[role] {
			errs = append(errs, fmt.Errorf("%s: unknown role %q", field, name))
			continue
		}
		if prio < 1 {
			errs = append(errs, fmt.Errorf("%s: %s priority must be >= 1, got %d", field, role, prio))
			continue
		}
		table[role] = prio
	}
	return table, errors.Join(errs...)
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with LOOT_ prefix
	v.SetEnvPrefix("LOOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
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

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "loot")
	v.SetDefault("database.password", "loot")
	v.SetDefault("database.name", "loot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("content.items_dir", "content/items")
	v.SetDefault("content.jobs_dir", "content/jobs")
	v.SetDefault("content.encounters_dir", "content/encounters")
	v.SetDefault("content.roster_source", RosterFromFile)
	v.SetDefault("content.roster_file", "content/roster.yaml")

	v.SetDefault("rules.random_roll", loot.DefaultRandomRoll)

	v.SetDefault("scoring.engine", EngineItemLevel)
	v.SetDefault("scoring.materia_bonus", 1.0)
	v.SetDefault("scoring.weapon_weight", 2.0)
	v.SetDefault("scoring.cache_size", 1024)
	v.SetDefault("scoring.cache_ttl", "10m")
}
