package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/cardroom/holdemd/internal/game"
)

// ErrNoAdminToken refuses startup without an admin token: the admin
// surface must never be open.
var ErrNoAdminToken = errors.New("server: admin_token is mandatory")

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Tables []TableConfig  `hcl:"table,block"`
}

// ServerSettings contains the server-level options. Durations are
// expressed in milliseconds (or seconds where suffixed _s) to keep the
// config file free of unit strings.
type ServerSettings struct {
	Address    string   `hcl:"address,optional"`
	Port       int      `hcl:"port,optional"`
	LogLevel   string   `hcl:"log_level,optional"`
	CORSOrigin []string `hcl:"cors_origin,optional"`
	AdminToken string   `hcl:"admin_token"`
	DBPath     string   `hcl:"db_path,optional"`

	BaseActionMs          int `hcl:"base_action_ms,optional"`
	DefaultTimeBankMs     int `hcl:"default_time_bank_ms,optional"`
	TimeBankCapMs         int `hcl:"time_bank_cap_ms,optional"`
	TimeBankGrowthMs      int `hcl:"time_bank_growth_ms,optional"`
	TimeBankGrowthHands   int `hcl:"time_bank_growth_hands,optional"`
	SitOutKickMs          int `hcl:"sit_out_kick_ms,optional"`
	DisconnectGraceMs     int `hcl:"disconnect_grace_ms,optional"`
	ReconnectSwapGraceMs  int `hcl:"reconnect_swap_grace_ms,optional"`
	RatholeWindowMs       int `hcl:"rathole_window_ms,optional"`
	ChallengeTTLSeconds   int `hcl:"challenge_ttl_s,optional"`
	SessionTTLSeconds     int `hcl:"session_ttl_s,optional"`
}

// TableConfig defines one table.
type TableConfig struct {
	Name          string `hcl:"name,label"`
	NumSeats      int    `hcl:"num_seats,optional"`
	SmallBlind    int    `hcl:"small_blind,optional"`
	BigBlind      int    `hcl:"big_blind,optional"`
	StartingStack int    `hcl:"starting_stack,optional"`
	MinBuyIn      int    `hcl:"min_buyin,optional"`
	MaxBuyIn      int    `hcl:"max_buyin,optional"`
}

// DefaultConfig returns the configuration used when no file is given.
// It has no admin token and will not pass Validate until one is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "0.0.0.0",
			Port:     8080,
			LogLevel: "info",
			DBPath:   "holdemd.db",
		},
		Tables: []TableConfig{{Name: "main"}},
	}
}

// Load reads an HCL config file and validates it.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("server: config file %s not found", filename)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("server: parse config: %s", diags.Error())
	}

	cfg := &Config{}
	diags = gohcl.DecodeBody(file.Body, nil, cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("server: decode config: %s", diags.Error())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = "holdemd.db"
	}
	if len(c.Tables) == 0 {
		c.Tables = []TableConfig{{Name: "main"}}
	}
}

// Validate enforces the startup requirements.
func (c *Config) Validate() error {
	if c.Server.AdminToken == "" {
		return ErrNoAdminToken
	}
	seen := map[string]bool{}
	for _, t := range c.Tables {
		if t.Name == "" {
			return errors.New("server: table name must not be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("server: duplicate table %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

func msOrDefault(ms int, def time.Duration) time.Duration {
	if ms == 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// GameConfig builds the engine configuration for one table, merging
// the server-level timing options with the table's stakes.
func (c *Config) GameConfig(t TableConfig) game.Config {
	return game.Config{
		NumSeats:            t.NumSeats,
		SmallBlind:          t.SmallBlind,
		BigBlind:            t.BigBlind,
		StartingStack:       t.StartingStack,
		MinBuyIn:            t.MinBuyIn,
		MaxBuyIn:            t.MaxBuyIn,
		BaseAction:          msOrDefault(c.Server.BaseActionMs, 15*time.Second),
		DefaultTimeBank:     msOrDefault(c.Server.DefaultTimeBankMs, 15*time.Second),
		TimeBankCap:         msOrDefault(c.Server.TimeBankCapMs, 60*time.Second),
		TimeBankGrowth:      msOrDefault(c.Server.TimeBankGrowthMs, 5*time.Second),
		TimeBankGrowthHands: c.Server.TimeBankGrowthHands,
		SitOutKick:          msOrDefault(c.Server.SitOutKickMs, 5*time.Minute),
		RatholeWindow:       msOrDefault(c.Server.RatholeWindowMs, 2*time.Hour),
	}
}

// DisconnectGrace is the disconnect-to-sit-out escalation window.
func (c *Config) DisconnectGrace() time.Duration {
	return msOrDefault(c.Server.DisconnectGraceMs, 60*time.Second)
}

// ReconnectSwapGrace is how long a replaced transport lingers before
// cleanup after a reconnection swap.
func (c *Config) ReconnectSwapGrace() time.Duration {
	return msOrDefault(c.Server.ReconnectSwapGraceMs, 10*time.Second)
}

// ChallengeTTL is the auth challenge validity window.
func (c *Config) ChallengeTTL() time.Duration {
	if c.Server.ChallengeTTLSeconds == 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Server.ChallengeTTLSeconds) * time.Second
}

// SessionTTL is the session token validity window.
func (c *Config) SessionTTL() time.Duration {
	if c.Server.SessionTTLSeconds == 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Server.SessionTTLSeconds) * time.Second
}
