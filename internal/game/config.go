package game

import "time"

// Config holds the per-table rules and timing knobs. Zero values are
// filled in by ApplyDefaults.
type Config struct {
	NumSeats      int
	SmallBlind    int
	BigBlind      int
	StartingStack int
	MinBuyIn      int
	MaxBuyIn      int

	BaseAction          time.Duration // base action timer
	DefaultTimeBank     time.Duration // initial per-phase pool
	TimeBankCap         time.Duration
	TimeBankGrowth      time.Duration
	TimeBankGrowthHands int

	SitOutKick     time.Duration // sit-out to seat removal
	HandStartDelay time.Duration // debounce before dealing
	RatholeWindow  time.Duration

	// Dramatic run-out pacing: reveal, then flop, turn, river.
	RunoutReveal time.Duration
	RunoutFlop   time.Duration
	RunoutTurn   time.Duration
	RunoutRiver  time.Duration
}

// ApplyDefaults fills unset fields with the standard values.
func (c *Config) ApplyDefaults() {
	if c.NumSeats == 0 {
		c.NumSeats = 6
	}
	if c.SmallBlind == 0 {
		c.SmallBlind = 50
	}
	if c.BigBlind == 0 {
		c.BigBlind = 100
	}
	if c.StartingStack == 0 {
		c.StartingStack = 10000
	}
	if c.MinBuyIn == 0 {
		c.MinBuyIn = 2000
	}
	if c.MaxBuyIn == 0 {
		c.MaxBuyIn = 10000
	}
	if c.BaseAction == 0 {
		c.BaseAction = 15 * time.Second
	}
	if c.DefaultTimeBank == 0 {
		c.DefaultTimeBank = 15 * time.Second
	}
	if c.TimeBankCap == 0 {
		c.TimeBankCap = 60 * time.Second
	}
	if c.TimeBankGrowth == 0 {
		c.TimeBankGrowth = 5 * time.Second
	}
	if c.TimeBankGrowthHands == 0 {
		c.TimeBankGrowthHands = 10
	}
	if c.SitOutKick == 0 {
		c.SitOutKick = 5 * time.Minute
	}
	if c.HandStartDelay == 0 {
		c.HandStartDelay = 2 * time.Second
	}
	if c.RatholeWindow == 0 {
		c.RatholeWindow = 2 * time.Hour
	}
	if c.RunoutReveal == 0 {
		c.RunoutReveal = 2 * time.Second
	}
	if c.RunoutFlop == 0 {
		c.RunoutFlop = 2 * time.Second
	}
	if c.RunoutTurn == 0 {
		c.RunoutTurn = 3 * time.Second
	}
	if c.RunoutRiver == 0 {
		c.RunoutRiver = 2 * time.Second
	}
}
