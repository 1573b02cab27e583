package recommend

import (
	"time"

	"github.com/pkg/errors"

	"github.com/heroesdelapatria/portal/core"
)

// Config holds the pipeline tunables. Weights are constants, not learned.
type Config struct {
	DefaultLimit        int
	MaxLimit            int
	ConfidenceThreshold float64
	CollaborativeWeight float64
	ContentWeight       float64
	MaxNeighbors        int
	MaxCandidates       int
	CacheTTL            time.Duration
	CacheCapacity       int
	Seed                int64
}

func DefaultConfig() *Config {
	return &Config{
		DefaultLimit:        10,
		MaxLimit:            50,
		ConfidenceThreshold: 0.7,
		CollaborativeWeight: 0.6,
		ContentWeight:       0.4,
		MaxNeighbors:        5,
		MaxCandidates:       20,
		CacheTTL:            15 * time.Minute,
		CacheCapacity:       1000,
	}
}

// NewConfig builds a Config from the application configuration.
func NewConfig(conf *core.Config) *Config {
	rc := conf.Recommend
	return &Config{
		DefaultLimit:        rc.DefaultLimit,
		MaxLimit:            rc.MaxLimit,
		ConfidenceThreshold: rc.ConfidenceThreshold,
		CollaborativeWeight: rc.CollaborativeWeight,
		ContentWeight:       rc.ContentWeight,
		MaxNeighbors:        rc.MaxNeighbors,
		MaxCandidates:       rc.MaxCandidates,
		CacheTTL:            rc.CacheTTL,
		CacheCapacity:       rc.CacheCapacity,
		Seed:                rc.Seed,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.DefaultLimit <= 0:
		return errors.New("defaultLimit must be positive")
	case c.MaxLimit < c.DefaultLimit:
		return errors.New("maxLimit must be >= defaultLimit")
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return errors.New("confidenceThreshold must be in [0,1]")
	case c.CollaborativeWeight < 0 || c.ContentWeight < 0:
		return errors.New("weights must not be negative")
	case c.MaxNeighbors <= 0 || c.MaxCandidates <= 0:
		return errors.New("maxNeighbors and maxCandidates must be positive")
	case c.CacheTTL <= 0:
		return errors.New("cacheTTL must be positive")
	case c.CacheCapacity <= 0:
		return errors.New("cacheCapacity must be positive")
	}
	return nil
}
