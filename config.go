package orbital

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/viper"
)

// Config gathers the tunables of a simulation session. The zero value is not
// usable: start from DefaultConfig or LoadConfig.
type Config struct {
	TickΔt              float64 // fixed simulation tick, in sim seconds
	PredictionΔt        float64 // default step of trajectory rollouts
	MaxPredictionSteps  int     // hard cap on any rollout budget
	HyperbolicSteps     int     // fixed budget for unbound or invalid orbits
	ThrustBudgetDivisor int     // budget divisor while thrust is active
	ClosureMinFrac      float64 // fraction of the budget before closed-loop checks start
	ClosureDistFrac     float64 // closure distance as a fraction of the start radius
	ClosureAngle        float64 // closure velocity realignment tolerance, degrees
	Workers             int     // offload worker goroutines
	OutputDir           string  // trajectory/state export directory
}

// DefaultConfig returns the defaults used when no configuration file is
// provided.
func DefaultConfig() Config {
	return Config{
		TickΔt:              0.02,
		PredictionΔt:        5,
		MaxPredictionSteps:  30000,
		HyperbolicSteps:     5000,
		ThrustBudgetDivisor: 4,
		ClosureMinFrac:      0.1,
		ClosureDistFrac:     0.02,
		ClosureAngle:        10,
		Workers:             2,
		OutputDir:           ".",
	}
}

// Validate returns an error describing the first invalid tunable, if any.
func (c Config) Validate() error {
	if c.TickΔt <= 0 || math.IsNaN(c.TickΔt) {
		return fmt.Errorf("config: tick Δt must be positive, got %f", c.TickΔt)
	}
	if c.PredictionΔt <= 0 {
		return fmt.Errorf("config: prediction Δt must be positive, got %f", c.PredictionΔt)
	}
	if c.MaxPredictionSteps < 1 {
		return fmt.Errorf("config: max prediction steps must be at least 1, got %d", c.MaxPredictionSteps)
	}
	if c.HyperbolicSteps < 1 || c.HyperbolicSteps > c.MaxPredictionSteps {
		return fmt.Errorf("config: hyperbolic steps must be in [1, %d], got %d", c.MaxPredictionSteps, c.HyperbolicSteps)
	}
	if c.ThrustBudgetDivisor < 1 {
		return fmt.Errorf("config: thrust budget divisor must be at least 1, got %d", c.ThrustBudgetDivisor)
	}
	if c.ClosureMinFrac < 0 || c.ClosureMinFrac >= 1 {
		return fmt.Errorf("config: closure minimum fraction must be in [0, 1), got %f", c.ClosureMinFrac)
	}
	if c.ClosureDistFrac <= 0 {
		return fmt.Errorf("config: closure distance fraction must be positive, got %f", c.ClosureDistFrac)
	}
	if c.ClosureAngle <= 0 || c.ClosureAngle >= 90 {
		return fmt.Errorf("config: closure angle must be in (0, 90) degrees, got %f", c.ClosureAngle)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: worker count must be at least 1, got %d", c.Workers)
	}
	return nil
}

// LoadConfig reads conf.toml from the provided directory, or from the
// ORBITAL_CONFIG directory when dir is empty, and overlays it on the
// defaults. A missing directory and an empty dir with no environment set
// both fall back to the defaults.
func LoadConfig(dir string) (Config, error) {
	cfg := DefaultConfig()
	if dir == "" {
		dir = os.Getenv("ORBITAL_CONFIG")
		if dir == "" {
			return cfg, nil
		}
	}
	v := viper.New()
	v.SetConfigName("conf")
	v.AddConfigPath(dir)
	v.SetDefault("simulation.tick", cfg.TickΔt)
	v.SetDefault("prediction.step", cfg.PredictionΔt)
	v.SetDefault("prediction.maxsteps", cfg.MaxPredictionSteps)
	v.SetDefault("prediction.hyperbolicsteps", cfg.HyperbolicSteps)
	v.SetDefault("prediction.thrustdivisor", cfg.ThrustBudgetDivisor)
	v.SetDefault("prediction.closureminfrac", cfg.ClosureMinFrac)
	v.SetDefault("prediction.closuredistfrac", cfg.ClosureDistFrac)
	v.SetDefault("prediction.closureangle", cfg.ClosureAngle)
	v.SetDefault("offload.workers", cfg.Workers)
	v.SetDefault("general.output_path", cfg.OutputDir)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("%s/conf.toml: %s", dir, err)
	}
	cfg.TickΔt = v.GetFloat64("simulation.tick")
	cfg.PredictionΔt = v.GetFloat64("prediction.step")
	cfg.MaxPredictionSteps = v.GetInt("prediction.maxsteps")
	cfg.HyperbolicSteps = v.GetInt("prediction.hyperbolicsteps")
	cfg.ThrustBudgetDivisor = v.GetInt("prediction.thrustdivisor")
	cfg.ClosureMinFrac = v.GetFloat64("prediction.closureminfrac")
	cfg.ClosureDistFrac = v.GetFloat64("prediction.closuredistfrac")
	cfg.ClosureAngle = v.GetFloat64("prediction.closureangle")
	cfg.Workers = v.GetInt("offload.workers")
	cfg.OutputDir = v.GetString("general.output_path")
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
