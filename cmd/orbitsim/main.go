package main

import (
	"flag"
	"log"
	"strings"
	"time"

	orbital "github.com/Brprb08/orbital-control-simulator-sub000"
	"github.com/soniakeys/meeus/julian"
	"github.com/spf13/viper"
)

// This code effectively only reads the scenario file, steps the simulation
// and reports the tracked body's orbit.

const (
	defaultScenario = "~~unset~~"
	dateFormat      = "2006-01-02 15:04:05"
)

var (
	scenario string
	verbose  bool
)

func init() {
	// Read flags
	flag.StringVar(&scenario, "scenario", defaultScenario, "scenario TOML file")
	flag.BoolVar(&verbose, "verbose", false, "really verbose (esp. for configuration)")
}

func main() {
	flag.Parse()
	// Load scenario
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	scenario = strings.Replace(scenario, ".toml", "", 1)
	viper.AddConfigPath(".")
	viper.SetConfigName(scenario)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("./%s.toml: Error %s", scenario, err)
	}

	// Mission parameters
	startDT := confReadJDEorTime("mission.start")
	ticks := viper.GetInt("mission.ticks")
	if ticks <= 0 {
		log.Fatalf("mission.ticks must be positive, got %d", ticks)
	}
	if verbose {
		log.Printf("[conf] epoch: %s (JD %f)\n", startDT.Format(dateFormat), julian.TimeToJD(startDT))
	}

	cfg := readConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %s", err)
	}

	conf := orbital.ExportConfig{
		Filename:  viper.GetString("export.filename"),
		OutputDir: cfg.OutputDir,
		AsCSV:     viper.GetBool("export.csv"),
		Timestamp: viper.GetBool("export.timestamp"),
	}

	reg := orbital.NewRegistry()
	session := orbital.NewSession(reg, cfg, nil, conf)
	predictor := orbital.NewPredictor(reg, cfg, nil, nil)
	defer predictor.Close()

	bodies := readBodies()
	if len(bodies) == 0 {
		log.Fatal("scenario defines no bodies")
	}
	for _, b := range bodies {
		session.RegisterBody(b)
	}

	tracked := trackedBody(bodies)
	session.OnCollision(func(removed *orbital.Body) {
		predictor.Forget(removed.ID)
		if removed == tracked {
			// Retarget onto the heaviest survivor.
			tracked = nil
			for _, b := range reg.Bodies() {
				if tracked == nil || b.Mass > tracked.Mass {
					tracked = b
				}
			}
			log.Printf("tracked body destroyed, retargeting to %s", tracked)
		}
	})

	report := ticks / 10
	if report == 0 {
		report = 1
	}
	for i := 0; i < ticks; i++ {
		session.Step(cfg.TickΔt)
		if verbose && (i+1)%report == 0 && tracked != nil {
			el := orbital.ElementsAbout(tracked.R, tracked.V, reg.Snapshot())
			log.Printf("tick %d: %s: %s", i+1, tracked.Name, el)
		}
	}
	session.Close()

	if tracked != nil {
		traj := predictor.Request(tracked, 0, 0, orbital.FidelityHigh).Wait()
		log.Printf("predicted %d points for %s (stop: %s)", len(traj.Points), tracked.Name, traj.Reason)
		if err := orbital.ExportTrajectory(conf, traj); err != nil {
			log.Printf("trajectory export failed: %s", err)
		}
	}
}

// confReadJDEorTime reads the key either as a Julian date or as a civil
// date/time string.
func confReadJDEorTime(key string) (dt time.Time) {
	jde := viper.GetFloat64(key)
	if jde == 0 {
		dt = viper.GetTime(key)
	} else {
		dt = julian.JDToTime(jde)
	}
	return
}

func readConfig() orbital.Config {
	cfg := orbital.DefaultConfig()
	if v := viper.GetFloat64("simulation.tick"); v > 0 {
		cfg.TickΔt = v
	}
	if v := viper.GetFloat64("prediction.step"); v > 0 {
		cfg.PredictionΔt = v
	}
	if v := viper.GetInt("prediction.maxsteps"); v > 0 {
		cfg.MaxPredictionSteps = v
	}
	if v := viper.GetInt("prediction.hyperbolicsteps"); v > 0 {
		cfg.HyperbolicSteps = v
	}
	if v := viper.GetInt("offload.workers"); v > 0 {
		cfg.Workers = v
	}
	if v := viper.GetString("general.output_path"); v != "" {
		cfg.OutputDir = v
	}
	return cfg
}

// readBodies parses the [[bodies]] array of the scenario.
func readBodies() []*orbital.Body {
	raw, ok := viper.Get("bodies").([]interface{})
	if !ok {
		return nil
	}
	list := make([]*orbital.Body, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			log.Fatalf("bodies[%d]: not a table", i)
		}
		name, _ := m["name"].(string)
		if name == "" {
			log.Fatalf("bodies[%d]: missing name", i)
		}
		b := orbital.NewBody(i+1, name, tomlFloat(m["mass"]), tomlVector(m["position"]), tomlVector(m["velocity"]), tomlFloat(m["radius"]))
		b.Central, _ = m["central"].(bool)
		if verbose {
			log.Printf("[conf] body %s: mass=%g radius=%g central=%v", name, b.Mass, b.Radius, b.Central)
		}
		list = append(list, b)
	}
	return list
}

func trackedBody(bodies []*orbital.Body) *orbital.Body {
	name := viper.GetString("mission.track")
	for _, b := range bodies {
		if b.Name == name {
			return b
		}
	}
	// Default to the first non-central body.
	for _, b := range bodies {
		if !b.Central {
			return b
		}
	}
	return bodies[0]
}

func tomlFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	}
	return 0
}

func tomlVector(v interface{}) []float64 {
	raw, ok := v.([]interface{})
	if !ok || len(raw) != 3 {
		return nil
	}
	return []float64{tomlFloat(raw[0]), tomlFloat(raw[1]), tomlFloat(raw[2])}
}
