package sim

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/config"
	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/pathfind"
)

// MotionParams are the constants of the per-tick force model.
type MotionParams struct {
	BaseSpeed             float64 // units per tick at full mobility and 1x speed
	PanicSpeedGain        float64 // extra speed fraction at panic 100
	WaypointRadius        float64
	RepulsionRadius       float64
	RepulsionStrength     float64
	CrowdRadius           float64
	CrowdMinNeighbors     int // drift applies above this many neighbours
	CrowdDriftFactor      float64
	WallRepulsionRadius   float64
	WallRepulsionStrength float64
	VelocityRetention     float64
	ForceGain             float64
	MaxSpeedFactor        float64 // velocity cap as a multiple of desired speed, 0 disables
	SlideDistance         float64
	DoorMargin            float64
	Bounds                floorplan.Bounds
}

// Config holds everything a Controller needs beyond floors and people.
type Config struct {
	Motion   MotionParams
	Pathfind pathfind.Config

	ExitArrivalRadius float64

	AssemblyEnabled bool
	AssemblyPoint   r2.Vec
	AssemblyRadius  float64
	AssemblySpeed   float64

	FrameStepSeconds float64
	SimSpeed         float64
	FrameInterval    time.Duration
	MaxSimSeconds    float64
	TrailSampleTicks int
	Seed             uint64

	HeatmapRows         int
	HeatmapCols         int
	HeatmapCellSize     float64
	HeatmapDecay        float64
	BottleneckThreshold float64
	BottleneckTopN      int
}

// DefaultConfig returns the built-in simulation settings.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a simulation Config from tuning values.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	bounds := floorplan.Bounds{
		Width:  cfg.GetPlaneWidth(),
		Height: cfg.GetPlaneHeight(),
		Margin: cfg.GetPlaneMargin(),
	}
	return Config{
		Motion: MotionParams{
			BaseSpeed:             cfg.GetBaseSpeed(),
			PanicSpeedGain:        cfg.GetPanicSpeedGain(),
			WaypointRadius:        cfg.GetWaypointRadius(),
			RepulsionRadius:       cfg.GetRepulsionRadius(),
			RepulsionStrength:     cfg.GetRepulsionStrength(),
			CrowdRadius:           cfg.GetCrowdRadius(),
			CrowdMinNeighbors:     cfg.GetCrowdMinNeighbors(),
			CrowdDriftFactor:      cfg.GetCrowdDriftFactor(),
			WallRepulsionRadius:   cfg.GetWallRepulsionRadius(),
			WallRepulsionStrength: cfg.GetWallRepulsionStrength(),
			VelocityRetention:     cfg.GetVelocityRetention(),
			ForceGain:             cfg.GetForceGain(),
			MaxSpeedFactor:        cfg.GetMaxSpeedFactor(),
			SlideDistance:         cfg.GetSlideDistance(),
			DoorMargin:            cfg.GetDoorMargin(),
			Bounds:                bounds,
		},
		Pathfind:            pathfind.ConfigFromTuning(cfg),
		ExitArrivalRadius:   cfg.GetExitArrivalRadius(),
		AssemblyEnabled:     cfg.GetAssemblyEnabled(),
		AssemblyPoint:       r2.Vec{X: cfg.GetAssemblyX(), Y: cfg.GetAssemblyY()},
		AssemblyRadius:      cfg.GetAssemblyRadius(),
		AssemblySpeed:       cfg.GetAssemblySpeed(),
		FrameStepSeconds:    cfg.GetFrameStepSeconds(),
		SimSpeed:            cfg.GetSimSpeed(),
		FrameInterval:       cfg.GetFrameInterval(),
		MaxSimSeconds:       cfg.GetMaxSimSeconds(),
		TrailSampleTicks:    cfg.GetTrailSampleTicks(),
		Seed:                cfg.GetSeed(),
		HeatmapRows:         cfg.GetHeatmapRows(),
		HeatmapCols:         cfg.GetHeatmapCols(),
		HeatmapCellSize:     cfg.GetHeatmapCellSize(),
		HeatmapDecay:        cfg.GetHeatmapDecay(),
		BottleneckThreshold: cfg.GetBottleneckThreshold(),
		BottleneckTopN:      cfg.GetBottleneckTopN(),
	}
}

// Validate rejects settings that would stall or corrupt a run.
func (c Config) Validate() error {
	if c.FrameStepSeconds <= 0 {
		return fmt.Errorf("frame step must be positive, got %f", c.FrameStepSeconds)
	}
	if c.MaxSimSeconds <= 0 {
		return fmt.Errorf("max sim seconds must be positive, got %f", c.MaxSimSeconds)
	}
	if c.HeatmapRows < 1 || c.HeatmapCols < 1 || c.HeatmapCellSize <= 0 {
		return fmt.Errorf("invalid heatmap geometry %dx%d cell %f", c.HeatmapRows, c.HeatmapCols, c.HeatmapCellSize)
	}
	if c.Pathfind.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %f", c.Pathfind.GridSize)
	}
	if c.ExitArrivalRadius <= 0 {
		return fmt.Errorf("exit arrival radius must be positive, got %f", c.ExitArrivalRadius)
	}
	return nil
}

// ClampSpeed limits a speed multiplier to the supported range.
func ClampSpeed(s float64) float64 {
	if s < config.MinSimSpeed {
		return config.MinSimSpeed
	}
	if s > config.MaxSimSpeed {
		return config.MaxSimSpeed
	}
	return s
}
