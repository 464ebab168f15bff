package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical simulation defaults file.
const DefaultConfigPath = "config/simulation.defaults.json"

// TuningConfig represents the root configuration for simulation tuning
// parameters. Every field is optional; the Get* accessors fall back to the
// built-in defaults so a partial JSON file only overrides what it names.
type TuningConfig struct {
	// Floor plane
	PlaneWidth  *float64 `json:"plane_width,omitempty"`
	PlaneHeight *float64 `json:"plane_height,omitempty"`
	PlaneMargin *float64 `json:"plane_margin,omitempty"`

	// Pathfinding and doors
	GridSize       *float64 `json:"grid_size,omitempty"`
	DoorMargin     *float64 `json:"door_margin,omitempty"`
	SlideDistance  *float64 `json:"slide_distance,omitempty"`
	WaypointRadius *float64 `json:"waypoint_radius,omitempty"`

	// Egress and assembly
	ExitArrivalRadius *float64 `json:"exit_arrival_radius,omitempty"`
	AssemblyEnabled   *bool    `json:"assembly_enabled,omitempty"`
	AssemblyX         *float64 `json:"assembly_x,omitempty"`
	AssemblyY         *float64 `json:"assembly_y,omitempty"`
	AssemblyRadius    *float64 `json:"assembly_radius,omitempty"`
	AssemblySpeed     *float64 `json:"assembly_speed,omitempty"`

	// Motion model
	BaseSpeed             *float64 `json:"base_speed,omitempty"`
	PanicSpeedGain        *float64 `json:"panic_speed_gain,omitempty"`
	RepulsionRadius       *float64 `json:"repulsion_radius,omitempty"`
	RepulsionStrength     *float64 `json:"repulsion_strength,omitempty"`
	CrowdRadius           *float64 `json:"crowd_radius,omitempty"`
	CrowdMinNeighbors     *int     `json:"crowd_min_neighbors,omitempty"`
	CrowdDriftFactor      *float64 `json:"crowd_drift_factor,omitempty"`
	WallRepulsionRadius   *float64 `json:"wall_repulsion_radius,omitempty"`
	WallRepulsionStrength *float64 `json:"wall_repulsion_strength,omitempty"`
	VelocityRetention     *float64 `json:"velocity_retention,omitempty"`
	ForceGain             *float64 `json:"force_gain,omitempty"`
	MaxSpeedFactor        *float64 `json:"max_speed_factor,omitempty"`

	// Clock
	FrameStepSeconds *float64 `json:"frame_step_seconds,omitempty"`
	SimSpeed         *float64 `json:"sim_speed,omitempty"`
	FrameInterval    *string  `json:"frame_interval,omitempty"` // duration string like "16ms"
	MaxSimSeconds    *float64 `json:"max_sim_seconds,omitempty"`
	TrailSampleTicks *int     `json:"trail_sample_ticks,omitempty"`
	Seed             *uint64  `json:"seed,omitempty"`

	// Heatmap and bottlenecks
	HeatmapRows         *int     `json:"heatmap_rows,omitempty"`
	HeatmapCols         *int     `json:"heatmap_cols,omitempty"`
	HeatmapCellSize     *float64 `json:"heatmap_cell_size,omitempty"`
	HeatmapDecay        *float64 `json:"heatmap_decay,omitempty"`
	BottleneckThreshold *float64 `json:"bottleneck_threshold,omitempty"`
	BottleneckTopN      *int     `json:"bottleneck_top_n,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil, so
// every accessor yields its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for binaries and test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/evacsim/ subpackages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"plane_width", c.PlaneWidth},
		{"plane_height", c.PlaneHeight},
		{"grid_size", c.GridSize},
		{"heatmap_cell_size", c.HeatmapCellSize},
		{"frame_step_seconds", c.FrameStepSeconds},
		{"max_sim_seconds", c.MaxSimSeconds},
		{"exit_arrival_radius", c.ExitArrivalRadius},
		{"assembly_radius", c.AssemblyRadius},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"plane_margin", c.PlaneMargin},
		{"door_margin", c.DoorMargin},
		{"slide_distance", c.SlideDistance},
		{"waypoint_radius", c.WaypointRadius},
		{"assembly_speed", c.AssemblySpeed},
		{"base_speed", c.BaseSpeed},
		{"panic_speed_gain", c.PanicSpeedGain},
		{"repulsion_radius", c.RepulsionRadius},
		{"repulsion_strength", c.RepulsionStrength},
		{"crowd_radius", c.CrowdRadius},
		{"crowd_drift_factor", c.CrowdDriftFactor},
		{"wall_repulsion_radius", c.WallRepulsionRadius},
		{"wall_repulsion_strength", c.WallRepulsionStrength},
		{"bottleneck_threshold", c.BottleneckThreshold},
		{"max_speed_factor", c.MaxSpeedFactor},
	}
	for _, p := range nonNegative {
		if p.v != nil && *p.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", p.name, *p.v)
		}
	}

	unit := []struct {
		name string
		v    *float64
	}{
		{"velocity_retention", c.VelocityRetention},
		{"force_gain", c.ForceGain},
		{"heatmap_decay", c.HeatmapDecay},
	}
	for _, p := range unit {
		if p.v != nil && (*p.v < 0 || *p.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", p.name, *p.v)
		}
	}

	if c.SimSpeed != nil && (*c.SimSpeed < MinSimSpeed || *c.SimSpeed > MaxSimSpeed) {
		return fmt.Errorf("sim_speed must be between %g and %g, got %f", MinSimSpeed, MaxSimSpeed, *c.SimSpeed)
	}

	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %v", d)
		}
	}

	ints := []struct {
		name string
		v    *int
		min  int
	}{
		{"crowd_min_neighbors", c.CrowdMinNeighbors, 0},
		{"trail_sample_ticks", c.TrailSampleTicks, 0},
		{"heatmap_rows", c.HeatmapRows, 1},
		{"heatmap_cols", c.HeatmapCols, 1},
		{"bottleneck_top_n", c.BottleneckTopN, 0},
	}
	for _, p := range ints {
		if p.v != nil && *p.v < p.min {
			return fmt.Errorf("%s must be at least %d, got %d", p.name, p.min, *p.v)
		}
	}

	return nil
}

// Simulation speed multiplier bounds.
const (
	MinSimSpeed = 0.5
	MaxSimSpeed = 5.0
)

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// GetPlaneWidth returns the plane_width value or the default.
func (c *TuningConfig) GetPlaneWidth() float64 { return getFloat(c.PlaneWidth, 1000) }

// GetPlaneHeight returns the plane_height value or the default.
func (c *TuningConfig) GetPlaneHeight() float64 { return getFloat(c.PlaneHeight, 700) }

// GetPlaneMargin returns the plane_margin value or the default.
func (c *TuningConfig) GetPlaneMargin() float64 { return getFloat(c.PlaneMargin, 10) }

// GetGridSize returns the grid_size value or the default.
func (c *TuningConfig) GetGridSize() float64 { return getFloat(c.GridSize, 20) }

// GetDoorMargin returns the door_margin value or the default.
func (c *TuningConfig) GetDoorMargin() float64 { return getFloat(c.DoorMargin, 40) }

// GetSlideDistance returns the slide_distance value or the default.
func (c *TuningConfig) GetSlideDistance() float64 { return getFloat(c.SlideDistance, 10) }

// GetWaypointRadius returns the waypoint_radius value or the default.
func (c *TuningConfig) GetWaypointRadius() float64 { return getFloat(c.WaypointRadius, 25) }

// GetExitArrivalRadius returns the exit_arrival_radius value or the default.
func (c *TuningConfig) GetExitArrivalRadius() float64 { return getFloat(c.ExitArrivalRadius, 20) }

// GetAssemblyEnabled returns the assembly_enabled value or the default.
func (c *TuningConfig) GetAssemblyEnabled() bool {
	if c.AssemblyEnabled == nil {
		return true
	}
	return *c.AssemblyEnabled
}

// GetAssemblyX returns the assembly_x value or the default.
func (c *TuningConfig) GetAssemblyX() float64 { return getFloat(c.AssemblyX, 500) }

// GetAssemblyY returns the assembly_y value or the default.
func (c *TuningConfig) GetAssemblyY() float64 { return getFloat(c.AssemblyY, 15) }

// GetAssemblyRadius returns the assembly_radius value or the default.
func (c *TuningConfig) GetAssemblyRadius() float64 { return getFloat(c.AssemblyRadius, 20) }

// GetAssemblySpeed returns the assembly_speed value or the default
// (units per tick at 1x speed).
func (c *TuningConfig) GetAssemblySpeed() float64 { return getFloat(c.AssemblySpeed, 3) }

// GetBaseSpeed returns the base_speed value or the default
// (units per tick for a fully mobile person at 1x speed).
func (c *TuningConfig) GetBaseSpeed() float64 { return getFloat(c.BaseSpeed, 2) }

// GetPanicSpeedGain returns the panic_speed_gain value or the default.
func (c *TuningConfig) GetPanicSpeedGain() float64 { return getFloat(c.PanicSpeedGain, 0.5) }

// GetRepulsionRadius returns the repulsion_radius value or the default.
func (c *TuningConfig) GetRepulsionRadius() float64 { return getFloat(c.RepulsionRadius, 30) }

// GetRepulsionStrength returns the repulsion_strength value or the default.
func (c *TuningConfig) GetRepulsionStrength() float64 { return getFloat(c.RepulsionStrength, 50) }

// GetCrowdRadius returns the crowd_radius value or the default.
func (c *TuningConfig) GetCrowdRadius() float64 { return getFloat(c.CrowdRadius, 80) }

// GetCrowdMinNeighbors returns the crowd_min_neighbors value or the default.
// Drift applies when the neighbour count is strictly greater than this.
func (c *TuningConfig) GetCrowdMinNeighbors() int { return getInt(c.CrowdMinNeighbors, 3) }

// GetCrowdDriftFactor returns the crowd_drift_factor value or the default.
func (c *TuningConfig) GetCrowdDriftFactor() float64 { return getFloat(c.CrowdDriftFactor, 0.1) }

// GetWallRepulsionRadius returns the wall_repulsion_radius value or the default.
func (c *TuningConfig) GetWallRepulsionRadius() float64 {
	return getFloat(c.WallRepulsionRadius, 20)
}

// GetWallRepulsionStrength returns the wall_repulsion_strength value or the default.
func (c *TuningConfig) GetWallRepulsionStrength() float64 {
	return getFloat(c.WallRepulsionStrength, 100)
}

// GetVelocityRetention returns the velocity_retention value or the default.
func (c *TuningConfig) GetVelocityRetention() float64 { return getFloat(c.VelocityRetention, 0.8) }

// GetForceGain returns the force_gain value or the default.
func (c *TuningConfig) GetForceGain() float64 { return getFloat(c.ForceGain, 0.2) }

// GetMaxSpeedFactor returns the max_speed_factor value or the default: an
// agent never moves faster than this multiple of its desired speed.
func (c *TuningConfig) GetMaxSpeedFactor() float64 { return getFloat(c.MaxSpeedFactor, 2) }

// GetFrameStepSeconds returns the frame_step_seconds value or the default.
func (c *TuningConfig) GetFrameStepSeconds() float64 { return getFloat(c.FrameStepSeconds, 0.016) }

// GetSimSpeed returns the sim_speed value or the default.
func (c *TuningConfig) GetSimSpeed() float64 { return getFloat(c.SimSpeed, 1) }

// GetFrameInterval parses and returns the FrameInterval as a time.Duration.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return 16 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return 16 * time.Millisecond // default on parse error
	}
	return d
}

// GetMaxSimSeconds returns the max_sim_seconds value or the default.
func (c *TuningConfig) GetMaxSimSeconds() float64 { return getFloat(c.MaxSimSeconds, 600) }

// GetTrailSampleTicks returns the trail_sample_ticks value or the default.
// Zero disables trail recording.
func (c *TuningConfig) GetTrailSampleTicks() int { return getInt(c.TrailSampleTicks, 10) }

// GetSeed returns the seed value or the default.
func (c *TuningConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetHeatmapRows returns the heatmap_rows value or the default.
func (c *TuningConfig) GetHeatmapRows() int { return getInt(c.HeatmapRows, 35) }

// GetHeatmapCols returns the heatmap_cols value or the default.
func (c *TuningConfig) GetHeatmapCols() int { return getInt(c.HeatmapCols, 50) }

// GetHeatmapCellSize returns the heatmap_cell_size value or the default.
func (c *TuningConfig) GetHeatmapCellSize() float64 { return getFloat(c.HeatmapCellSize, 20) }

// GetHeatmapDecay returns the heatmap_decay value or the default.
func (c *TuningConfig) GetHeatmapDecay() float64 { return getFloat(c.HeatmapDecay, 0.95) }

// GetBottleneckThreshold returns the bottleneck_threshold value or the default.
func (c *TuningConfig) GetBottleneckThreshold() float64 {
	return getFloat(c.BottleneckThreshold, 50)
}

// GetBottleneckTopN returns the bottleneck_top_n value or the default.
func (c *TuningConfig) GetBottleneckTopN() int { return getInt(c.BottleneckTopN, 5) }
