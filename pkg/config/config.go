// Package config holds the user-facing editor settings and loads them
// from JSON files. Comments and trailing commas are accepted.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/chazu/voxloom/pkg/brush"
	"github.com/chazu/voxloom/pkg/consolidate"
	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/ray"
	"github.com/chazu/voxloom/pkg/voxelize"
	"github.com/tailscale/hujson"
)

// maxFileSize caps settings files at 1 MiB.
const maxFileSize = 1 << 20

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid settings")

// Settings is the editor configuration document. Orientation is XY, XZ
// or YZ; ShapeMode is SINGLE, SQUARE or CIRCLE; Snap is floor or
// truncate.
type Settings struct {
	DimX              int     `json:"dim_x"`
	DimY              int     `json:"dim_y"`
	DimZ              int     `json:"dim_z"`
	Orientation       string  `json:"orientation"`
	CurrentLayer      int     `json:"current_layer"`
	ShowGrid          bool    `json:"show_grid"`
	ShapeMode         string  `json:"shape_mode"`
	BrushRadius       int     `json:"brush_radius"`
	VoxelizeThreshold float64 `json:"voxelize_threshold"`
	MergeDistance     float64 `json:"merge_distance"`
	Snap              string  `json:"snap"`
}

// Default returns the settings a fresh editor starts with.
func Default() Settings {
	return Settings{
		DimX:              5,
		DimY:              5,
		DimZ:              5,
		Orientation:       grid.XY.String(),
		CurrentLayer:      0,
		ShowGrid:          false,
		ShapeMode:         brush.Single.String(),
		BrushRadius:       brush.MinRadius,
		VoxelizeThreshold: voxelize.DefaultThreshold,
		MergeDistance:     consolidate.DefaultMergeDistance,
		Snap:              ray.SnapFloor.String(),
	}
}

// Load reads settings from a .json or .hujson file. Fields missing from
// the file keep their Default values.
func Load(path string) (Settings, error) {
	cleanPath := filepath.Clean(path)
	if err := checkExt(cleanPath); err != nil {
		return Settings{}, err
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to stat settings file: %w", err)
	}
	if info.Size() > maxFileSize {
		return Settings{}, fmt.Errorf("settings file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

func checkExt(path string) error {
	if ext := filepath.Ext(path); ext != ".json" && ext != ".hujson" {
		return fmt.Errorf("settings file must have .json or .hujson extension, got %q", ext)
	}
	return nil
}

// Parse decodes a settings document over Default and validates it.
func Parse(data []byte) (Settings, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	s := Default()
	if err := json.Unmarshal(std, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes s as indented JSON to a .json or .hujson file.
func (s Settings) Save(path string) error {
	if err := checkExt(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate checks every field. The current layer may sit past the end of
// its axis; placement is then a no-op and the layer outline is hidden.
func (s Settings) Validate() error {
	g, err := s.Grid()
	if err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	b, err := s.Brush()
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.Voxelize().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if math.IsNaN(s.MergeDistance) || s.MergeDistance < 0 {
		return fmt.Errorf("%w: merge_distance must be >= 0, got %v", ErrInvalid, s.MergeDistance)
	}
	if _, err := s.Snapping(); err != nil {
		return err
	}
	return nil
}

// Grid returns the grid spec described by s.
func (s Settings) Grid() (grid.Spec, error) {
	o, err := grid.ParseOrientation(s.Orientation)
	if err != nil {
		return grid.Spec{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return grid.Spec{
		DimX:        s.DimX,
		DimY:        s.DimY,
		DimZ:        s.DimZ,
		Orientation: o,
		Layer:       s.CurrentLayer,
	}, nil
}

// Brush returns the brush configuration described by s.
func (s Settings) Brush() (brush.Config, error) {
	shape, err := brush.ParseShape(s.ShapeMode)
	if err != nil {
		return brush.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return brush.Config{Shape: shape, Radius: s.BrushRadius}, nil
}

// Voxelize returns the voxelizer configuration described by s.
func (s Settings) Voxelize() voxelize.Config {
	return voxelize.Config{Threshold: s.VoxelizeThreshold}
}

// Snapping returns the projector described by s.
func (s Settings) Snapping() (ray.Projector, error) {
	switch s.Snap {
	case "", "floor":
		return ray.Projector{Snap: ray.SnapFloor}, nil
	case "truncate":
		return ray.Projector{Snap: ray.SnapTruncate}, nil
	}
	return ray.Projector{}, fmt.Errorf("%w: snap must be floor or truncate, got %q", ErrInvalid, s.Snap)
}
