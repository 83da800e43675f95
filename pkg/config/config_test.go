package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/voxloom/pkg/brush"
	"github.com/chazu/voxloom/pkg/consolidate"
	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/ray"
	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	g, _ := s.Grid()
	if want := (grid.Spec{DimX: 5, DimY: 5, DimZ: 5, Orientation: grid.XY}); g != want {
		t.Errorf("Grid() = %+v, want %+v", g, want)
	}
	b, _ := s.Brush()
	if b != (brush.Config{Shape: brush.Single, Radius: 1}) {
		t.Errorf("Brush() = %+v", b)
	}
	if s.Voxelize().Threshold != 0.5 || s.MergeDistance != consolidate.DefaultMergeDistance || s.ShowGrid {
		t.Errorf("unexpected defaults %+v", s)
	}
	p, _ := s.Snapping()
	if p.Snap != ray.SnapFloor {
		t.Errorf("Snapping() = %v, want floor", p.Snap)
	}
}

func TestLoadPartialWithComments(t *testing.T) {
	path := writeFile(t, "settings.hujson", `{
	// a tall thin grid
	"dim_z": 12,
	"orientation": "xz",
	"current_layer": 3,
	"shape_mode": "circle",
	"brush_radius": 4,
	"snap": "truncate",
}`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	want.DimZ = 12
	want.Orientation = "xz"
	want.CurrentLayer = 3
	want.ShapeMode = "circle"
	want.BrushRadius = 4
	want.Snap = "truncate"
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	g, _ := s.Grid()
	if g.Orientation != grid.XZ || g.DimZ != 12 {
		t.Errorf("Grid() = %+v", g)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantSub string
	}{
		{"extension", "settings.yaml", `{}`, "extension"},
		{"syntax", "bad.json", `{"dim_x": }`, "parse"},
		{"type", "bad.json", `{"dim_x": "five"}`, "parse"},
		{"zero dim", "bad.json", `{"dim_y": 0}`, "invalid"},
		{"radius", "bad.json", `{"shape_mode": "SQUARE", "brush_radius": 11}`, "invalid"},
		{"threshold", "bad.json", `{"voxelize_threshold": 10.5}`, "invalid"},
		{"orientation", "bad.json", `{"orientation": "XW"}`, "invalid"},
		{"merge", "bad.json", `{"merge_distance": -1}`, "invalid"},
		{"snap", "bad.json", `{"snap": "round"}`, "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadTooLarge(t *testing.T) {
	body := `{"dim_x": 5}` + strings.Repeat(" ", maxFileSize)
	if _, err := Load(writeFile(t, "big.json", body)); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Load() error = %v, want too large", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want ErrNotExist", err)
	}
}

func TestLayerPastEndIsValid(t *testing.T) {
	s := Default()
	s.CurrentLayer = 5
	if err := s.Validate(); err != nil {
		t.Errorf("layer past the end rejected: %v", err)
	}
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	s := Default()
	s.DimX = -1
	if err := s.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() error = %v, want ErrInvalid", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := Default()
	s.ShowGrid = true
	s.DimX = 9
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRejectsUnloadableExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"settings.txt", "settings", "settings.yaml"} {
		path := filepath.Join(dir, name)
		err := Default().Save(path)
		if err == nil || !strings.Contains(err.Error(), "extension") {
			t.Errorf("Save(%q) error = %v, want extension error", name, err)
		}
		if _, statErr := os.Stat(path); statErr == nil {
			t.Errorf("Save(%q) wrote a file", name)
		}
	}
	if err := Default().Save(filepath.Join(dir, "settings.hujson")); err != nil {
		t.Errorf("Save(.hujson) error = %v", err)
	}
}
