package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/chazu/voxloom/pkg/kernel"
)

// ---------------------------------------------------------------------------
// Empty and comment-only sources
// ---------------------------------------------------------------------------

func TestE2EEmptySourceSerialisesEmptySlices(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("")

	// JSON should carry [] rather than null for the frontend.
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"errors":[]`, `"vertices":[]`, `"indices":[]`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %s in %s", want, data)
		}
	}
}

func TestE2ECommentsOnly(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"double semicolon", ";; nothing here\n;; or here"},
		{"single semicolon", "; a comment"},
		{"comments with whitespace", "\n\n  ; indented\n\t;; tabbed\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewApp().Evaluate(tt.source)
			if len(result.Errors) != 0 {
				t.Errorf("expected no errors, got %v", result.Errors)
			}
			if result.Scene.Count != 0 {
				t.Errorf("expected 0 voxels, got %d", result.Scene.Count)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Error reporting
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("(place-cell 0 0 0)\n(place-cell 1 1")
	if len(result.Errors) == 0 {
		t.Fatal("expected at least one error")
	}
	if result.Errors[0].Message == "" {
		t.Error("error message should not be empty")
	}
	if result.Errors[0].Line > 0 && result.Errors[0].Line > 2 {
		t.Errorf("line %d is past the end of the source", result.Errors[0].Line)
	}
}

func TestE2EBuiltinErrorMessage(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("(grid :x 4)\n(brush :shape :triangle)")
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for unknown brush shape")
	}
	if !strings.Contains(result.Errors[0].Message, "brush") {
		t.Errorf("message = %q, want mention of brush", result.Errors[0].Message)
	}
	// The failed script must not leak its grid change.
	if got := app.Scene().Settings.DimX; got != 5 {
		t.Errorf("DimX = %d after failed script, want 5", got)
	}
}

// ---------------------------------------------------------------------------
// Rapid evaluation
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluation(t *testing.T) {
	// Simulates debounce: rapid sequential calls to Evaluate on the same
	// App. zygomys sandboxes share global state, so calls stay sequential.
	app := NewApp()

	sources := []string{
		`(place-cell 0 0 0)`,
		`(place-cell 1 1 1) (place-cell 2 2 2)`,
		`(+ 1 2)`,
		``,
		`(place-cell 0 0`,
		`(brush :shape :square :radius 1) (place (vec3 2.5 2.5 9) (vec3 0 0 -1))`,
		`(undefined-builtin)`,
		`(grid :x 3 :y 3 :z 3) (place-cell 2 2 2)`,
	}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked: %v", i, r)
				}
			}()
			_ = app.Evaluate(source)
		}()
	}

	// The last source succeeded, so its session is live.
	sc := app.Scene()
	if sc.Count != 1 || sc.Settings.DimX != 3 {
		t.Errorf("final scene = %d voxels on %d-wide grid, want 1 on 3", sc.Count, sc.Settings.DimX)
	}
}

func TestE2EEvaluateStartsFromActiveSettings(t *testing.T) {
	app := NewApp()
	s := app.Scene().Settings
	s.DimX = 12
	app.ApplySettings(s)

	result := app.Evaluate(`(place-cell 11 0 0)`)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Scene.Count != 1 {
		t.Errorf("expected the cell at x=11 on the widened grid, got %d voxels", result.Scene.Count)
	}
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func TestColorPaletteWrapping(t *testing.T) {
	m := kernel.UnitCube()
	for i := 0; i < 2*len(colorPalette); i++ {
		md := toMeshData(m, i)
		if md.Color != colorPalette[i%len(colorPalette)] {
			t.Errorf("mesh %d color = %q, want %q", i, md.Color, colorPalette[i%len(colorPalette)])
		}
		if md.Name != "VoxelBase" {
			t.Errorf("mesh %d name = %q", i, md.Name)
		}
	}
	if md := toMeshData(nil, 0); md.Vertices == nil || md.Indices == nil || md.Normals == nil {
		t.Error("nil mesh should convert to empty, non-nil slices")
	}
}

func TestFrameDataHidesOutOfRangeLayer(t *testing.T) {
	app := NewApp()
	s := app.Scene().Settings
	s.CurrentLayer = 7
	s.ShowGrid = true
	sc := app.ApplySettings(s)
	if sc.Error != "" {
		t.Fatalf("ApplySettings error: %s", sc.Error)
	}
	if sc.Frame.Layer != nil {
		t.Errorf("expected no layer box for out-of-range layer, got %+v", sc.Frame.Layer)
	}
	if sc.Frame.Master.Max != [3]float64{5, 5, 5} {
		t.Errorf("master box max = %v, want [5 5 5]", sc.Frame.Master.Max)
	}
}
