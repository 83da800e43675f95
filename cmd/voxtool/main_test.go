package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunUsage(t *testing.T) {
	tests := [][]string{
		nil,
		{"bogus"},
		{"run", "only-one"},
		{"info"},
		{"vxlm2glb", "a"},
		{"voxelize-sphere", "1", "2"},
	}
	for _, args := range tests {
		if err := run(args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Errorf("run(%q) = %v, want usage error", args, err)
		}
	}
}

func TestRunScriptToSnapshotAndBack(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "bar.vox")
	src := "(grid :x 6 :y 2 :z 2)\n(place-cell 0 0 0) (place-cell 1 0 0) (place-cell 2 0 0)\n"
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	snap := filepath.Join(dir, "bar.vxlm")

	var out bytes.Buffer
	if err := run([]string{"run", script, snap}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "3 voxels") {
		t.Errorf("output %q should report 3 voxels", out.String())
	}

	out.Reset()
	if err := run([]string{"info", snap}, &out); err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"6x2x2", "XY", "cells:       3"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info output %q missing %q", out.String(), want)
		}
	}

	glb := filepath.Join(dir, "bar.glb")
	out.Reset()
	if err := run([]string{"vxlm2glb", snap, glb}, &out); err != nil {
		t.Fatalf("vxlm2glb: %v", err)
	}
	// A 3x1x1 bar merges to 6 quads.
	if !strings.Contains(out.String(), "12 triangles") {
		t.Errorf("output %q should report 12 triangles", out.String())
	}
}

func TestRunScriptErrors(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "bad.vox")
	if err := os.WriteFile(script, []byte("(place-cell 0 0"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run([]string{"run", script, filepath.Join(dir, "out.glb")}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for broken script")
	}

	good := filepath.Join(dir, "good.vox")
	if err := os.WriteFile(good, []byte("(place-cell 0 0 0)"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run([]string{"run", good, filepath.Join(dir, "out.stl")}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unsupported output extension")
	}
}

func TestRunWithSettingsFile(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.hujson")
	// hujson allows comments and trailing commas.
	cfg := "{\n  // wide grid\n  \"dim_x\": 20,\n}\n"
	if err := os.WriteFile(settings, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "far.vox")
	if err := os.WriteFile(script, []byte("(place-cell 19 0 0)"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := run([]string{"run", script, filepath.Join(dir, "far.vxlm"), settings}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "1 voxels") {
		t.Errorf("output %q should report 1 voxel", out.String())
	}
}

func TestVoxelizeSphere(t *testing.T) {
	glb := filepath.Join(t.TempDir(), "sphere.glb")
	var out bytes.Buffer
	if err := run([]string{"voxelize-sphere", "3", "10", "0.5", glb}, &out); err != nil {
		t.Fatalf("voxelize-sphere: %v", err)
	}
	if strings.Contains(out.String(), ": 0 voxels") {
		t.Errorf("sphere produced no voxels: %q", out.String())
	}
	if st, err := os.Stat(glb); err != nil || st.Size() == 0 {
		t.Errorf("expected GLB at %s: %v", glb, err)
	}

	for _, radius := range []string{"x", "0", "-2"} {
		if err := run([]string{"voxelize-sphere", radius, "10", "0.5", glb}, &bytes.Buffer{}); err == nil {
			t.Errorf("radius %q: expected error", radius)
		}
	}
}
