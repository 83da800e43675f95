// Command voxtool runs voxloom scripts and converts snapshots without the
// desktop editor.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/voxloom/pkg/config"
	"github.com/chazu/voxloom/pkg/engine"
	"github.com/chazu/voxloom/pkg/export"
	"github.com/chazu/voxloom/pkg/kernel/sdfx"
	"github.com/chazu/voxloom/pkg/logging"
	"github.com/chazu/voxloom/pkg/session"
	"github.com/chazu/voxloom/pkg/snapshot"
	"github.com/chazu/voxloom/pkg/tessellate"
	"github.com/chazu/voxloom/pkg/voxel"
	"github.com/chazu/voxloom/pkg/voxelize"
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: voxtool <command> [args]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run script.vox output.(glb|vxlm) [settings.json]   (evaluate a script and save the result)")
	fmt.Fprintln(w, "  voxelize-sphere <radius> <dim> <threshold> output.glb  (voxelize a centred sphere)")
	fmt.Fprintln(w, "  info input.vxlm                                      (print snapshot header and cell count)")
	fmt.Fprintln(w, "  vxlm2glb input.vxlm output.glb                       (mesh a snapshot's surface to .glb)")
}

func main() {
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	switch args[0] {
	case "run":
		if len(args) != 3 && len(args) != 4 {
			return errUsage
		}
		settings := config.Default()
		if len(args) == 4 {
			s, err := config.Load(args[3])
			if err != nil {
				return err
			}
			settings = s
		}
		return runScript(args[1], args[2], settings, out)
	case "voxelize-sphere":
		if len(args) != 5 {
			return errUsage
		}
		radius, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("radius: %w", err)
		}
		dim, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("dim: %w", err)
		}
		threshold, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("threshold: %w", err)
		}
		return voxelizeSphere(radius, dim, threshold, args[4], out)
	case "info":
		if len(args) != 2 {
			return errUsage
		}
		return info(args[1], out)
	case "vxlm2glb":
		if len(args) != 3 {
			return errUsage
		}
		snap, err := snapshot.Load(args[1])
		if err != nil {
			return err
		}
		store := voxel.NewStore()
		snap.Restore(store)
		return writeGLB(store, args[2], out)
	}
	return errUsage
}

func runScript(script, output string, settings config.Settings, out io.Writer) error {
	src, err := os.ReadFile(script)
	if err != nil {
		return err
	}
	res, evalErrs, err := engine.NewEngineWithSettings(settings).Evaluate(string(src))
	if err != nil {
		return err
	}
	if len(evalErrs) > 0 {
		msgs := make([]string, len(evalErrs))
		for i, e := range evalErrs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("%s: %s", script, strings.Join(msgs, "; "))
	}
	fmt.Fprintf(out, "%s: %d voxels\n", script, res.Count())
	return save(res.Session, output, out)
}

func voxelizeSphere(radius float64, dim int, threshold float64, output string, out io.Writer) error {
	if radius <= 0 {
		return fmt.Errorf("voxelize-sphere: radius must be > 0, got %g", radius)
	}
	settings := config.Default()
	settings.DimX, settings.DimY, settings.DimZ = dim, dim, dim
	settings.VoxelizeThreshold = threshold
	sess, err := session.New(settings, nil)
	if err != nil {
		return err
	}
	k := sdfx.New()
	c := float64(dim) / 2
	mesh, err := k.ToMesh(k.Translate(k.Sphere(radius), c, c, c))
	if err != nil {
		return err
	}
	surf, err := voxelize.FromMesh(mesh)
	if err != nil {
		return err
	}
	n, err := sess.Voxelize(surf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "sphere r=%g on %d^3: %d voxels\n", radius, dim, n)
	return save(sess, output, out)
}

func save(sess *session.Session, output string, out io.Writer) error {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".vxlm":
		if err := snapshot.Save(output, sess.Capture()); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", output)
		return nil
	case ".glb":
		return writeGLB(sess.Store(), output, out)
	}
	return fmt.Errorf("unsupported output %q, expected .glb or .vxlm", output)
}

func writeGLB(store *voxel.Store, output string, out io.Writer) error {
	m := tessellate.SurfaceMesh(store)
	if err := export.WriteGLB(m, output); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d triangles)\n", output, m.TriangleCount())
	return nil
}

func info(path string, out io.Writer) error {
	snap, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	s := snap.Spec
	fmt.Fprintf(out, "grid:        %dx%dx%d\n", s.DimX, s.DimY, s.DimZ)
	fmt.Fprintf(out, "orientation: %s\n", s.Orientation)
	fmt.Fprintf(out, "layer:       %d\n", s.Layer)
	fmt.Fprintf(out, "cells:       %d\n", len(snap.Cells))
	return nil
}
