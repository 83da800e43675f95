package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/voxloom/pkg/config"
	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/chazu/voxloom/pkg/session"
	"github.com/chazu/voxloom/pkg/voxelize"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point or direction.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSolid wraps a kernel solid so it can flow between the CSG builtins
// and voxelize.
type sexpSolid struct {
	solid kernel.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return "(" + s.desc + ")"
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// A trailing keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer. Floats are accepted when they are whole.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) {
			return int(v.Val), nil
		}
		return 0, fmt.Errorf("expected integer, got %g", v.Val)
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_xz) and plain strings ("xz").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toVec3 extracts a vector from a sexpVec3.
func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toSolid extracts a kernel solid from a sexpSolid.
func toSolid(s zygo.Sexp) (*sexpSolid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toCell reads three integer coordinates.
func toCell(args []zygo.Sexp) (grid.Cell, error) {
	if len(args) != 3 {
		return grid.Cell{}, fmt.Errorf("expected 3 coordinates, got %d", len(args))
	}
	var xyz [3]int
	for i, a := range args {
		v, err := toInt(a)
		if err != nil {
			return grid.Cell{}, fmt.Errorf("coordinate %d: %w", i, err)
		}
		xyz[i] = v
	}
	return grid.Cell{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func intSexp(n int) zygo.Sexp { return &zygo.SexpInt{Val: int64(n)} }

// builtinFunc is the signature zygomys expects from AddFunction.
type builtinFunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// recorder keeps the first error returned by a builtin.
type recorder struct {
	err error
}

func (r *recorder) wrap(fn builtinFunc) builtinFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		out, err := fn(env, name, args)
		if err != nil && r.err == nil {
			r.err = err
		}
		return out, err
	}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the voxloom builtins into a zygomys
// environment. Editing builtins act on sess; solid builtins build kernel
// solids with k.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
//
// The first builtin failure is kept in the returned recorder so callers
// can report it verbatim instead of zygomys' wrapped form.
func registerBuiltins(env *zygo.Zlisp, sess *session.Session, k kernel.Kernel) *recorder {
	rec := &recorder{}
	add := func(name string, fn builtinFunc) {
		env.AddFunction(name, rec.wrap(fn))
	}

	// apply edits a copy of the session settings and applies it.
	apply := func(fn string, edit func(*config.Settings) error) (zygo.Sexp, error) {
		cfg := sess.Settings()
		if err := edit(&cfg); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
		}
		if _, err := sess.ApplySettings(cfg); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
		}
		return zygo.SexpNull, nil
	}

	// -----------------------------------------------------------------------
	// (grid :x 8 :y 8 :z 8 :orientation :xz :layer 2 :snap :truncate)
	// -----------------------------------------------------------------------
	add("grid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		return apply("grid", func(cfg *config.Settings) error {
			fields := []struct {
				kw  string
				dst *int
			}{{"x", &cfg.DimX}, {"y", &cfg.DimY}, {"z", &cfg.DimZ}, {"layer", &cfg.CurrentLayer}}
			for _, f := range fields {
				if v, ok := pa.kw[f.kw]; ok {
					n, err := toInt(v)
					if err != nil {
						return fmt.Errorf("%s: %w", f.kw, err)
					}
					*f.dst = n
				}
			}
			if v, ok := pa.kw["orientation"]; ok {
				s, err := toKeywordString(v)
				if err != nil {
					return fmt.Errorf("orientation: %w", err)
				}
				cfg.Orientation = strings.ToUpper(s)
			}
			if v, ok := pa.kw["snap"]; ok {
				s, err := toKeywordString(v)
				if err != nil {
					return fmt.Errorf("snap: %w", err)
				}
				cfg.Snap = s
			}
			return nil
		})
	})

	// -----------------------------------------------------------------------
	// (layer 3)
	// -----------------------------------------------------------------------
	add("layer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("layer requires exactly 1 argument, got %d", len(args))
		}
		return apply("layer", func(cfg *config.Settings) error {
			n, err := toInt(args[0])
			if err != nil {
				return err
			}
			cfg.CurrentLayer = n
			return nil
		})
	})

	// -----------------------------------------------------------------------
	// (brush :shape :circle :radius 2)
	// -----------------------------------------------------------------------
	add("brush", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		return apply("brush", func(cfg *config.Settings) error {
			if v, ok := pa.kw["shape"]; ok {
				s, err := toKeywordString(v)
				if err != nil {
					return fmt.Errorf("shape: %w", err)
				}
				cfg.ShapeMode = strings.ToUpper(s)
			}
			if v, ok := pa.kw["radius"]; ok {
				n, err := toInt(v)
				if err != nil {
					return fmt.Errorf("radius: %w", err)
				}
				cfg.BrushRadius = n
			}
			return nil
		})
	})

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	add("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (place origin direction) and (erase origin direction)
	// -----------------------------------------------------------------------
	rayTool := func(fn string, act func(origin, dir r3.Vec) int) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires an origin and a direction", fn)
			}
			origin, err := toVec3(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: origin: %w", fn, err)
			}
			dir, err := toVec3(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: direction: %w", fn, err)
			}
			return intSexp(act(origin, dir)), nil
		}
	}
	add("place", rayTool("place", sess.PlaceAt))
	add("erase", rayTool("erase", sess.EraseAt))

	// -----------------------------------------------------------------------
	// (place-cell 1 2 3) and (erase-cell 1 2 3)
	//
	// Registered with underscores; the preprocessor rewrites the hyphen.
	// -----------------------------------------------------------------------
	cellTool := func(fn string, act func(grid.Cell) bool) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			c, err := toCell(args)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			if act(c) {
				return intSexp(1), nil
			}
			return intSexp(0), nil
		}
	}
	add("place_cell", cellTool("place-cell", sess.PlaceVoxel))
	add("erase_cell", cellTool("erase-cell", sess.EraseVoxel))

	// -----------------------------------------------------------------------
	// (count) and (clear)
	// -----------------------------------------------------------------------
	add("count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return intSexp(sess.Len()), nil
	})
	add("clear", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return intSexp(sess.Clear()), nil
	})

	// -----------------------------------------------------------------------
	// (box 3 2 1), (sphere 2.5), (cylinder :height 4 :radius 1)
	// -----------------------------------------------------------------------
	add("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("box requires exactly 3 sizes, got %d", len(args))
		}
		var size [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: %c: %w", "xyz"[i], err)
			}
			if f <= 0 {
				return zygo.SexpNull, fmt.Errorf("box: %c must be > 0, got %g", "xyz"[i], f)
			}
			size[i] = f
		}
		return &sexpSolid{
			solid: k.Box(size[0], size[1], size[2]),
			desc:  fmt.Sprintf("box %g %g %g", size[0], size[1], size[2]),
		}, nil
	})

	add("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("sphere requires exactly 1 radius, got %d", len(args))
		}
		r, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		if r <= 0 {
			return zygo.SexpNull, fmt.Errorf("sphere: radius must be > 0, got %g", r)
		}
		return &sexpSolid{solid: k.Sphere(r), desc: fmt.Sprintf("sphere %g", r)}, nil
	})

	add("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var height, radius float64
		fields := []struct {
			kw  string
			dst *float64
		}{{"height", &height}, {"radius", &radius}}
		for _, fd := range fields {
			kw, dst := fd.kw, fd.dst
			v, ok := pa.kw[kw]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("cylinder: missing :%s", kw)
			}
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: %s: %w", kw, err)
			}
			if f <= 0 {
				return zygo.SexpNull, fmt.Errorf("cylinder: %s must be > 0, got %g", kw, f)
			}
			*dst = f
		}
		return &sexpSolid{
			solid: k.Cylinder(height, radius),
			desc:  fmt.Sprintf("cylinder :height %g :radius %g", height, radius),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...), (difference a b ...), (intersection a b ...)
	// -----------------------------------------------------------------------
	boolean := func(fn string, op func(a, b kernel.Solid) kernel.Solid) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 solids, got %d", fn, len(args))
			}
			first, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: operand 0: %w", fn, err)
			}
			acc := first.solid
			for i := 1; i < len(args); i++ {
				s, err := toSolid(args[i])
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", fn, i, err)
				}
				acc = op(acc, s.solid)
			}
			return &sexpSolid{solid: acc, desc: fmt.Sprintf("%s of %d", fn, len(args))}, nil
		}
	}
	add("union", boolean("union", k.Union))
	add("difference", boolean("difference", k.Difference))
	add("intersection", boolean("intersection", k.Intersection))

	// -----------------------------------------------------------------------
	// (translate solid (vec3 2 2 2)) and (rotate solid (vec3 0 0 90))
	// -----------------------------------------------------------------------
	transform := func(fn string, op func(s kernel.Solid, x, y, z float64) kernel.Solid) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires a solid and a vec3", fn)
			}
			s, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			v, err := toVec3(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			return &sexpSolid{
				solid: op(s.solid, v.X, v.Y, v.Z),
				desc:  fmt.Sprintf("%s %s %g %g %g", fn, s.desc, v.X, v.Y, v.Z),
			}, nil
		}
	}
	add("translate", transform("translate", k.Translate))
	add("rotate", transform("rotate", k.Rotate))

	// -----------------------------------------------------------------------
	// (voxelize solid :threshold 0.6)
	// -----------------------------------------------------------------------
	add("voxelize", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("voxelize requires exactly 1 solid")
		}
		s, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("voxelize: %w", err)
		}
		cfg := sess.Settings().Voxelize()
		if v, ok := pa.kw["threshold"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("voxelize: threshold: %w", err)
			}
			cfg.Threshold = f
		}
		mesh, err := k.ToMesh(s.solid)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("voxelize: %w", err)
		}
		surf, err := voxelize.FromMesh(mesh)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("voxelize: %w", err)
		}
		n, err := voxelize.Voxelize(surf, sess.Spec(), cfg, sess)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("voxelize: %w", err)
		}
		return intSexp(n), nil
	})

	return rec
}
