package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/chazu/voxloom/pkg/config"
	"github.com/chazu/voxloom/pkg/consolidate"
	"github.com/chazu/voxloom/pkg/engine"
	"github.com/chazu/voxloom/pkg/export"
	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/chazu/voxloom/pkg/session"
	"github.com/chazu/voxloom/pkg/snapshot"
	"github.com/chazu/voxloom/pkg/tessellate"
	"github.com/chazu/voxloom/pkg/voxelize"
	"gonum.org/v1/gonum/spatial/r3"
)

// colorPalette assigns colours to the meshes sent to the frontend.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the Wails backend. It exposes methods to the frontend via bindings.
// Bindings may be called concurrently; mu serialises access to the session.
type App struct {
	ctx    context.Context
	engine *engine.Engine

	mu     sync.Mutex
	sess   *session.Session
	sink   *tessellate.InstanceSink
	stroke *session.Stroke
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
}

// BoxData is an outline box in world units.
type BoxData struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// FrameData is the grid outline. Layer is nil when the current layer is
// out of range.
type FrameData struct {
	Visible bool     `json:"visible"`
	Master  BoxData  `json:"master"`
	Layer   *BoxData `json:"layer"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// SceneData is the editor state the frontend renders.
type SceneData struct {
	Settings    config.Settings `json:"settings"`
	Frame       FrameData       `json:"frame"`
	Count       int             `json:"count"`
	Fingerprint string          `json:"fingerprint"`
	Surface     MeshData        `json:"surface"`
	Error       string          `json:"error,omitempty"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	Scene  SceneData       `json:"scene"`
	Errors []EvalErrorData `json:"errors"`
}

// RayData is a pick ray in world space.
type RayData struct {
	Origin    [3]float64 `json:"origin"`
	Direction [3]float64 `json:"direction"`
}

// StrokeResult reports a pointer event.
type StrokeResult struct {
	State   string `json:"state"`
	Changed int    `json:"changed"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// Report is the outcome of a one-shot operation. Severity is INFO,
// WARNING or ERROR.
type Report struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Count    int       `json:"count"`
	Mesh     *MeshData `json:"mesh,omitempty"`
}

// NewApp creates an App with the default settings.
func NewApp() *App {
	a, err := NewAppWithSettings(config.Default())
	if err != nil {
		// config.Default is always valid.
		panic(err)
	}
	return a
}

// NewAppWithSettings creates an App whose session starts from s.
func NewAppWithSettings(s config.Settings) (*App, error) {
	sink := tessellate.NewInstanceSink()
	sess, err := session.New(s, sink)
	if err != nil {
		return nil, err
	}
	return &App{
		engine: engine.NewEngineWithSettings(s),
		sess:   sess,
		sink:   sink,
	}, nil
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// Scene returns the current editor state.
func (a *App) Scene() SceneData {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scene()
}

func (a *App) scene() SceneData {
	return SceneData{
		Settings:    a.sess.Settings(),
		Frame:       toFrameData(a.sess.Frame()),
		Count:       a.sess.Len(),
		Fingerprint: fmt.Sprintf("%016x", a.sess.Fingerprint()),
		Surface:     toMeshData(tessellate.SurfaceMesh(a.sess.Store()), 0),
	}
}

// ApplySettings validates and applies s, rebuilding the grid frame. On
// error the previous settings stay active and the error is reported in
// the scene.
func (a *App) ApplySettings(s config.Settings) SceneData {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.sess.ApplySettings(s); err != nil {
		log.Printf("ApplySettings: %v", err)
		sc := a.scene()
		sc.Error = err.Error()
		return sc
	}
	a.engine.SetSettings(s)
	return a.scene()
}

// LoadSettings reads a settings file and applies it.
func (a *App) LoadSettings(path string) SceneData {
	s, err := config.Load(path)
	if err != nil {
		log.Printf("LoadSettings: %v", err)
		sc := a.Scene()
		sc.Error = err.Error()
		return sc
	}
	return a.ApplySettings(s)
}

// SaveSettings writes the active settings to path.
func (a *App) SaveSettings(path string) Report {
	a.mu.Lock()
	s := a.sess.Settings()
	a.mu.Unlock()
	if err := s.Save(path); err != nil {
		return errorReport("save settings", err)
	}
	return Report{Severity: consolidate.SeverityInfo.String(), Message: "settings saved to " + path}
}

// ---------------------------------------------------------------------------
// Pointer strokes
// ---------------------------------------------------------------------------

// PointerDown starts a stroke with tool "place" or "erase" and applies
// the first step.
func (a *App) PointerDown(tool string, ray RayData) StrokeResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	var t session.Tool
	switch tool {
	case "place":
		t = session.Place
	case "erase":
		t = session.Erase
	default:
		return StrokeResult{State: session.Idle.String(), Count: a.sess.Len(), Error: fmt.Sprintf("unknown tool %q", tool)}
	}
	a.stroke = a.sess.NewStroke(t)
	return a.handle(session.Press, ray)
}

// PointerMove continues the active stroke.
func (a *App) PointerMove(ray RayData) StrokeResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle(session.Move, ray)
}

// PointerUp ends the active stroke.
func (a *App) PointerUp() StrokeResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := a.handle(session.Release, RayData{})
	a.stroke = nil
	return res
}

// PointerCancel aborts the active stroke. Cells already changed stay
// changed.
func (a *App) PointerCancel() StrokeResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := a.handle(session.Cancel, RayData{})
	a.stroke = nil
	return res
}

func (a *App) handle(kind session.EventKind, ray RayData) StrokeResult {
	if a.stroke == nil {
		return StrokeResult{State: session.Idle.String(), Count: a.sess.Len()}
	}
	res, err := a.stroke.Handle(session.Event{
		Kind:      kind,
		Origin:    r3.Vec{X: ray.Origin[0], Y: ray.Origin[1], Z: ray.Origin[2]},
		Direction: r3.Vec{X: ray.Direction[0], Y: ray.Direction[1], Z: ray.Direction[2]},
	})
	out := StrokeResult{State: res.State.String(), Changed: res.Changed, Count: a.sess.Len()}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// ---------------------------------------------------------------------------
// Voxelize, make real, optimise
// ---------------------------------------------------------------------------

// VoxelizeMesh places every cell whose centre lies within the configured
// threshold of m.
func (a *App) VoxelizeMesh(m MeshData) Report {
	surf, err := voxelize.FromMesh(&kernel.Mesh{Vertices: m.Vertices, Indices: m.Indices, Name: m.Name})
	if err != nil {
		return errorReport("voxelize", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.sess.Voxelize(surf)
	if err != nil {
		return errorReport("voxelize", err)
	}
	return Report{Severity: consolidate.SeverityInfo.String(), Message: fmt.Sprintf("placed %d voxels", n), Count: n}
}

// MakeReal gives the voxels at cells their own geometry.
func (a *App) MakeReal(cells [][3]int) Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := consolidate.MakeReal(a.sink.Select(toCells(cells)))
	if err != nil {
		return errorReport("make real", err)
	}
	return Report{Severity: consolidate.SeverityInfo.String(), Message: fmt.Sprintf("made %d voxels real", n), Count: n}
}

// Optimise joins the voxels at cells into one mesh and welds vertices
// closer than the configured merge distance.
func (a *App) Optimise(cells [][3]int) Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	sel := a.sink.Select(toCells(cells))
	meshes := make([]*kernel.Mesh, len(sel))
	for i, e := range sel {
		meshes[i] = e.WorldMesh()
	}
	merged, err := consolidate.JoinAndMerge(meshes, a.sess.Settings().MergeDistance)
	if err != nil {
		return errorReport("optimise", err)
	}
	md := toMeshData(merged, 0)
	return Report{
		Severity: consolidate.SeverityInfo.String(),
		Message:  fmt.Sprintf("merged %d voxels into %d vertices", len(sel), merged.VertexCount()),
		Count:    merged.VertexCount(),
		Mesh:     &md,
	}
}

// Clear vacates every cell.
func (a *App) Clear() SceneData {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stroke = nil
	a.sess.Clear()
	return a.scene()
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// SaveSnapshot writes the grid and occupied cells to path.
func (a *App) SaveSnapshot(path string) Report {
	a.mu.Lock()
	snap := a.sess.Capture()
	a.mu.Unlock()
	if err := snapshot.Save(path, snap); err != nil {
		return errorReport("save snapshot", err)
	}
	return Report{Severity: consolidate.SeverityInfo.String(), Message: "saved " + path, Count: len(snap.Cells)}
}

// LoadSnapshot replaces the grid and cells with the snapshot at path.
func (a *App) LoadSnapshot(path string) SceneData {
	snap, err := snapshot.Load(path)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		a.stroke = nil
		err = a.sess.Restore(snap)
	}
	sc := a.scene()
	if err != nil {
		log.Printf("LoadSnapshot: %v", err)
		sc.Error = err.Error()
	} else {
		a.engine.SetSettings(a.sess.Settings())
	}
	return sc
}

// ExportGLB writes the surface mesh of the occupied cells to path.
func (a *App) ExportGLB(path string) Report {
	a.mu.Lock()
	m := tessellate.SurfaceMesh(a.sess.Store())
	a.mu.Unlock()
	if err := export.WriteGLB(m, path); err != nil {
		return errorReport("export", err)
	}
	return Report{Severity: consolidate.SeverityInfo.String(), Message: "exported " + path, Count: m.TriangleCount()}
}

// ---------------------------------------------------------------------------
// Scripting
// ---------------------------------------------------------------------------

// Evaluate runs a script against a fresh session built from the active
// settings. On success the script's session replaces the current one.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{Errors: []EvalErrorData{}}

	res, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		result.Scene = a.Scene()
		return result
	}
	for _, e := range evalErrs {
		result.Errors = append(result.Errors, EvalErrorData{
			Line:    e.Line,
			Col:     e.Col,
			Message: e.Message,
		})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if res != nil && len(evalErrs) == 0 {
		a.sess, a.sink, a.stroke = res.Session, res.Sink, nil
		a.engine.SetSettings(a.sess.Settings())
	}
	result.Scene = a.scene()
	return result
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func toMeshData(m *kernel.Mesh, i int) MeshData {
	md := MeshData{
		Vertices: []float32{},
		Normals:  []float32{},
		Indices:  []uint32{},
		Color:    colorPalette[i%len(colorPalette)],
	}
	if m == nil {
		return md
	}
	md.Name = m.Name
	if m.Vertices != nil {
		md.Vertices = m.Vertices
	}
	if m.Normals != nil {
		md.Normals = m.Normals
	}
	if m.Indices != nil {
		md.Indices = m.Indices
	}
	return md
}

func toFrameData(f grid.Frame) FrameData {
	out := FrameData{
		Visible: f.Visible,
		Master:  BoxData{Min: f.Master.Min, Max: f.Master.Max},
	}
	if f.Layer != nil {
		out.Layer = &BoxData{Min: f.Layer.Min, Max: f.Layer.Max}
	}
	return out
}

func toCells(cells [][3]int) []grid.Cell {
	out := make([]grid.Cell, len(cells))
	for i, c := range cells {
		out[i] = grid.Cell{X: c[0], Y: c[1], Z: c[2]}
	}
	return out
}

func errorReport(op string, err error) Report {
	log.Printf("%s: %v", op, err)
	return Report{Severity: consolidate.Classify(err).String(), Message: err.Error()}
}
