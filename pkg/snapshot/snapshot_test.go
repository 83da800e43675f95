package snapshot

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/voxel"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var sortCells = cmpopts.SortSlices(func(a, b grid.Cell) bool { return a.Less(b) })

func TestMortonRoundTrip(t *testing.T) {
	for _, p := range [][3]uint32{{0, 0, 0}, {1, 2, 3}, {maxCoord, 0, 7}, {maxCoord, maxCoord, maxCoord}} {
		x, y, z := unmorton3(morton3(p[0], p[1], p[2]))
		if x != p[0] || y != p[1] || z != p[2] {
			t.Errorf("unmorton3(morton3(%v)) = %d,%d,%d", p, x, y, z)
		}
	}
	if morton3(1, 0, 0) != 1 || morton3(0, 1, 0) != 2 || morton3(0, 0, 1) != 4 {
		t.Error("unexpected bit interleave")
	}
}

func TestRoundTrip(t *testing.T) {
	spec := grid.Spec{DimX: 16, DimY: 8, DimZ: 12, Orientation: grid.YZ, Layer: 3}
	store := voxel.NewStore()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 300; i++ {
		store.Insert(grid.Cell{X: rng.Intn(16), Y: rng.Intn(8), Z: rng.Intn(12)})
	}

	data, err := Marshal(Capture(spec, store))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Spec != spec {
		t.Errorf("Spec = %+v, want %+v", got.Spec, spec)
	}
	if diff := cmp.Diff(store.Snapshot(), got.Cells, sortCells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}

	restored := voxel.NewStore()
	restored.Insert(grid.Cell{X: 99})
	got.Restore(restored)
	if restored.Fingerprint() != store.Fingerprint() {
		t.Error("restored store differs from original")
	}
}

func TestCaptureSkipsCellsOutsideGrid(t *testing.T) {
	spec := grid.New(3, 3, 3)
	store := voxel.NewStore()
	for _, c := range []grid.Cell{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 2, Z: 2}, {X: 4, Y: 4, Z: 0}, {X: 0, Y: 3, Z: 1}} {
		store.Insert(c)
	}
	snap := Capture(spec, store)
	want := []grid.Cell{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 2, Z: 2}}
	if diff := cmp.Diff(want, snap.Cells, sortCells); diff != "" {
		t.Errorf("captured cells mismatch (-want +got):\n%s", diff)
	}
	if store.Len() != 4 {
		t.Errorf("Capture mutated the store: Len() = %d", store.Len())
	}
	if _, err := Marshal(snap); err != nil {
		t.Errorf("Marshal() error = %v", err)
	}
}

func TestEmptySnapshot(t *testing.T) {
	data, err := Marshal(Snapshot{Spec: grid.New(5, 5, 5)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Cells) != 0 {
		t.Errorf("got %d cells, want 0", len(got.Cells))
	}
}

func TestMarshalDeduplicates(t *testing.T) {
	c := grid.Cell{X: 1, Y: 1, Z: 1}
	data, err := Marshal(Snapshot{Spec: grid.New(5, 5, 5), Cells: []grid.Cell{c, c}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]grid.Cell{c}, got.Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalRejects(t *testing.T) {
	if _, err := Marshal(Snapshot{Spec: grid.New(2, 2, 2), Cells: []grid.Cell{{X: 2}}}); !errors.Is(err, ErrOutOfGrid) {
		t.Errorf("out-of-grid error = %v, want ErrOutOfGrid", err)
	}
	if _, err := Marshal(Snapshot{Spec: grid.Spec{}}); !errors.Is(err, grid.ErrInvalidSpec) {
		t.Errorf("bad spec error = %v, want ErrInvalidSpec", err)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	good, err := Marshal(Snapshot{Spec: grid.New(4, 4, 4), Cells: []grid.Cell{{X: 1}, {Y: 3, Z: 2}}})
	if err != nil {
		t.Fatal(err)
	}

	badVersion := append([]byte(nil), good...)
	badVersion[4] = 9

	badSum := append([]byte(nil), good...)
	badSum[4+1+1+12+4+4] ^= 0xff

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrFormat},
		{"magic", []byte("VOPL...."), ErrFormat},
		{"version", badVersion, ErrVersion},
		{"checksum", badSum, ErrChecksum},
		{"truncated header", good[:10], ErrCorrupt},
		{"truncated payload", good[:len(good)-1], ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Unmarshal() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.vxlm")
	want := Snapshot{Spec: grid.New(3, 3, 3), Cells: []grid.Cell{{X: 2, Y: 2, Z: 2}}}
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}
