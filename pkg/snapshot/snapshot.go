// Package snapshot persists an editing session's grid settings and
// occupied cells.
//
// File layout (little endian):
//
//	magic    "VXLM"
//	version  uint8
//	orient   uint8
//	dims     3 × uint32
//	layer    int32
//	count    uint32   occupied cells
//	checksum uint64   xxhash of the uncompressed payload
//	length   uint32   compressed payload bytes
//	payload  zstd(uvarint deltas of the sorted Morton codes)
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/voxel"
	"github.com/klauspost/compress/zstd"
)

const (
	magic   = "VXLM"
	version = 1
)

var (
	// ErrFormat is returned for data that is not a snapshot.
	ErrFormat = errors.New("snapshot: not a VXLM file")
	// ErrVersion is returned for snapshots written by a newer format.
	ErrVersion = errors.New("snapshot: unsupported version")
	// ErrChecksum is returned when the payload does not match its checksum.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
	// ErrCorrupt is returned for truncated or inconsistent payloads.
	ErrCorrupt = errors.New("snapshot: corrupt payload")
	// ErrOutOfGrid is returned when a cell lies outside the grid.
	ErrOutOfGrid = errors.New("snapshot: cell outside grid")
)

type header struct {
	Version     uint8
	Orientation uint8
	DimX        uint32
	DimY        uint32
	DimZ        uint32
	Layer       int32
	Count       uint32
	Checksum    uint64
	Length      uint32
}

// Snapshot is a grid spec and the cells occupied in it.
type Snapshot struct {
	Spec  grid.Spec
	Cells []grid.Cell
}

// Capture copies the store's cells that lie inside spec. Cells left
// outside by a grid that shrank after they were placed are not persisted.
func Capture(spec grid.Spec, store *voxel.Store) Snapshot {
	cells := store.Snapshot()
	kept := cells[:0]
	for _, c := range cells {
		if spec.Contains(c) {
			kept = append(kept, c)
		}
	}
	return Snapshot{Spec: spec, Cells: kept}
}

// Restore replaces the contents of store with the snapshot's cells.
func (s Snapshot) Restore(store *voxel.Store) {
	store.Clear()
	for _, c := range s.Cells {
		store.Insert(c)
	}
}

// Marshal encodes s. Every cell must lie inside s.Spec.
func Marshal(s Snapshot) ([]byte, error) {
	if err := s.Spec.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if s.Spec.DimX > maxCoord+1 || s.Spec.DimY > maxCoord+1 || s.Spec.DimZ > maxCoord+1 {
		return nil, fmt.Errorf("snapshot: grid %dx%dx%d exceeds %d per axis", s.Spec.DimX, s.Spec.DimY, s.Spec.DimZ, maxCoord+1)
	}

	codes := make([]uint64, 0, len(s.Cells))
	for _, c := range s.Cells {
		if !s.Spec.Contains(c) {
			return nil, fmt.Errorf("%w: %v", ErrOutOfGrid, c)
		}
		codes = append(codes, morton3(uint32(c.X), uint32(c.Y), uint32(c.Z)))
	}
	slices.Sort(codes)
	codes = slices.Compact(codes)

	raw := make([]byte, 0, len(codes)*2)
	var prev uint64
	for _, code := range codes {
		raw = binary.AppendUvarint(raw, code-prev)
		prev = code
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	payload := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return nil, err
	}

	hdr := header{
		Version:     version,
		Orientation: uint8(s.Spec.Orientation),
		DimX:        uint32(s.Spec.DimX),
		DimY:        uint32(s.Spec.DimY),
		DimZ:        uint32(s.Spec.DimZ),
		Layer:       int32(s.Spec.Layer),
		Count:       uint32(len(codes)),
		Checksum:    xxhash.Sum64(raw),
		Length:      uint32(len(payload)),
	}
	var out bytes.Buffer
	out.WriteString(magic)
	if err := binary.Write(&out, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	out.Write(payload)
	return out.Bytes(), nil
}

// Unmarshal decodes a snapshot. Cells come back in Morton order.
func Unmarshal(data []byte) (Snapshot, error) {
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return Snapshot{}, ErrFormat
	}
	r := bytes.NewReader(data[len(magic):])
	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Snapshot{}, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if hdr.Version != version {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrVersion, hdr.Version)
	}
	spec := grid.Spec{
		DimX:        int(hdr.DimX),
		DimY:        int(hdr.DimY),
		DimZ:        int(hdr.DimZ),
		Orientation: grid.Orientation(hdr.Orientation),
		Layer:       int(hdr.Layer),
	}
	if err := spec.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if int64(hdr.Length) > int64(r.Len()) {
		return Snapshot{}, fmt.Errorf("%w: payload length %d exceeds %d remaining bytes", ErrCorrupt, hdr.Length, r.Len())
	}
	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Snapshot{}, fmt.Errorf("%w: payload: %w", ErrCorrupt, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if xxhash.Sum64(raw) != hdr.Checksum {
		return Snapshot{}, ErrChecksum
	}

	cells := make([]grid.Cell, 0, min(int(hdr.Count), len(raw)))
	var code uint64
	for len(raw) > 0 {
		delta, n := binary.Uvarint(raw)
		if n <= 0 {
			return Snapshot{}, fmt.Errorf("%w: bad varint", ErrCorrupt)
		}
		raw = raw[n:]
		code += delta
		x, y, z := unmorton3(code)
		c := grid.Cell{X: int(x), Y: int(y), Z: int(z)}
		if !spec.Contains(c) {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrOutOfGrid, c)
		}
		cells = append(cells, c)
	}
	if len(cells) != int(hdr.Count) {
		return Snapshot{}, fmt.Errorf("%w: %d cells, header says %d", ErrCorrupt, len(cells), hdr.Count)
	}
	return Snapshot{Spec: spec, Cells: cells}, nil
}

// Save writes s to path.
func Save(path string, s Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a snapshot from path.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return Unmarshal(data)
}
