package octree

import (
	"bytes"
	"errors"
	"testing"
)

func filledTree(t *testing.T, depthMax uint8, n int) *Octree {
	t.Helper()
	tree := mustNew(t, depthMax)
	edge := tree.EdgeLength()
	for i := 0; i < n; i++ {
		x, y, z := (i*5+1)%edge, (i*11+2)%edge, (i*17+3)%edge
		if err := tree.AddData(x, y, z, coordPayload(x, y, z)); err != nil {
			t.Fatal(err)
		}
	}
	return tree
}

func TestBytesLayout(t *testing.T) {
	tree := mustNew(t, 2)
	if err := tree.AddData(3, 3, 3, Payload{0xAA, 0xBB, 0xCC}); err != nil {
		t.Fatal(err)
	}
	buf := tree.Bytes()
	if len(buf) != 2*GridBytes {
		t.Fatalf("expected 64 bytes, got %d", len(buf))
	}
	// Root cell 7 points to grid 1.
	if !bytes.Equal(buf[28:32], []byte{byte(GridPointer), 1, 0, 0}) {
		t.Errorf("bad root cell 7 bytes: %v", buf[28:32])
	}
	// Grid 1 cell 7 holds the material.
	if !bytes.Equal(buf[60:64], []byte{byte(Material), 0xAA, 0xBB, 0xCC}) {
		t.Errorf("bad leaf cell bytes: %v", buf[60:64])
	}
	for i, b := range buf[32:60] {
		if b != 0 {
			t.Fatalf("byte %d of grid 1 should be zero, got %d", 32+i, b)
		}
	}
}

func TestWriteToMatchesBytes(t *testing.T) {
	tree := filledTree(t, 6, 200)
	if tree.Len() <= 64 {
		t.Fatalf("expected more than one write batch, pool has %d grids", tree.Len())
	}
	var out bytes.Buffer
	n, err := tree.WriteTo(&out)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(tree.Size()) {
		t.Errorf("WriteTo reported %d bytes, expected %d", n, tree.Size())
	}
	if !bytes.Equal(out.Bytes(), tree.Bytes()) {
		t.Error("WriteTo output differs from Bytes")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tree := filledTree(t, 5, 120)
	buf := tree.Bytes()
	decoded, err := Decode(buf, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded.Bytes(), buf) {
		t.Error("Decode(buf).Bytes() differs from buf")
	}
	for i := 0; i < tree.Len(); i++ {
		want, _ := tree.Grid(i)
		got, _ := decoded.Grid(i)
		if want != got {
			t.Fatalf("grid %d: expected %+v, got %+v", i, want, got)
		}
	}
	if s := decoded.Stats(); s.FreeGrids != 0 || s.ReachableGrids != tree.Len() {
		t.Errorf("unexpected stats after decode: %+v", s)
	}
	edge := tree.EdgeLength()
	for i := 0; i < 120; i++ {
		x, y, z := (i*5+1)%edge, (i*11+2)%edge, (i*17+3)%edge
		want, _, _ := tree.Lookup(x, y, z)
		got, found, err := decoded.Lookup(x, y, z)
		if err != nil || !found || got != want {
			t.Fatalf("(%d,%d,%d): expected %v, got %v %t %v", x, y, z, want, got, found, err)
		}
	}
}

func TestDecodeCorrupt(t *testing.T) {
	grid := func(cells ...GridCell) []byte {
		var g IndirectionGrid
		copy(g.Cells[:], cells)
		b := make([]byte, GridBytes)
		putGrid(b, &g)
		return b
	}
	join := func(grids ...[]byte) []byte {
		return bytes.Join(grids, nil)
	}
	empty := grid()

	tests := []struct {
		name     string
		buf      []byte
		depthMax uint8
	}{
		{"no grids", nil, 3},
		{"partial grid", make([]byte, 33), 3},
		{"bad tag", join(grid(GridCell{Kind: 4})), 3},
		{"pointer at last level", join(grid(PointerCell(1)), empty), 1},
		{"pointer to root", join(grid(PointerCell(0))), 3},
		{"pointer out of range", join(grid(PointerCell(2)), empty), 3},
		{"shared child", join(grid(PointerCell(1), PointerCell(1)), empty), 3},
	}
	for _, tc := range tests {
		if _, err := Decode(tc.buf, tc.depthMax); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", tc.name, err)
		}
	}

	if _, err := Decode(empty, 0); !errors.Is(err, ErrInvalidDepth) {
		t.Errorf("expected ErrInvalidDepth, got %v", err)
	}
}

func TestDecodeQueuesUnreachableSlots(t *testing.T) {
	orphan := make([]byte, GridBytes)
	orphan[0] = byte(Material)
	orphan[1] = 0x42
	buf := append(make([]byte, GridBytes), orphan...)

	tree, err := Decode(buf, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tree.Bytes(), buf) {
		t.Error("unreachable slot bytes not preserved")
	}
	if s := tree.Stats(); s.FreeGrids != 1 || s.ReachableGrids != 1 || s.Grids != 2 {
		t.Errorf("unexpected stats %+v", s)
	}

	// The chain for (7,7,7) reuses slot 1 and appends slot 2.
	if err := tree.AddData(7, 7, 7, Payload{9, 9, 9}); err != nil {
		t.Fatal(err)
	}
	if tree.Len() != 3 {
		t.Fatalf("expected 3 grids, got %d", tree.Len())
	}
	root, _ := tree.Grid(0)
	if root.Cell(7) != PointerCell(1) {
		t.Errorf("root cell 7 should point to reused slot 1, got %v", root.Cell(7))
	}
	reused, _ := tree.Grid(1)
	if reused.Depth != 1 || reused.Cell(0).Kind != Empty || reused.Cell(7) != PointerCell(2) {
		t.Errorf("reused slot was not reset: %+v", reused)
	}
	if s := tree.Stats(); s.FreeGrids != 0 {
		t.Errorf("free list should be drained, stats %+v", s)
	}
	if p, found, err := tree.Lookup(7, 7, 7); err != nil || !found || p != (Payload{9, 9, 9}) {
		t.Errorf("lookup after reuse: %v %t %v", p, found, err)
	}
}
