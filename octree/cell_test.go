package octree

import "testing"

func TestEncodeU24(t *testing.T) {
	tests := []struct {
		v    uint32
		want Payload
	}{
		{0, Payload{0, 0, 0}},
		{1, Payload{1, 0, 0}},
		{0xABCDEF, Payload{0xEF, 0xCD, 0xAB}},
		{0xFFFFFF, Payload{0xFF, 0xFF, 0xFF}},
		{0xFFABCDEF, Payload{0xEF, 0xCD, 0xAB}},
	}
	for _, tc := range tests {
		if got := EncodeU24(tc.v); got != tc.want {
			t.Errorf("EncodeU24(%#x) = %v, expected %v", tc.v, got, tc.want)
		}
	}
}

func TestDecodeU24(t *testing.T) {
	for _, v := range []uint32{0, 1, 255, 256, 65535, 65536, 0x123456, MaxGrids - 1} {
		if got := DecodeU24(EncodeU24(v)); got != v {
			t.Errorf("DecodeU24(EncodeU24(%d)) = %d", v, got)
		}
	}
	if got := DecodeU24(Payload{0xEF, 0xCD, 0xAB}); got != 0xABCDEF {
		t.Errorf("expected 0xABCDEF, got %#x", got)
	}
}

func TestCellKinds(t *testing.T) {
	for k := Empty; k <= Attachment; k++ {
		if !k.Valid() {
			t.Errorf("kind %d should be valid", k)
		}
	}
	if CellKind(4).Valid() {
		t.Error("kind 4 should not be valid")
	}
	if s := CellKind(9).String(); s != "unknown cell kind (9)" {
		t.Errorf("unexpected string for bad kind: %q", s)
	}

	c := PointerCell(0x010203)
	if c.Kind != GridPointer || c.Pointer() != 0x010203 {
		t.Errorf("bad pointer cell %v", c)
	}
	if s := c.String(); s != "pointer -> 66051" {
		t.Errorf("unexpected pointer string %q", s)
	}
	m := MaterialCell(Payload{1, 2, 3})
	if m.Kind != Material || m.Payload != (Payload{1, 2, 3}) {
		t.Errorf("bad material cell %v", m)
	}
}

func TestOctantIndex(t *testing.T) {
	for octant := 0; octant < GridCells; octant++ {
		gx, gy, gz := OctantSelectors(octant)
		if got := OctantIndex(gx, gy, gz); got != octant {
			t.Errorf("OctantIndex(%d, %d, %d) = %d, expected %d", gx, gy, gz, got, octant)
		}
	}
	if OctantIndex(1, 0, 0) != 1 || OctantIndex(0, 1, 0) != 2 || OctantIndex(0, 0, 1) != 4 {
		t.Error("x, y, z selectors should map to bits 0, 1, 2")
	}
}
