package octree

import "fmt"

// CellKind is the one-byte tag that classifies a GridCell. The numeric values are part of
// the serialized buffer format and must not change.
type CellKind uint8

const (
	// Empty cells hold no data.
	Empty CellKind = iota

	// GridPointer cells hold a 24-bit little-endian pool index of a child grid.
	GridPointer

	// Material cells hold an opaque 3-byte value interpreted by the renderer.
	Material

	// Attachment is reserved for links to other octrees.  Insertion never produces it and
	// refuses to descend through it.
	Attachment
)

func (k CellKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case GridPointer:
		return "grid pointer"
	case Material:
		return "material"
	case Attachment:
		return "attachment"
	default:
		return fmt.Sprintf("unknown cell kind (%d)", uint8(k))
	}
}

// Valid returns true if k is one of the declared cell kinds.
func (k CellKind) Valid() bool {
	return k <= Attachment
}

// Payload is the 3 data bytes carried by every cell.
type Payload [3]byte

// GridCell is one of the 8 slots of an IndirectionGrid.
type GridCell struct {
	Kind    CellKind
	Payload Payload
}

// PointerCell returns a GridPointer cell referencing the given pool index.
func PointerCell(index uint32) GridCell {
	return GridCell{Kind: GridPointer, Payload: EncodeU24(index)}
}

// MaterialCell returns a Material cell holding p.
func MaterialCell(p Payload) GridCell {
	return GridCell{Kind: Material, Payload: p}
}

// Pointer decodes the payload as a pool index.  Only meaningful for GridPointer cells.
func (c GridCell) Pointer() uint32 {
	return DecodeU24(c.Payload)
}

func (c GridCell) String() string {
	switch c.Kind {
	case Empty:
		return "empty"
	case GridPointer:
		return fmt.Sprintf("pointer -> %d", c.Pointer())
	default:
		return fmt.Sprintf("%s %v", c.Kind, c.Payload)
	}
}

// EncodeU24 packs the low 24 bits of v little-endian.  The top 8 bits are discarded.
func EncodeU24(v uint32) Payload {
	return Payload{byte(v), byte(v >> 8), byte(v >> 16)}
}

// DecodeU24 unpacks a little-endian 24-bit value.
func DecodeU24(b Payload) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
