// Package volume wraps an octree as a renderable voxel asset: world-space size and
// resolution, a 256-entry color palette, and the GPU buffer that concatenates them with the
// octree pool.
package volume

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/DmitriyVTitov/size"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/lwansbrough/craft2/octree"
)

const (
	// DefaultVoxelsPerMeter is the resolution used by New.
	DefaultVoxelsPerMeter = 16

	// PaletteSize is the number of palette entries and the bound on stored indices.
	PaletteSize = 256

	// HeaderSize is the number of bytes before the octree pool in the GPU buffer.
	HeaderSize = 16 + 16 + PaletteSize*4
)

var (
	ErrInvalidSize  = errors.New("invalid volume size")
	ErrInvalidIndex = errors.New("palette index out of range")
)

// Volume is a voxel asset backed by a sparse octree whose material payloads are palette
// indices.
type Volume struct {
	// Resolution is the edge length of one voxel in meters.
	Resolution float32

	// Size is the extent of the volume in voxels along each axis.
	Size mgl32.Vec3

	Palette Palette
	Data    *octree.Octree
}

// DepthFor returns the octree depth needed to cover size: ceil(log2) of the largest axis.
func DepthFor(dims [3]uint32) (uint8, error) {
	if dims[0] == 0 || dims[1] == 0 || dims[2] == 0 {
		return 0, fmt.Errorf("%w: %v has a zero axis", ErrInvalidSize, dims)
	}
	largest := dims[0]
	if dims[1] > largest {
		largest = dims[1]
	}
	if dims[2] > largest {
		largest = dims[2]
	}
	depth := bits.Len32(largest - 1)
	if depth < 1 || depth > octree.MaxDepth {
		return 0, fmt.Errorf("%w: %v needs octree depth %d, supported depths are 1 to %d",
			ErrInvalidSize, dims, depth, octree.MaxDepth)
	}
	return uint8(depth), nil
}

// New returns an empty volume of the given size at DefaultVoxelsPerMeter.
func New(dims [3]uint32) (*Volume, error) {
	return WithResolution(dims, DefaultVoxelsPerMeter)
}

// WithResolution returns an empty volume of the given size in voxels.
func WithResolution(dims [3]uint32, voxelsPerMeter uint32) (*Volume, error) {
	if voxelsPerMeter == 0 {
		return nil, fmt.Errorf("%w: voxels per meter must be positive", ErrInvalidSize)
	}
	depth, err := DepthFor(dims)
	if err != nil {
		return nil, err
	}
	data, err := octree.New(depth)
	if err != nil {
		return nil, err
	}
	return &Volume{
		Resolution: 1 / float32(voxelsPerMeter),
		Size:       mgl32.Vec3{float32(dims[0]), float32(dims[1]), float32(dims[2])},
		Data:       data,
	}, nil
}

// Dims returns Size as whole voxels.
func (v *Volume) Dims() [3]uint32 {
	return [3]uint32{uint32(v.Size.X()), uint32(v.Size.Y()), uint32(v.Size.Z())}
}

// Extent returns the world-space edge lengths of the volume's bounding box.
func (v *Volume) Extent() mgl32.Vec3 {
	return v.Size.Mul(v.Resolution)
}

// Contains returns true if (x, y, z) lies inside Size.
func (v *Volume) Contains(x, y, z int) bool {
	d := v.Dims()
	return x >= 0 && y >= 0 && z >= 0 && x < int(d[0]) && y < int(d[1]) && z < int(d[2])
}

// Check returns an error if Set(x, y, z, index) would be rejected.
func (v *Volume) Check(x, y, z int, index uint32) error {
	if index >= PaletteSize {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if !v.Contains(x, y, z) {
		return fmt.Errorf("%w: (%d, %d, %d) outside volume of size %v",
			octree.ErrInvalidCoordinate, x, y, z, v.Dims())
	}
	return nil
}

// Set stores palette index at voxel (x, y, z).
func (v *Volume) Set(x, y, z int, index uint32) error {
	if err := v.Check(x, y, z, index); err != nil {
		return err
	}
	return v.Data.AddData(x, y, z, octree.EncodeU24(index))
}

// Get returns the palette index covering voxel (x, y, z), or false if it is empty.
func (v *Volume) Get(x, y, z int) (uint32, bool, error) {
	if !v.Contains(x, y, z) {
		return 0, false, fmt.Errorf("%w: (%d, %d, %d) outside volume of size %v",
			octree.ErrInvalidCoordinate, x, y, z, v.Dims())
	}
	p, found, err := v.Data.Lookup(x, y, z)
	if err != nil || !found {
		return 0, false, err
	}
	return octree.DecodeU24(p), true, nil
}

// Footprint estimates the in-memory size of the volume in bytes.
func (v *Volume) Footprint() int {
	return size.Of(v)
}

// BufferSize returns the length of the GPU buffer returned by Bytes.
func (v *Volume) BufferSize() int {
	return HeaderSize + v.Data.Size()
}

// header fills the fixed-size prefix of the GPU buffer.  Each vec3 is padded to 16 bytes.
func (v *Volume) header(b []byte) {
	le := binary.LittleEndian
	for i := 0; i < 3; i++ {
		le.PutUint32(b[i*4:], math.Float32bits(v.Resolution))
		le.PutUint32(b[16+i*4:], math.Float32bits(v.Size[i]))
	}
	for i, c := range v.Palette {
		le.PutUint32(b[32+i*4:], c)
	}
}

// Bytes returns the GPU buffer: resolution, size, palette, then the octree pool.
func (v *Volume) Bytes() []byte {
	buf := make([]byte, HeaderSize, v.BufferSize())
	v.header(buf)
	return append(buf, v.Data.Bytes()...)
}

// WriteTo streams the same bytes as Bytes to w.
func (v *Volume) WriteTo(w io.Writer) (int64, error) {
	var hdr [HeaderSize]byte
	v.header(hdr[:])
	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	m, err := v.Data.WriteTo(w)
	return int64(n) + m, err
}
