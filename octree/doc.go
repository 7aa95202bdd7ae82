/*
Package octree implements a sparse voxel octree kept in a flat pool of 2x2x2 grids.

Each grid cell is 4 bytes: a kind tag followed by 3 payload bytes.  A GridPointer cell stores
the pool index of its child as a 24-bit little-endian integer, so the tree holds no Go
pointers and Bytes can hand the pool to a GPU buffer as is.  A shader walks the buffer from
grid 0 with the same octant scheme as AddData:

	cellSize = 2^(depthMax - depth - 1)
	octant   = x/cellSize + 2*(y/cellSize) + 4*(z/cellSize)

Material payloads are opaque; the volume package stores palette indices in them.
*/
package octree
