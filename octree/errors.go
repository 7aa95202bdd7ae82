package octree

import "errors"

var (
	// ErrInvalidDepth is returned by New for a zero maximum depth.
	ErrInvalidDepth = errors.New("invalid octree depth")

	// ErrInvalidCoordinate is returned when a coordinate lies outside [0, 2^depthMax).
	ErrInvalidCoordinate = errors.New("invalid voxel coordinate")

	// ErrCapacityExceeded is returned when the 24-bit pool index space would overflow or a
	// descent would pass the maximum depth.
	ErrCapacityExceeded = errors.New("octree capacity exceeded")

	// ErrUnsupportedCellKind is returned when a descent reaches an Attachment cell.
	ErrUnsupportedCellKind = errors.New("unsupported grid cell kind")

	// ErrCorrupt is returned when a serialized buffer breaks the tree invariants.
	ErrCorrupt = errors.New("corrupt octree buffer")
)
