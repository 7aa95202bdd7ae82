package volume

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrInvalidRay is returned for a ray with a non-finite origin or direction.
var ErrInvalidRay = errors.New("ray origin and direction must be finite")

// Hit is the first filled voxel found by Raycast.
type Hit struct {
	Voxel    [3]int
	Index    uint32
	Distance float32 // voxel units from the ray origin to the entry face
}

func finite(v mgl32.Vec3) bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// clip intersects a ray with the box [0,dims) using the slab method and returns the distances
// at which it enters and leaves.  ok is false if the ray never passes through the box.
func clip(origin, dir [3]float64, dims [3]uint32) (enter, exit float64, ok bool) {
	enter, exit = 0, math.Inf(1)
	for i := 0; i < 3; i++ {
		hi := float64(dims[i])
		if dir[i] == 0 {
			if origin[i] < 0 || origin[i] >= hi {
				return 0, 0, false
			}
			continue
		}
		t0 := (0 - origin[i]) / dir[i]
		t1 := (hi - origin[i]) / dir[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		enter = math.Max(enter, t0)
		exit = math.Min(exit, t1)
	}
	return enter, exit, enter < exit
}

// axisStep sets up one axis of the DDA walk.
func axisStep(pos, dir float64, cell int) (step int, delta, side float64) {
	if dir == 0 {
		return 0, math.Inf(1), math.Inf(1)
	}
	delta = math.Abs(1 / dir)
	if dir > 0 {
		return 1, delta, (float64(cell) + 1 - pos) * delta
	}
	return -1, delta, (pos - float64(cell)) * delta
}

// Raycast walks voxels along a ray in voxel coordinates and returns the first filled one
// within maxDist.  The ray is clipped to the volume first, so the walk visits at most the
// voxels it crosses inside the volume.  An origin inside the volume is tested first.
func (v *Volume) Raycast(origin, direction mgl32.Vec3, maxDist float32) (Hit, bool, error) {
	if !finite(origin) || !finite(direction) {
		return Hit{}, false, ErrInvalidRay
	}
	var o, dir [3]float64
	var length float64
	for i := 0; i < 3; i++ {
		o[i] = float64(origin[i])
		dir[i] = float64(direction[i])
		length += dir[i] * dir[i]
	}
	if length == 0 {
		return Hit{}, false, nil
	}
	length = math.Sqrt(length)
	for i := range dir {
		dir[i] /= length
	}
	dims := v.Dims()

	enter, exit, ok := clip(o, dir, dims)
	limit := float64(maxDist)
	if !ok || enter > limit {
		return Hit{}, false, nil
	}

	// Distances in the walk are measured from the entry point.
	var cell [3]int
	var step [3]int
	var delta, side [3]float64
	for i := 0; i < 3; i++ {
		p := o[i] + dir[i]*enter
		cell[i] = int(math.Floor(p))
		if cell[i] < 0 {
			cell[i] = 0
		} else if cell[i] >= int(dims[i]) {
			cell[i] = int(dims[i]) - 1
		}
		step[i], delta[i], side[i] = axisStep(p, dir[i], cell[i])
	}

	span := math.Min(exit, limit) - enter
	var dist float64
	for dist <= span && v.Contains(cell[0], cell[1], cell[2]) {
		index, found, err := v.Get(cell[0], cell[1], cell[2])
		if err != nil {
			return Hit{}, false, err
		}
		if found {
			return Hit{Voxel: cell, Index: index, Distance: float32(enter + dist)}, true, nil
		}
		axis := 2
		if side[0] < side[1] && side[0] < side[2] {
			axis = 0
		} else if side[1] < side[2] {
			axis = 1
		}
		dist = side[axis]
		side[axis] += delta[axis]
		cell[axis] += step[axis]
	}
	return Hit{}, false, nil
}
