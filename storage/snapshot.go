package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blang/semver"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/twinj/uuid"

	"github.com/lwansbrough/craft2/craft"
	"github.com/lwansbrough/craft2/octree"
	"github.com/lwansbrough/craft2/volume"
)

// Snapshot is the stored form of a volume.  The octree is kept as its serialized pool so a
// load is a single octree.Decode.
type Snapshot struct {
	Name       string
	UUID       string
	Version    string // snapshot encoding version, see craft.SnapshotVersion
	Created    int64  // unix seconds
	Depth      uint8
	Resolution float32
	Size       [3]uint32
	Palette    []uint32
	Octree     []byte
}

// NewSnapshot captures the current state of v under the given name.
func NewSnapshot(name string, v *volume.Volume) *Snapshot {
	palette := make([]uint32, volume.PaletteSize)
	copy(palette, v.Palette[:])
	return &Snapshot{
		Name:       name,
		UUID:       uuid.NewV4().String(),
		Version:    craft.SnapshotVersion.String(),
		Created:    time.Now().Unix(),
		Depth:      v.Data.DepthMax(),
		Resolution: v.Resolution,
		Size:       v.Dims(),
		Palette:    palette,
		Octree:     v.Data.Bytes(),
	}
}

// Volume rebuilds the volume held by the snapshot.
func (s *Snapshot) Volume() (*volume.Volume, error) {
	ver, err := semver.Make(s.Version)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q has bad version %q: %v", s.Name, s.Version, err)
	}
	if !craft.CompatibleSnapshot(ver) {
		return nil, fmt.Errorf("snapshot %q has version %s, can only read %d.x.x",
			s.Name, ver, craft.SnapshotVersion.Major)
	}
	depth, err := volume.DepthFor(s.Size)
	if err != nil {
		return nil, err
	}
	if depth != s.Depth {
		return nil, fmt.Errorf("snapshot %q stores depth %d but size %v needs depth %d",
			s.Name, s.Depth, s.Size, depth)
	}
	if len(s.Palette) != volume.PaletteSize {
		return nil, fmt.Errorf("snapshot %q has %d palette entries, expected %d",
			s.Name, len(s.Palette), volume.PaletteSize)
	}
	data, err := octree.Decode(s.Octree, s.Depth)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", s.Name, err)
	}
	v := &volume.Volume{
		Resolution: s.Resolution,
		Size:       mgl32.Vec3{float32(s.Size[0]), float32(s.Size[1]), float32(s.Size[2])},
		Data:       data,
	}
	copy(v.Palette[:], s.Palette)
	return v, nil
}

// Encode returns the msgpack encoding of s wrapped with the given compression and a CRC32.
func (s *Snapshot) Encode(compress craft.Compression) ([]byte, error) {
	b, err := s.MarshalMsg(nil)
	if err != nil {
		return nil, err
	}
	return craft.SerializeData(b, compress, craft.CRC32)
}

// DecodeSnapshot is the inverse of Snapshot.Encode.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	b, _, err := craft.DeserializeData(data, true)
	if err != nil {
		return nil, err
	}
	s := new(Snapshot)
	if _, err := s.UnmarshalMsg(b); err != nil {
		return nil, err
	}
	return s, nil
}

const snapshotPrefix = "volume/"

func snapshotKey(name string) string {
	return snapshotPrefix + name
}

// Snapshots saves and loads volume snapshots in a Store.
type Snapshots struct {
	Store       Store
	Compression craft.Compression
}

// Save writes a snapshot, replacing any previous one with the same name.
func (s Snapshots) Save(ctx context.Context, snap *Snapshot) error {
	if err := ValidName(snap.Name); err != nil {
		return err
	}
	data, err := snap.Encode(s.Compression)
	if err != nil {
		return err
	}
	if err := s.Store.Put(ctx, snapshotKey(snap.Name), data); err != nil {
		return fmt.Errorf("unable to save snapshot %q to %s: %w", snap.Name, s.Store, err)
	}
	craft.Debugf("Saved snapshot %q (%d bytes) to %s\n", snap.Name, len(data), s.Store)
	return nil
}

// Load returns the named snapshot.  The error wraps ErrNotFound if there is none.
func (s Snapshots) Load(ctx context.Context, name string) (*Snapshot, error) {
	data, err := s.Store.Get(ctx, snapshotKey(name))
	if err != nil {
		return nil, fmt.Errorf("unable to load snapshot %q: %w", name, err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q is corrupt: %w", name, err)
	}
	if snap.Name != name {
		return nil, fmt.Errorf("snapshot stored under %q is named %q", name, snap.Name)
	}
	return snap, nil
}

// Delete removes the named snapshot.  Deleting a missing snapshot is not an error.
func (s Snapshots) Delete(ctx context.Context, name string) error {
	err := s.Store.Delete(ctx, snapshotKey(name))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// List returns the sorted names of all stored snapshots.
func (s Snapshots) List(ctx context.Context) ([]string, error) {
	keys, err := s.Store.Names(ctx, snapshotPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k[len(snapshotPrefix):]
	}
	return names, nil
}
