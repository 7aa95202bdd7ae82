package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/lwansbrough/craft2/volume"
)

var errVolumeExists = errors.New("volume already exists")

// liveVolume is a volume held in memory.  mu guards vol and version.
type liveVolume struct {
	mu      sync.Mutex
	name    string
	gen     uint64 // unique per registry add, so a re-created name never reuses cache keys
	vol     *volume.Volume
	version uint64 // bumped on every mutation; keys the GPU buffer cache
}

// registry maps names to live volumes.
type registry struct {
	mu      sync.RWMutex
	volumes map[string]*liveVolume
	lastGen uint64
}

func newRegistry() *registry {
	return &registry{volumes: make(map[string]*liveVolume)}
}

func (r *registry) get(name string) (*liveVolume, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lv, found := r.volumes[name]
	return lv, found
}

func (r *registry) add(name string, v *volume.Volume) (*liveVolume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.volumes[name]; found {
		return nil, errVolumeExists
	}
	r.lastGen++
	lv := &liveVolume{name: name, gen: r.lastGen, vol: v}
	r.volumes[name] = lv
	return lv, nil
}

func (r *registry) remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.volumes[name]; !found {
		return false
	}
	delete(r.volumes, name)
	return true
}

func (r *registry) names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.volumes))
	for name := range r.volumes {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.volumes)
}
