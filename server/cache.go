package server

import (
	"encoding/binary"
	"errors"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"

	"github.com/lwansbrough/craft2/craft"
)

// gpuCache holds serialized GPU buffers keyed by volume generation, version and name, so repeated
// downloads of an unchanged volume skip serialization.  A nil *gpuCache caches nothing.
type gpuCache struct {
	cache *freecache.Cache
}

func newGPUCache(bytes int) *gpuCache {
	if bytes <= 0 {
		craft.Infof("GPU buffer cache disabled.\n")
		return nil
	}
	craft.Infof("GPU buffer cache of %s\n", humanize.Bytes(uint64(bytes)))
	return &gpuCache{cache: freecache.NewCache(bytes)}
}

// cacheKey identifies the current contents of lv.  The caller holds lv.mu.
func cacheKey(lv *liveVolume) []byte {
	key := make([]byte, 16, 16+len(lv.name))
	binary.LittleEndian.PutUint64(key[0:8], lv.gen)
	binary.LittleEndian.PutUint64(key[8:16], lv.version)
	return append(key, lv.name...)
}

func (c *gpuCache) get(lv *liveVolume) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.cache.Get(cacheKey(lv))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *gpuCache) put(lv *liveVolume, data []byte) {
	if c == nil {
		return
	}
	if err := c.cache.Set(cacheKey(lv), data, 0); err != nil {
		if errors.Is(err, freecache.ErrLargeEntry) {
			craft.Debugf("GPU buffer of %q (%s) too large to cache\n", lv.name, humanize.Bytes(uint64(len(data))))
			return
		}
		craft.Errorf("unable to cache GPU buffer of %q: %v\n", lv.name, err)
	}
}

// drop removes the cached buffer of lv's current version, used once a volume changes or is
// deleted.
func (c *gpuCache) drop(lv *liveVolume) {
	if c == nil {
		return
	}
	c.cache.Del(cacheKey(lv))
}

type cacheStats struct {
	Entries int64   `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

func (c *gpuCache) stats() cacheStats {
	if c == nil {
		return cacheStats{}
	}
	return cacheStats{Entries: c.cache.EntryCount(), HitRate: c.cache.HitRate()}
}
