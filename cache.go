package orm

import "sync"

// RegionCache is the second level cache. It keeps disassembled column
// snapshots of entities grouped in regions, one region per entity name,
// keyed by id. Snapshots only ever hold cacheable representations :
// column values converted by a UserType are stored disassembled and
// reassembled on read, so mutable state never leaks out of the cache.
type RegionCache struct {
	mutex   sync.RWMutex
	regions map[string]map[int64]map[string]interface{}
}

func NewRegionCache() *RegionCache {
	return &RegionCache{regions: map[string]map[int64]map[string]interface{}{}}
}

// Put stores the snapshot of an entity in a region.
func (cache *RegionCache) Put(region string, id int64, snapshot map[string]interface{}) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	if cache.regions[region] == nil {
		cache.regions[region] = map[int64]map[string]interface{}{}
	}
	cache.regions[region][id] = snapshot
}

// Get returns the snapshot of an entity, if cached.
func (cache *RegionCache) Get(region string, id int64) (map[string]interface{}, bool) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	snapshot, ok := cache.regions[region][id]
	return snapshot, ok
}

// Evict drops a single entity from a region.
func (cache *RegionCache) Evict(region string, id int64) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	delete(cache.regions[region], id)
}

// EvictRegion drops a whole region.
func (cache *RegionCache) EvictRegion(region string) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	delete(cache.regions, region)
}

// Size returns the number of entities cached in a region.
func (cache *RegionCache) Size(region string) int {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	return len(cache.regions[region])
}
