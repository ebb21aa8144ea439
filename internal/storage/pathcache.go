package storage

// PathCache maps (parent identifier, child name) pairs to native backend
// identifiers. Backends with opaque addressing (Drive file IDs, vault UUIDs)
// keep one per instance so repeated path walks skip remote lookups.
//
// The cache is advisory: on a folder-creation conflict the owner must
// re-query the backend and Put the fresh identifier rather than trusting a
// stale entry. Invalidated wholesale on Logout.
type PathCache struct {
	entries map[pathCacheKey]string
}

type pathCacheKey struct {
	parentID string
	name     string
}

// NewPathCache creates an empty cache.
func NewPathCache() *PathCache {
	return &PathCache{entries: make(map[pathCacheKey]string)}
}

// Get returns the cached identifier for a child of parentID, if present.
func (c *PathCache) Get(parentID, name string) (string, bool) {
	id, ok := c.entries[pathCacheKey{parentID: parentID, name: name}]
	return id, ok
}

// Put stores the identifier for a child of parentID.
func (c *PathCache) Put(parentID, name, id string) {
	c.entries[pathCacheKey{parentID: parentID, name: name}] = id
}

// Forget drops a single entry, forcing the next walk to re-query.
func (c *PathCache) Forget(parentID, name string) {
	delete(c.entries, pathCacheKey{parentID: parentID, name: name})
}

// Clear drops everything.
func (c *PathCache) Clear() {
	c.entries = make(map[pathCacheKey]string)
}

// Len returns the number of cached mappings.
func (c *PathCache) Len() int {
	return len(c.entries)
}
