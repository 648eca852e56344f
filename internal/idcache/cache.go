// Package idcache persists a set of integer IDs marking already-processed
// entities, so a crawl can resume without reprocessing them.
package idcache

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Cache is a file-backed set of integer IDs. The in-memory set is
// authoritative; the backing file is rewritten wholesale whenever the set
// grows. All operations on one instance share a single critical section, so
// check-insert-persist is atomic per cache.
type Cache struct {
	path string

	mu  sync.Mutex
	ids map[int]struct{}

	// Replaceable for tests.
	writeFile func(path string, data []byte) error
}

// New creates a cache backed by the given file. Call Load before use to
// pick up state from earlier runs.
func New(path string) *Cache {
	return &Cache{
		path:      path,
		ids:       make(map[int]struct{}),
		writeFile: atomicWrite,
	}
}

// Load merges the backing file into the in-memory set and returns the
// number of IDs now held. A missing or malformed file yields an empty set;
// it never fails the caller.
func (c *Cache) Load() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("idcache: read %s: %v", c.path, err)
		}
		return len(c.ids)
	}
	var ids []int
	if err := json.Unmarshal(b, &ids); err != nil {
		log.Printf("idcache: parse %s: %v", c.path, err)
		return len(c.ids)
	}
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	return len(c.ids)
}

// Path returns the backing file path.
func (c *Cache) Path() string {
	return c.path
}

// Contains reports whether id is cached.
func (c *Cache) Contains(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	return ok
}

// Add inserts id and, if it was not already present, rewrites the backing
// file. Returns true when the set grew.
func (c *Cache) Add(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ids[id]; ok {
		return false
	}
	c.ids[id] = struct{}{}
	c.persistLocked()
	return true
}

// AddAll inserts every ID and rewrites the backing file once if any were
// new. Returns the number of newly added IDs.
func (c *Cache) AddAll(ids []int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, id := range ids {
		if _, ok := c.ids[id]; !ok {
			c.ids[id] = struct{}{}
			added++
		}
	}
	if added > 0 {
		c.persistLocked()
	}
	return added
}

// Len returns the number of cached IDs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// persistLocked rewrites the backing file from the full current set.
// Failures are logged and swallowed: memory stays authoritative.
func (c *Cache) persistLocked() {
	ids := make([]int, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	b, err := json.Marshal(ids)
	if err != nil {
		log.Printf("idcache: marshal %s: %v", c.path, err)
		return
	}
	if err := c.writeFile(c.path, b); err != nil {
		log.Printf("idcache: write %s: %v", c.path, err)
	}
}

// atomicWrite replaces path via a temp file and rename, so the file is
// never observable in a half-written state.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
