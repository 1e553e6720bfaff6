package fsx

import "sync"

// Cache holds completed walk results for the lifetime of one audit run.
type Cache struct {
	data sync.Map
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Get(key string) ([]string, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	return v.([]string), true
}

func (c *Cache) Set(key string, files []string) {
	c.data.Store(key, files)
}

// Reset drops every cached walk. Watch mode calls it between runs.
func (c *Cache) Reset() {
	c.data.Clear()
}
