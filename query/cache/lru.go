package cache

import (
	"strings"
	"sync"
)

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int // 0 means unbounded
	Evictions int64
	HitRate   float64 // percent
}

// lru is a string to string LRU map.
type lru struct {
	mu        sync.Mutex
	data      map[string]*cacheNode
	maxSize   int
	head      *cacheNode
	tail      *cacheNode
	hits      int64
	misses    int64
	evictions int64
}

// cacheNode represents a node in the doubly-linked list for LRU
type cacheNode struct {
	key   string
	value string
	prev  *cacheNode
	next  *cacheNode
}

func newLRU(maxSize int) *lru {
	if maxSize < 0 {
		maxSize = 0
	}
	return &lru{
		data:    make(map[string]*cacheNode),
		maxSize: maxSize,
	}
}

func (c *lru) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.data[key]
	if !ok {
		c.misses++
		return "", false
	}

	// Move to front (most recently used)
	c.moveToFront(node)
	c.hits++
	return node.value, true
}

// peek looks up key without touching recency or counters.
func (c *lru) peek(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.data[key]; ok {
		return node.value, true
	}
	return "", false
}

func (c *lru) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.data[key]; exists {
		node.value = value
		c.moveToFront(node)
		return
	}

	if c.maxSize > 0 && len(c.data) >= c.maxSize {
		c.evictLRU()
		c.evictions++
	}

	node := &cacheNode{key: key, value: value}
	c.addToFront(node)
	c.data[key] = node
}

func (c *lru) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.data[key]; ok {
		c.removeNode(node)
	}
}

// removeMatching removes all keys matching pattern and returns how many
// were removed.
func (c *lru) removeMatching(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*cacheNode
	for key, node := range c.data {
		if matchesPattern(key, pattern) {
			toRemove = append(toRemove, node)
		}
	}
	for _, node := range toRemove {
		c.removeNode(node)
	}
	return len(toRemove)
}

func (c *lru) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*cacheNode)
	c.head = nil
	c.tail = nil
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

func (c *lru) stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      len(c.data),
		MaxSize:   c.maxSize,
		Evictions: c.evictions,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100
	}
	return s
}

// addToFront adds a node to the front of the list
func (c *lru) addToFront(node *cacheNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

// moveToFront moves a node to the front of the list
func (c *lru) moveToFront(node *cacheNode) {
	if node == c.head {
		return
	}
	c.unlink(node)
	c.addToFront(node)
}

// removeNode unlinks a node and drops it from the map
func (c *lru) removeNode(node *cacheNode) {
	c.unlink(node)
	delete(c.data, node.key)
}

func (c *lru) unlink(node *cacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

// evictLRU evicts the least recently used node
func (c *lru) evictLRU() {
	if c.tail != nil {
		c.removeNode(c.tail)
	}
}

// matchesPattern checks if a key matches a pattern. Keys and patterns are
// split on ":" and "*" matches any single part, so "*:*:users:*" matches
// every statement cached for the users table.
func matchesPattern(key, pattern string) bool {
	if pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, ":")
	keyParts := strings.Split(key, ":")
	if len(parts) != len(keyParts) {
		return false
	}
	for i, part := range parts {
		if part != "*" && part != keyParts[i] {
			return false
		}
	}
	return true
}
