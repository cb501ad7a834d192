package schema

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes Compile results by the raw schema document's content
// hash, since the same schema document text routinely recurs across many
// bindings of a task (each binding's materialize/derive config embeds
// its collection's schema verbatim) and recompiling a schema tree is
// expensive enough to be worth a process-lifetime cache.
//
// Adapted from the sniCache pattern in the upstream network proxy
// frontend, which memoizes a different expensive-to-recompute lookup
// behind a bounded hashicorp/golang-lru cache.
type Cache struct {
	lru *lru.Cache[[32]byte, *Schema]
}

// NewCache builds a Cache holding up to size compiled schemas.
func NewCache(size int) (*Cache, error) {
	var l, err = lru.New[[32]byte, *Schema](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Compile returns the Schema for raw, compiling and caching it if this is
// the first time this exact document has been seen. registry is only
// consulted on a cache miss; a schema that references entries not yet in
// the registry at compile time stays bound to whatever was resolvable
// then, so callers should populate registry before the first Compile of
// any schema that $refs it.
func (c *Cache) Compile(raw []byte, registry Registry) (*Schema, error) {
	var key = sha256.Sum256(raw)
	if s, ok := c.lru.Get(key); ok {
		return s, nil
	}
	var s, err = Compile(raw, registry)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, s)
	return s, nil
}

// ContentKey reports the cache key Compile would use for raw, useful for
// callers pre-populating a Registry with a stable name for a schema
// that's about to be compiled.
func ContentKey(raw []byte) string {
	var sum = sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
