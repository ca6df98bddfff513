// Package cache models the instruction and data caches using Akita cache
// components for tag state and LRU replacement.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// WritePolicy selects how the data cache propagates writes.
type WritePolicy int

const (
	// WriteThrough updates both the cache and the backing store on every
	// write. Lines never become dirty; write misses go straight to the
	// backing store without allocating.
	WriteThrough WritePolicy = iota

	// WriteBack marks written lines dirty and defers the backing-store
	// update until eviction. Write misses allocate the line first
	// (write-allocate).
	WriteBack
)

// Config holds cache configuration parameters. It is fixed for the
// duration of a run.
type Config struct {
	// Size in bytes.
	Size int
	// Associativity is the number of ways per set (1 = direct-mapped).
	Associativity int
	// BlockSize in bytes (cache line size). Must be a power of two.
	BlockSize int
	// HitLatency in cycles (minimum 1).
	HitLatency uint64
	// MissLatency in cycles, covering the backing-store fetch (minimum 1).
	MissLatency uint64
	// Policy selects write-through or write-back behavior. The
	// instruction cache is read-only and never exercises it.
	Policy WritePolicy
}

// Validate rejects invalid cache parameters at configuration time.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("cache size must be > 0")
	}
	if c.Associativity < 1 {
		return fmt.Errorf("associativity must be >= 1")
	}
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block size must be a power of two, got %d", c.BlockSize)
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("cache size %d is not divisible by %d ways x %d-byte blocks",
			c.Size, c.Associativity, c.BlockSize)
	}
	if c.HitLatency == 0 {
		return fmt.Errorf("hit latency must be >= 1")
	}
	if c.MissLatency == 0 {
		return fmt.Errorf("miss latency must be >= 1")
	}
	if c.Policy != WriteThrough && c.Policy != WriteBack {
		return fmt.Errorf("invalid write policy %d", c.Policy)
	}
	return nil
}

// DefaultICacheConfig returns the default instruction cache: 8 lines,
// direct-mapped, two instruction words per line.
func DefaultICacheConfig() Config {
	return Config{
		Size:          32,
		Associativity: 1,
		BlockSize:     4,
		HitLatency:    1,
		MissLatency:   2,
	}
}

// DefaultDCacheConfig returns the default data cache: 16 lines,
// direct-mapped, 4-byte blocks, write-through.
func DefaultDCacheConfig() Config {
	return Config{
		Size:          64,
		Associativity: 1,
		BlockSize:     4,
		HitLatency:    1,
		MissLatency:   4,
		Policy:        WriteThrough,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the data read (for read operations).
	Data uint64
	// Evicted is true if a valid block was evicted to make room.
	Evicted bool
	// EvictedAddr is the block-aligned address of the evicted block.
	EvictedAddr uint64
	// WroteBack is true if the evicted block was dirty and was flushed
	// to the backing store before the new block was installed.
	WroteBack bool
}

// Statistics holds cache performance counters.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns the fraction of accesses that hit, in [0, 1].
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// BackingStore is the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint64, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint64, data []byte)
}

// Cache is a set-associative cache. Tag state and LRU ordering live in
// an Akita cache directory; payload bytes live alongside, indexed by
// (setID * associativity + wayID).
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	dataStore [][]byte
	stats     Statistics
	backing   BackingStore
}

// New creates a cache with the given configuration. Invalid parameters
// are rejected here, never at run time.
func New(config Config, backing BackingStore) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// blockIndex computes the index into dataStore for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// blockAlign returns the block-aligned address for addr.
func (c *Cache) blockAlign(addr uint64) uint64 {
	return addr / uint64(c.config.BlockSize) * uint64(c.config.BlockSize)
}

// Read performs a cache read. On a miss the line is fetched from the
// backing store and installed at its set, reporting the access as a
// miss with the configured miss latency.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	c.stats.Reads++

	block := c.directory.Lookup(0, c.blockAlign(addr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := addr % uint64(c.config.BlockSize)
		data := extractData(c.dataStore[c.blockIndex(block)], offset, size)

		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
			Data:    data,
		}
	}

	c.stats.Misses++
	return c.handleMiss(addr, size, false, 0)
}

// Write performs a cache write and reports whether it hit. Behavior on
// a miss depends on the configured write policy: write-through sends
// the data straight to the backing store, write-back allocates the line
// first and dirties it.
func (c *Cache) Write(addr uint64, size int, data uint64) AccessResult {
	c.stats.Writes++

	block := c.directory.Lookup(0, c.blockAlign(addr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := addr % uint64(c.config.BlockSize)
		storeData(c.dataStore[c.blockIndex(block)], offset, size, data)

		if c.config.Policy == WriteBack {
			block.IsDirty = true
		} else {
			c.writeBacking(addr, size, data)
		}

		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
		}
	}

	c.stats.Misses++

	if c.config.Policy == WriteThrough {
		// No allocation on a write-through miss; the data goes straight
		// to the backing store.
		c.writeBacking(addr, size, data)
		return AccessResult{
			Hit:     false,
			Latency: c.config.HitLatency,
		}
	}

	return c.handleMiss(addr, size, true, data)
}

// handleMiss fetches the missing block from the backing store,
// evicting (and flushing, if dirty) the victim the directory selects.
func (c *Cache) handleMiss(addr uint64, size int, isWrite bool, writeData uint64) AccessResult {
	result := AccessResult{
		Hit:     false,
		Latency: c.config.MissLatency,
	}

	blockAddr := c.blockAlign(addr)
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag

		if victim.IsDirty && c.backing != nil {
			c.stats.Writebacks++
			result.WroteBack = true
			c.backing.Write(victim.Tag, victimData)
		}
	}

	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		for i := range victimData {
			victimData[i] = 0
		}
	}

	// The directory stores the block-aligned address as the tag.
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false

	offset := addr % uint64(c.config.BlockSize)
	if isWrite {
		storeData(victimData, offset, size, writeData)
		victim.IsDirty = true
	} else {
		result.Data = extractData(victimData, offset, size)
	}

	c.directory.Visit(victim)

	return result
}

// writeBacking propagates a write-through store to the backing store.
func (c *Cache) writeBacking(addr uint64, size int, data uint64) {
	if c.backing == nil {
		return
	}
	buf := make([]byte, size)
	for i := 0; i < size; i++ {
		buf[i] = byte(data >> (i * 8))
	}
	c.backing.Write(addr, buf)
}

// Flush writes back all dirty blocks and invalidates every line.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				c.stats.Writebacks++
				c.backing.Write(block.Tag, c.dataStore[c.blockIndex(block)])
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all lines without writeback and clears statistics.
// This is the program-reset path: cache contents never survive a reset.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

// extractData extracts a little-endian value of the given size.
func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData stores a little-endian value of the given size.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
