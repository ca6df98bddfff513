package pipeline

import (
	"github.com/enh8/e8sim/emu"
	"github.com/enh8/e8sim/timing/cache"
)

// CachedFetchStage fetches instruction words through an instruction
// cache. A miss stalls the fetch stage for the remaining access latency;
// the pending access is keyed by PC so a held fetch keeps counting down
// the same miss.
type CachedFetchStage struct {
	cache   *cache.Cache
	program *emu.Program

	pendingValid     bool
	pendingPC        uint64
	pendingWord      uint16
	pendingRemaining uint64
}

// NewCachedFetchStage creates a fetch stage reading program through c.
func NewCachedFetchStage(c *cache.Cache, program *emu.Program) *CachedFetchStage {
	return &CachedFetchStage{cache: c, program: program}
}

// Fetch attempts to fetch the instruction word at pc. ok is false past
// the end of the image. stall is true while a cache miss is still in
// flight.
func (s *CachedFetchStage) Fetch(pc uint64) (word uint16, ok bool, stall bool) {
	if !s.program.Contains(pc) {
		return 0, false, false
	}

	if s.pendingValid && s.pendingPC == pc {
		s.pendingRemaining--
		if s.pendingRemaining == 0 {
			s.pendingValid = false
			return s.pendingWord, true, false
		}
		return 0, false, true
	}

	// Instruction words are 2 bytes in the cache's byte address space.
	result := s.cache.Read(pc*2, 2)
	if result.Latency <= 1 {
		return uint16(result.Data), true, false
	}

	s.pendingValid = true
	s.pendingPC = pc
	s.pendingWord = uint16(result.Data)
	s.pendingRemaining = result.Latency - 1
	return 0, false, true
}

// Reset drops any in-flight access.
func (s *CachedFetchStage) Reset() {
	s.pendingValid = false
}

// CachedMemoryStage performs data accesses through a data cache. The
// cache access (including any store side effect) happens when the access
// is first issued; the remaining latency is modeled as memory-stage stall
// cycles keyed by the instruction's PC and address.
type CachedMemoryStage struct {
	cache *cache.Cache

	pendingValid     bool
	pendingPC        uint64
	pendingAddr      uint64
	pendingData      uint8
	pendingRemaining uint64
}

// NewCachedMemoryStage creates a memory stage over c.
func NewCachedMemoryStage(c *cache.Cache) *CachedMemoryStage {
	return &CachedMemoryStage{cache: c}
}

// Access performs the load or store in exmem. stall is true while the
// access's latency has not elapsed; the pipeline holds exmem and calls
// again next cycle.
func (s *CachedMemoryStage) Access(exmem *EXMEMRegister) (result MemoryResult, stall bool) {
	if !exmem.MemRead && !exmem.MemWrite {
		return MemoryResult{}, false
	}

	if s.pendingValid &&
		s.pendingPC == exmem.PC &&
		s.pendingAddr == exmem.MemAddr {
		s.pendingRemaining--
		if s.pendingRemaining == 0 {
			s.pendingValid = false
			return MemoryResult{MemData: s.pendingData}, false
		}
		return MemoryResult{}, true
	}

	var access cache.AccessResult
	var data uint8
	if exmem.MemRead {
		access = s.cache.Read(exmem.MemAddr, 1)
		data = uint8(access.Data)
	} else {
		access = s.cache.Write(exmem.MemAddr, 1, uint64(exmem.StoreValue))
	}

	if access.Latency <= 1 {
		return MemoryResult{MemData: data}, false
	}

	s.pendingValid = true
	s.pendingPC = exmem.PC
	s.pendingAddr = exmem.MemAddr
	s.pendingData = data
	s.pendingRemaining = access.Latency - 1
	return MemoryResult{}, true
}

// Reset drops any in-flight access.
func (s *CachedMemoryStage) Reset() {
	s.pendingValid = false
}
