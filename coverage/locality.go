package coverage

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// LocalityConfig shapes the set-associative directory that tracks which
// data lines a run touched.
type LocalityConfig struct {
	// Size in bytes covered by the directory.
	Size int
	// Associativity (number of ways).
	Associativity int
	// BlockSize in bytes (line size).
	BlockSize int
}

// DefaultLocalityConfig returns a 4 KiB, 4-way directory of 16-byte lines.
func DefaultLocalityConfig() LocalityConfig {
	return LocalityConfig{
		Size:          4 * 1024,
		Associativity: 4,
		BlockSize:     16,
	}
}

// LocalityStats summarizes the address stream.
type LocalityStats struct {
	// Reads and Writes count data accesses.
	Reads  uint64
	Writes uint64
	// Reuses counts accesses to a line still resident in the directory.
	Reuses uint64
	// Misses counts accesses that allocated a line.
	Misses uint64
	// Evictions counts resident lines displaced by a miss.
	Evictions uint64
	// DistinctLines is the number of different lines ever touched.
	DistinctLines int
}

// ReuseRate returns the fraction of accesses that hit a resident line.
func (s LocalityStats) ReuseRate() float64 {
	total := s.Reuses + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Reuses) / float64(total)
}

// Locality records data addresses in an LRU set-associative directory.
// A run that hammers one address keeps reusing one line, while a spread
// address stream misses and evicts.
type Locality struct {
	config    LocalityConfig
	directory *akitacache.DirectoryImpl
	lines     map[uint64]struct{}
	stats     LocalityStats
}

// NewLocality creates a locality tracker.
func NewLocality(config LocalityConfig) *Locality {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &Locality{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		lines: make(map[uint64]struct{}),
	}
}

// Config returns the directory configuration.
func (l *Locality) Config() LocalityConfig {
	return l.config
}

// Access records one data access.
func (l *Locality) Access(addr uint32, write bool) {
	if write {
		l.stats.Writes++
	} else {
		l.stats.Reads++
	}

	blockAddr := uint64(addr) / uint64(l.config.BlockSize) * uint64(l.config.BlockSize)
	l.lines[blockAddr] = struct{}{}

	block := l.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		l.stats.Reuses++
		l.directory.Visit(block)
		if write {
			block.IsDirty = true
		}
		return
	}

	l.stats.Misses++
	victim := l.directory.FindVictim(blockAddr)
	if victim == nil {
		return
	}
	if victim.IsValid {
		l.stats.Evictions++
	}
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = write
	l.directory.Visit(victim)
}

// Resident returns the number of valid lines in the directory.
func (l *Locality) Resident() int {
	n := 0
	for _, set := range l.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				n++
			}
		}
	}
	return n
}

// Stats returns the access statistics.
func (l *Locality) Stats() LocalityStats {
	s := l.stats
	s.DistinctLines = len(l.lines)
	return s
}

// Reset forgets every access.
func (l *Locality) Reset() {
	l.directory.Reset()
	l.lines = make(map[uint64]struct{})
	l.stats = LocalityStats{}
}
