package engine

import (
	. "github.com/jorgenhanssen/grail/pkg/common"
)

const (
	boundLower = 1 << iota
	boundUpper
)

const boundExact = boundLower | boundUpper

const bucketSize = 4

func roundPowerOfTwo(size int) int {
	var x = 1
	for (x << 1) <= size {
		x <<= 1
	}
	return x
}

// 16 bytes. An empty slot has depth == 0 and move16 == 0. The upper 32
// bits of the zobrist key verify the entry, the lower bits pick the bucket.
type transEntry struct {
	key32      uint32
	move16     uint16
	score      int16
	staticEval int16
	depth      int8
	genBound   uint8
	_          uint32
}

func (e *transEntry) bound() int {
	return int(e.genBound & 3)
}

func (e *transEntry) generation() uint8 {
	return e.genBound >> 2
}

func packGenBound(generation uint8, bound int) uint8 {
	return generation<<2 | uint8(bound)
}

func compactMove(m Move) uint16 {
	return uint16(m.From() | m.To()<<6 | m.Promotion()<<12)
}

type transTable struct {
	megabytes  int
	buckets    [][bucketSize]transEntry
	generation uint8
	mask       uint32
}

func newTransTable(megabytes int) *transTable {
	var size = roundPowerOfTwo(1024 * 1024 * megabytes / (16 * bucketSize))
	return &transTable{
		megabytes: megabytes,
		buckets:   make([][bucketSize]transEntry, size),
		mask:      uint32(size - 1),
	}
}

func (tt *transTable) Size() int {
	return tt.megabytes
}

// IncGeneration opens a new search. The six generation bits wrap, so age
// distances are computed modulo 64.
func (tt *transTable) IncGeneration() {
	tt.generation = (tt.generation + 1) & 63
}

func (tt *transTable) Clear() {
	tt.generation = 0
	for i := range tt.buckets {
		tt.buckets[i] = [bucketSize]transEntry{}
	}
}

func (tt *transTable) ageDistance(e *transEntry) int {
	return int((tt.generation - e.generation()) & 63)
}

func (tt *transTable) Read(key uint64) (depth, score, staticEval, bound int, move16 uint16, ok bool) {
	var bucket = &tt.buckets[uint32(key)&tt.mask]
	for i := range bucket {
		var entry = &bucket[i]
		if entry.key32 == uint32(key>>32) && (entry.depth != 0 || entry.move16 != 0) {
			entry.genBound = packGenBound(tt.generation, entry.bound())
			depth = int(entry.depth)
			score = int(entry.score)
			staticEval = int(entry.staticEval)
			bound = entry.bound()
			move16 = entry.move16
			ok = true
			return
		}
	}
	return
}

func (tt *transTable) Update(key uint64, depth, score, staticEval, bound int, move Move) {
	var bucket = &tt.buckets[uint32(key)&tt.mask]
	var key32 = uint32(key >> 32)

	var victim *transEntry
	for i := range bucket {
		var entry = &bucket[i]
		if entry.key32 == key32 {
			if depth < int(entry.depth)-2 && bound != boundExact {
				// shallower re-search of the same position, keep the
				// deeper entry but refresh its age
				entry.genBound = packGenBound(tt.generation, entry.bound())
				return
			}
			if move == MoveEmpty && entry.move16 != 0 {
				// a fail-low carries no move, keep the remembered one
				entry.score = int16(score)
				entry.staticEval = int16(staticEval)
				entry.depth = int8(depth)
				entry.genBound = packGenBound(tt.generation, bound)
				return
			}
			victim = entry
			break
		}
		if victim == nil ||
			int(entry.depth)-2*tt.ageDistance(entry) < int(victim.depth)-2*tt.ageDistance(victim) {
			victim = entry
		}
	}

	victim.key32 = key32
	victim.move16 = compactMove(move)
	victim.score = int16(score)
	victim.staticEval = int16(staticEval)
	victim.depth = int8(depth)
	victim.genBound = packGenBound(tt.generation, bound)
}

// Hashfull reports table occupancy in permille, estimated from the first
// thousand slots.
func (tt *transTable) Hashfull() int {
	var used, seen = 0, 0
	for i := range tt.buckets {
		for j := range tt.buckets[i] {
			var entry = &tt.buckets[i][j]
			if entry.depth != 0 || entry.move16 != 0 {
				used++
			}
			seen++
			if seen == 1000 {
				return used
			}
		}
	}
	return used
}
