package search

import (
	"container/heap"
	"log/slog"

	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

// RecordLookup resolves a chunk id to its stored record.
type RecordLookup interface {
	Lookup(chunkID string) (store.Chunk, bool)
}

// HitLookup is a RecordLookup over the raw hits of both branches.
type HitLookup map[string]store.Chunk

// Lookup implements RecordLookup.
func (m HitLookup) Lookup(chunkID string) (store.Chunk, bool) {
	c, ok := m[chunkID]
	return c, ok
}

// BuildLookup indexes lexical hits first, then vector hits not already present.
// Chunks are immutable, so both copies of a chunk carry the same fields.
func BuildLookup(lexical, vector []RetrievalHit) HitLookup {
	m := make(HitLookup, len(lexical)+len(vector))
	for _, h := range lexical {
		if _, ok := m[h.ChunkID]; !ok {
			m[h.ChunkID] = h.Chunk
		}
	}
	for _, h := range vector {
		if _, ok := m[h.ChunkID]; !ok {
			m[h.ChunkID] = h.Chunk
		}
	}
	return m
}

// Assembler turns fused scores into the final ordered result list.
type Assembler struct {
	// MinScore drops entries scoring below it. Zero keeps everything.
	MinScore float64

	// RequireBothSignals drops entries found by only one branch.
	RequireBothSignals bool
}

// Assemble pops fused entries in descending score order (ties by chunk id
// ascending) and accepts them until topN results are collected. Entries below
// MinScore end the scan, since everything after them scores lower. Records
// are looked up only for accepted entries.
func (a Assembler) Assemble(fused map[string]FusedScore, lookup RecordLookup, topN int) []SearchResult {
	if topN <= 0 || len(fused) == 0 {
		return []SearchResult{}
	}
	results := make([]SearchResult, 0, min(topN, len(fused)))

	h := make(scoreHeap, 0, len(fused))
	for _, fs := range fused {
		h = append(h, fs)
	}
	heap.Init(&h)

	for h.Len() > 0 && len(results) < topN {
		fs := heap.Pop(&h).(FusedScore)
		if fs.Score < a.MinScore {
			break
		}
		if a.RequireBothSignals && !fs.InBothLists() {
			continue
		}

		chunk, ok := lookup.Lookup(fs.ChunkID)
		if !ok {
			slog.Warn("fused_chunk_missing_record", slog.String("chunk_id", fs.ChunkID))
			continue
		}
		results = append(results, newSearchResult(fs, chunk))
	}

	return results
}

// less orders by score descending, then chunk id ascending.
func less(a, b FusedScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ChunkID < b.ChunkID
}

// scoreHeap is a max-heap of fused scores under less.
type scoreHeap []FusedScore

func (h scoreHeap) Len() int           { return len(h) }
func (h scoreHeap) Less(i, j int) bool { return less(h[i], h[j]) }
func (h scoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *scoreHeap) Push(x any) { *h = append(*h, x.(FusedScore)) }

func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
