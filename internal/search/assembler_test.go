package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

func fusedOf(scores map[string]float64) map[string]FusedScore {
	out := make(map[string]FusedScore, len(scores))
	for id, s := range scores {
		out[id] = FusedScore{ChunkID: id, Score: s, LexicalRank: 1}
	}
	return out
}

func lookupOf(ids ...string) HitLookup {
	m := make(HitLookup, len(ids))
	for _, id := range ids {
		m[id] = chunkOf(id, store.DocumentTypeBook)
	}
	return m
}

// =============================================================================
// Ordering
// =============================================================================

func TestAssembler_OrdersDescendingWithIDTieBreak(t *testing.T) {
	// Given: scores with a tie between b and c
	fused := fusedOf(map[string]float64{"a": 0.02, "c": 0.03, "b": 0.03, "d": 0.025})

	// When: assembling
	results := Assembler{}.Assemble(fused, lookupOf("a", "b", "c", "d"), 10)

	// Then: descending by score, ties by id
	assert.Equal(t, []string{"b", "c", "d", "a"}, resultIDs(results))
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].RRFScore, results[i].RRFScore)
	}
}

func TestAssembler_IsDeterministic(t *testing.T) {
	scores := map[string]float64{}
	for i := range 50 {
		scores[fmt.Sprintf("id-%02d", i)] = float64(i%5) / 100
	}
	fused := fusedOf(scores)
	lookup := make(HitLookup)
	for id := range scores {
		lookup[id] = chunkOf(id, store.DocumentTypeBook)
	}

	first := resultIDs(Assembler{}.Assemble(fused, lookup, 20))
	for range 10 {
		assert.Equal(t, first, resultIDs(Assembler{}.Assemble(fused, lookup, 20)))
	}
}

// =============================================================================
// Threshold
// =============================================================================

func TestAssembler_DropsBelowMinScore(t *testing.T) {
	// Given: three entries, one below the floor
	fused := fusedOf(map[string]float64{"hi": 0.03, "mid": 0.0155, "lo": 0.0154})

	// When: assembling with room for all of them
	results := Assembler{MinScore: 0.0155}.Assemble(fused, lookupOf("hi", "mid", "lo"), 10)

	// Then: the entry below the floor is excluded, the one at the floor kept
	assert.Equal(t, []string{"hi", "mid"}, resultIDs(results))
}

func TestAssembler_ThresholdDoesNotLookUpRejected(t *testing.T) {
	fused := fusedOf(map[string]float64{"hi": 0.03, "lo1": 0.001, "lo2": 0.002})
	lookup := &countingLookup{inner: lookupOf("hi", "lo1", "lo2")}

	results := Assembler{MinScore: 0.01}.Assemble(fused, lookup, 10)

	assert.Len(t, results, 1)
	assert.Equal(t, 1, lookup.lookups)
}

func TestAssembler_ZeroMinScoreKeepsAll(t *testing.T) {
	fused := fusedOf(map[string]float64{"a": 0.001, "b": 0.0001})

	results := Assembler{}.Assemble(fused, lookupOf("a", "b"), 10)

	assert.Len(t, results, 2)
}

func TestAssembler_AllBelowThresholdIsEmptyNotNil(t *testing.T) {
	fused := fusedOf(map[string]float64{"a": 0.001})

	results := Assembler{MinScore: DefaultMinScore}.Assemble(fused, lookupOf("a"), 10)

	require.NotNil(t, results)
	assert.Empty(t, results)
}

// =============================================================================
// Top-N Short Circuit
// =============================================================================

func TestAssembler_StopsAtTopN(t *testing.T) {
	// Given: a large candidate pool
	scores := map[string]float64{}
	ids := make([]string, 0, 200)
	for i := range 200 {
		id := fmt.Sprintf("c%03d", i)
		scores[id] = 1.0 / float64(61+i)
		ids = append(ids, id)
	}
	lookup := &countingLookup{inner: lookupOf(ids...)}

	// When: assembling only three results
	results := Assembler{}.Assemble(fusedOf(scores), lookup, 3)

	// Then: exactly three records were resolved
	assert.Equal(t, []string{"c000", "c001", "c002"}, resultIDs(results))
	assert.Equal(t, 3, lookup.lookups)
}

func TestAssembler_TopNLargerThanPool(t *testing.T) {
	results := Assembler{}.Assemble(fusedOf(map[string]float64{"a": 0.1}), lookupOf("a"), 100)

	assert.Len(t, results, 1)
}

func TestAssembler_NonPositiveTopN(t *testing.T) {
	fused := fusedOf(map[string]float64{"a": 0.1})

	assert.Empty(t, Assembler{}.Assemble(fused, lookupOf("a"), 0))
	assert.Empty(t, Assembler{}.Assemble(fused, lookupOf("a"), -1))
}

// =============================================================================
// Dual Signal Policy
// =============================================================================

func TestAssembler_RequireBothSignals(t *testing.T) {
	// Given: lexical [A,B,C] and vector [B,A,D]
	lex := retrievalHitsOf("A", "B", "C")
	vec := retrievalHitsOf("B", "A", "D")
	fused := NewRRFFusion(60).Fuse(lex, vec)
	lookup := BuildLookup(lex, vec)

	// When: the dual-signal policy is off (default) and on
	single := Assembler{MinScore: DefaultMinScore}.Assemble(fused, lookup, 10)
	both := Assembler{MinScore: DefaultMinScore, RequireBothSignals: true}.Assemble(fused, lookup, 10)

	// Then: single-signal chunks are kept only by default
	assert.Equal(t, []string{"A", "B", "C", "D"}, resultIDs(single))
	assert.Equal(t, []string{"A", "B"}, resultIDs(both))
}

func TestAssembler_RequireBothSignalsStillFillsTopN(t *testing.T) {
	// Given: the top lexical chunk has no vector signal
	lex := retrievalHitsOf("solo", "X", "Y")
	vec := retrievalHitsOf("X", "Y")
	fused := NewRRFFusion(60).Fuse(lex, vec)

	results := Assembler{RequireBothSignals: true}.Assemble(fused, BuildLookup(lex, vec), 2)

	assert.Equal(t, []string{"X", "Y"}, resultIDs(results))
}

// =============================================================================
// Record Lookup
// =============================================================================

func TestBuildLookup_UnionPrefersLexicalCopy(t *testing.T) {
	lex := retrievalHitsOf("A", "B")
	vec := retrievalHitsOf("B", "C")
	vec[0].Chunk.Title = "vector copy"

	lookup := BuildLookup(lex, vec)

	assert.Len(t, lookup, 3)
	b, ok := lookup.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, "Title B", b.Title)
	_, ok = lookup.Lookup("Z")
	assert.False(t, ok)
}

func TestAssembler_MapsRecordFields(t *testing.T) {
	fused := map[string]FusedScore{"A": {ChunkID: "A", Score: 0.5, LexicalRank: 1}}
	chunk := chunkOf("A", store.DocumentTypePaper)
	chunk.ChunkIndex = 7

	results := Assembler{}.Assemble(fused, HitLookup{"A": chunk}, 1)

	require.Len(t, results, 1)
	assert.Equal(t, SearchResult{
		RRFScore:     0.5,
		ChunkText:    "text of A",
		Snippet:      "snippet of A",
		ChunkURL:     "https://cdn.example.com/A",
		Title:        "Title A",
		DocID:        "doc-A",
		ChunkIndex:   7,
		DocumentType: "paper",
		ChunkID:      "A",
	}, results[0])
}

func TestAssembler_MissingRecordIsSkipped(t *testing.T) {
	fused := fusedOf(map[string]float64{"known": 0.02, "ghost": 0.03})

	results := Assembler{}.Assemble(fused, lookupOf("known"), 10)

	assert.Equal(t, []string{"known"}, resultIDs(results))
}
