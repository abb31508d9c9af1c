package search

// FusedScore is the RRF score of one chunk along with the ranks it was fused from.
type FusedScore struct {
	ChunkID     string
	Score       float64
	LexicalRank int // 1-based, 0 if absent from the lexical list
	VectorRank  int // 1-based, 0 if absent from the vector list
}

// InBothLists reports whether the chunk was returned by both branches.
func (s FusedScore) InBothLists() bool {
	return s.LexicalRank > 0 && s.VectorRank > 0
}

// RRFFusion combines lexical and vector hit lists using
// Reciprocal Rank Fusion.
//
// Algorithm: RRF_score(d) = Σ 1 / (K + rank_i(d))
//
// Where:
//   - K = damping constant (default: 60)
//   - rank_i = position in ranked list i (1-indexed)
//
// A chunk absent from a list gets no contribution from it. Scores are not
// normalized, so the min-score threshold applies to raw RRF values.
type RRFFusion struct {
	K int // RRF damping constant (default: 60)
}

// NewRRFFusion creates an RRF fusion with the given K.
// If k <= 0, defaults to 60.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// ExtractRanks maps each chunk id to its 1-based position in hits.
// A repeated id keeps its first, best rank.
func ExtractRanks(hits []RetrievalHit) map[string]int {
	ranks := make(map[string]int, len(hits))
	for i, h := range hits {
		if _, seen := ranks[h.ChunkID]; !seen {
			ranks[h.ChunkID] = i + 1
		}
	}
	return ranks
}

// Fuse returns the fused score of every chunk in the union of both lists.
// Ranks come from list position, not from the hits' Rank fields.
func (f *RRFFusion) Fuse(lexical, vector []RetrievalHit) map[string]FusedScore {
	lexRanks := ExtractRanks(lexical)
	vecRanks := ExtractRanks(vector)

	fused := make(map[string]FusedScore, len(lexRanks)+len(vecRanks))
	for id, rank := range lexRanks {
		fs := fused[id]
		fs.ChunkID = id
		fs.LexicalRank = rank
		fs.Score += f.contribution(rank)
		fused[id] = fs
	}
	for id, rank := range vecRanks {
		fs := fused[id]
		fs.ChunkID = id
		fs.VectorRank = rank
		fs.Score += f.contribution(rank)
		fused[id] = fs
	}
	return fused
}

func (f *RRFFusion) contribution(rank int) float64 {
	return 1.0 / float64(f.K+rank)
}
