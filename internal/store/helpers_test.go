package store

import (
	"time"
)

// fixtureChunks returns a small corpus covering every document type.
func fixtureChunks() []Chunk {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Chunk{
		{
			ChunkID: "ml-book-0", DocID: "ml-book", Title: "Machine Learning Basics",
			DocumentType: DocumentTypeBook, ChunkIndex: 0,
			ChunkText: "Machine learning is a field of study that gives computers the ability to learn without being explicitly programmed.",
			Snippet:   "Machine learning is a field of study", ChunkURL: "https://cdn.example.com/ml-book/0.html",
			NumTokens: 21, CreatedAt: created,
		},
		{
			ChunkID: "ml-book-1", DocID: "ml-book", Title: "Machine Learning Basics",
			DocumentType: DocumentTypeBook, ChunkIndex: 1,
			ChunkText: "Supervised learning uses labelled examples while unsupervised learning finds structure in unlabelled data.",
			NumTokens: 15, CreatedAt: created,
		},
		{
			ChunkID: "dl-blog-0", DocID: "dl-blog", Title: "Deep Learning Explained",
			DocumentType: DocumentTypeBlog, ChunkIndex: 0,
			ChunkText: "Deep learning is machine learning with many layered neural networks trained by backpropagation.",
			NumTokens: 14, CreatedAt: created,
		},
		{
			ChunkID: "attn-paper-0", DocID: "attn-paper", Title: "Attention Is All You Need",
			DocumentType: DocumentTypePaper, ChunkIndex: 0,
			ChunkText: "The transformer model relies entirely on an attention mechanism to draw global dependencies.",
			NumTokens: 14, CreatedAt: created,
		},
	}
}

// axisVector returns a unit vector along axis i, blended slightly with axis j.
func axisVector(dims, i, j int, blend float32) []float32 {
	v := make([]float32, dims)
	v[i] = 1
	if blend != 0 {
		v[j] = blend
	}
	return v
}

// withEmbeddings attaches distinct near-orthogonal embeddings.
func withEmbeddings(chunks []Chunk, dims int) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = axisVector(dims, i, 0, 0)
		out[i] = c
	}
	return out
}
