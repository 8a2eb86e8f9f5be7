package model

// Chunk is a bounded, retrievable passage of source text. The embedding is
// attached after generation and is absent on freshly chunked content.
type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	Content    string    `json:"content"`
	SourceURL  string    `json:"source_url"`
	Title      string    `json:"title"`
	Module     string    `json:"module"`
	Chapter    string    `json:"chapter"`
	Anchor     string    `json:"anchor"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ContentDocument is the transient extraction result handed from the
// content extractor to the chunker.
type ContentDocument struct {
	URL     string
	Title   string
	Content string
	Module  string
	Chapter string
	Anchor  string
}

const (
	SourceQdrantRetrieved = "qdrant_retrieved"
	SourceUserSelected    = "user_selected"
)

// RetrievedChunk is a chunk as it comes back from retrieval: payload
// fields plus similarity score and provenance tag.
type RetrievedChunk struct {
	ChunkID string  `json:"chunk_id"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Module  string  `json:"module"`
	Chapter string  `json:"chapter"`
	Anchor  string  `json:"anchor"`
	URL     string  `json:"url"`
	Score   float32 `json:"score"`
}

// SourceReference ties an answer back to the chunk it came from. It is
// built 1:1 from a retrieved chunk's metadata, never fabricated.
type SourceReference struct {
	ChunkID string `json:"chunk_id"`
	Module  string `json:"module"`
	Chapter string `json:"chapter"`
	Anchor  string `json:"anchor"`
	URL     string `json:"url"`
}
