package storage

// Entry is one indexed chunk: its content-addressed id, embedding vector,
// original text, and enough metadata to cite the source.
type Entry struct {
	ID        string
	Embedding []float32
	Text      string
	Source    string
	Sequence  int
}

// ScoredEntry is a query result: an entry plus its cosine distance from
// the query vector (smaller is closer).
type ScoredEntry struct {
	Entry
	Distance float64
}

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "documents"
