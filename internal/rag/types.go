// Package rag holds the core pipeline types: documents produced by loaders,
// the chunks derived from them, and the content-addressed chunk identity.
package rag

import (
	"fmt"

	"github.com/google/uuid"
)

// Document is a loaded piece of text to ingest. Produced by a loader,
// immutable once created.
type Document struct {
	Source  string // filename or path the content came from
	Content string
}

// Chunk is a bounded, overlap-linked segment of one document's text.
// It is the unit of embedding and retrieval. Sequence is the chunk's
// position within its source document, starting at 0.
type Chunk struct {
	Source   string
	Content  string
	Sequence int
}

// chunkNamespace is the fixed UUIDv5 namespace for chunk ids. Changing it
// (or the id input format below) invalidates idempotent re-ingestion of
// existing collections and must be treated as a breaking migration.
var chunkNamespace = uuid.MustParse("8d6a21b6-6a8c-46cf-9f9d-04f0df2fd61e")

// ID returns the chunk's deterministic content-addressed identifier:
// a UUIDv5 over (source, sequence, content). Equal identity yields the
// same id across runs, processes, and any batching of the ingest — never
// a function of insertion order. Source is part of the hash so
// byte-identical text in two different files stays distinct in the index.
func (c Chunk) ID() string {
	name := fmt.Sprintf("%s\x00%d\x00%s", c.Source, c.Sequence, c.Content)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
