package storage

import (
	"errors"
	"fmt"

	"github.com/bull/ragdex/internal/faults"
)

var (
	ErrStoreUnreachable = errors.New("vector store unreachable")

	// ErrDimensionMismatch is fatal: a vector whose dimension differs from
	// the collection's means the embedding model changed underneath it.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", faults.ErrConfiguration)
)
