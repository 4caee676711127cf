package domain

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable reports that an external collaborator could not be
// reached after retries.
var ErrServiceUnavailable = errors.New("service unavailable")

// IngestionError is an unrecoverable failure to load one document.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ChunkingError reports a chunker misconfiguration or an unchunkable
// document.
type ChunkingError struct {
	Reason string
}

func (e *ChunkingError) Error() string {
	return "chunking: " + e.Reason
}

// ChunkProcessingError is a recoverable failure while anonymizing a chunk.
type ChunkProcessingError struct {
	Chunk int
	Pass  string
	Err   error
}

func (e *ChunkProcessingError) Error() string {
	return fmt.Sprintf("chunk %d pass %s: %v", e.Chunk, e.Pass, e.Err)
}

func (e *ChunkProcessingError) Unwrap() error { return e.Err }

// InvalidWeightsError reports a weight vector or band table that fails
// validation at configuration load.
type InvalidWeightsError struct {
	Vector string
	Reason string
}

func (e *InvalidWeightsError) Error() string {
	return fmt.Sprintf("invalid weights %s: %s", e.Vector, e.Reason)
}
