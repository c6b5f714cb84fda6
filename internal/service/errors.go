package service

import "errors"

// Sentinel errors surfaced by pipeline components. Handlers map these onto
// the HTTP error codes; internal callers branch with errors.Is.
var (
	ErrEmptyInput          = errors.New("EMPTY_INPUT: no non-whitespace content")
	ErrChunkLimitExceeded  = errors.New("CHUNK_LIMIT_EXCEEDED: chunk exceeds hard token cap")
	ErrEmptyExtract        = errors.New("EMPTY_EXTRACT: extraction yielded only whitespace")
	ErrEmbedderUnavailable = errors.New("EMBEDDER_UNAVAILABLE: embedding backend failed after retries")
	ErrForbidden           = errors.New("FORBIDDEN: entity owned by another user")
	ErrNotFound            = errors.New("NOT_FOUND: entity does not exist")
	ErrNoProviderAvailable = errors.New("NO_PROVIDER_AVAILABLE: no web search provider configured")
)
