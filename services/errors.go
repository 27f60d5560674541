package services

import "errors"

// Error taxonomy for the ingestion and retrieval pipeline.
//
// Caller errors (empty input, oversized query, bad ids) are never
// retried. Infrastructure errors (index unavailable, generator down,
// embedding count mismatch) are logged with context and reflected by
// leaving is_processed=false on the document rather than crashing the
// request. Auth errors are fatal and surfaced immediately.
var (
	ErrEmptyContent        = errors.New("document content is empty")
	ErrEmptyTitle          = errors.New("document title is empty")
	ErrEmptyInput          = errors.New("input text is empty")
	ErrInvalidQuery        = errors.New("query is empty or exceeds the length bound")
	ErrInvalidDocumentType = errors.New("unsupported document type")

	ErrEmbeddingCountMismatch = errors.New("embedding batch count does not match chunk count")
	ErrIndexUnavailable       = errors.New("vector index unavailable")
	ErrGeneratorUnavailable   = errors.New("generation model unavailable")
	ErrAuth                   = errors.New("model credentials rejected")

	ErrDocumentNotFound = errors.New("document not found")
)

// IsCallerError reports whether err is fixable by the caller and must
// not be retried.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidDocumentType) ||
		errors.Is(err, ErrDocumentNotFound)
}

// IsRetryable reports whether err is a transient infrastructure
// failure worth retrying with backoff. Auth and caller errors are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrAuth) || IsCallerError(err) {
		return false
	}
	return true
}
