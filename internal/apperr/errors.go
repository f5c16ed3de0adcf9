package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation marks input rejected before any chunking or storage.
	ErrValidation = errors.New("validation error")
	// ErrExtractionEmpty means no text or no chunks came out of a document.
	ErrExtractionEmpty = errors.New("nothing to index")
	// ErrUnsupportedType is returned for unknown file formats and source types.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrCollectionUnavailable wraps failures of the vector index.
	ErrCollectionUnavailable = errors.New("collection unavailable")
)

// Status maps an error to an API error code and HTTP status.
func Status(err error) (string, int) {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR", http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedType):
		return "UNSUPPORTED_TYPE", http.StatusBadRequest
	case errors.Is(err, ErrExtractionEmpty):
		return "EXTRACTION_EMPTY", http.StatusBadRequest
	case errors.Is(err, ErrCollectionUnavailable):
		return "COLLECTION_UNAVAILABLE", http.StatusBadGateway
	default:
		return "INTERNAL_ERROR", http.StatusInternalServerError
	}
}
