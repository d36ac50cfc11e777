package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bull/rag-assistant/internal/embedding"
	"github.com/bull/rag-assistant/internal/extract"
	"github.com/bull/rag-assistant/internal/rag"
	"github.com/bull/rag-assistant/internal/storage"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var extractErr *extract.ExtractionError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &extractErr),
		errors.Is(err, extract.ErrEmptyContent),
		errors.Is(err, embedding.ErrEmptyText),
		errors.Is(err, rag.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrDocumentNotFound),
		errors.Is(err, rag.ErrNoDocuments):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStoreUnreachable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes {"detail": msg} with the mapped status.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"detail": detail(err, status)})
}

func detail(err error, status int) string {
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound):
		return "Document not found"
	case errors.Is(err, rag.ErrNoDocuments):
		return "No documents available. Please upload documents first."
	case status == http.StatusRequestEntityTooLarge:
		return "File too large"
	}
	return err.Error()
}
