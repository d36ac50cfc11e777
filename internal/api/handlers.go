package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bull/rag-assistant/internal/rag"
	"github.com/bull/rag-assistant/internal/storage"
)

type handlers struct {
	svc       Service
	maxUpload int64
	logger    *slog.Logger
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k" binding:"gte=0"`
}

type deleteResponse struct {
	Message       string `json:"message"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "RAG Assistant API"})
}

func (h *handlers) upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUpload {
		abortWithError(c, &http.MaxBytesError{Limit: h.maxUpload})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			abortWithError(c, err)
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "multipart field \"file\" is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		abortWithError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		abortWithError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	doc, err := h.svc.Upload(c.Request.Context(), filepath.Base(fh.Filename), data)
	if err != nil {
		h.logger.Error("Error uploading document", "filename", fh.Filename, "error", err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *handlers) listDocuments(c *gin.Context) {
	docs, err := h.svc.ListDocuments(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if docs == nil {
		docs = []*storage.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

func (h *handlers) deleteDocument(c *gin.Context) {
	n, err := h.svc.DeleteDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponse{Message: "Document deleted successfully", ChunksDeleted: n})
}

func (h *handlers) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	resp, err := h.svc.Query(c.Request.Context(), rag.Request{Query: req.Query, TopK: req.TopK})
	if err != nil {
		if !errors.Is(err, rag.ErrNoDocuments) {
			h.logger.Error("Error processing query", "error", err)
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) search(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	results, err := h.svc.Search(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *handlers) stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) history(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	records, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if records == nil {
		records = []*storage.TelemetryRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *handlers) dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
