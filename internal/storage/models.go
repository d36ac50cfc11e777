package storage

import "time"

// Document is an uploaded file after successful ingestion.
// Documents carry no embedding; their chunks do.
type Document struct {
	ID         string    `json:"id"`          // UUID
	Filename   string    `json:"filename"`    // Original upload name
	Format     string    `json:"format"`      // Detected format tag: "pdf", "image", "pptx", "docx", "excel", ...
	UploadedAt time.Time `json:"upload_date"` // When ingestion completed
	FileSize   int       `json:"file_size"`   // Raw upload size in bytes
	TextLength int       `json:"text_length"` // Length of the extracted text in characters
	ChunkCount int       `json:"chunk_count"` // Number of stored chunks
}

// Chunk is a word-bounded span of a document with its embedding vector.
type Chunk struct {
	ID         string    `json:"id"`                  // UUID
	DocumentID string    `json:"document_id"`         // Links to Document.ID
	Index      int       `json:"chunk_index"`         // Window position (0, 1, 2...; gaps where empty windows were dropped)
	Text       string    `json:"text"`                // Chunk text
	Embedding  []float32 `json:"embedding,omitempty"` // Fixed-dimension vector
}

// TelemetryRecord captures one query attempt.
type TelemetryRecord struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer,omitempty"` // Empty on failure
	LatencyMS  float64   `json:"latency_ms"`
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"` // Empty on success
}

// Collection names shared by every backend.
const (
	DocumentsCollection = "documents"
	ChunksCollection    = "document_chunks"
	TelemetryCollection = "telemetry"
)

// DefaultDimension is the embedding size used by the reference pipeline.
const DefaultDimension = 384
