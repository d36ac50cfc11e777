package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in process memory. Chunks are scanned in
// insertion order.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	docs      map[string]*Document
	docOrder  []string
	chunks    []*Chunk
	telemetry []*TelemetryRecord
}

// NewMemoryStore creates an empty in-memory store for vectors of the given dimension.
func NewMemoryStore(dimension int) *MemoryStore {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &MemoryStore{
		dimension: dimension,
		docs:      make(map[string]*Document),
	}
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) InsertDocument(_ context.Context, doc *Document, chunks []*Chunk) error {
	if err := validateInsert(doc, chunks, s.dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *doc
	s.docs[doc.ID] = &stored
	s.docOrder = append(s.docOrder, doc.ID)
	for _, chunk := range chunks {
		c := *chunk
		c.Embedding = cloneVector(chunk.Embedding)
		s.chunks = append(s.chunks, &c)
	}
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	out := *doc
	return &out, nil
}

func (s *MemoryStore) ListDocuments(context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]*Document, 0, len(s.docOrder))
	for _, id := range s.docOrder {
		doc := *s.docs[id]
		docs = append(docs, &doc)
	}
	return docs, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return 0, ErrDocumentNotFound
	}
	delete(s.docs, id)
	for i, docID := range s.docOrder {
		if docID == id {
			s.docOrder = append(s.docOrder[:i], s.docOrder[i+1:]...)
			break
		}
	}

	kept := s.chunks[:0]
	removed := 0
	for _, chunk := range s.chunks {
		if chunk.DocumentID == id {
			removed++
			continue
		}
		kept = append(kept, chunk)
	}
	// Clear the tail so removed chunks can be collected.
	for i := len(kept); i < len(s.chunks); i++ {
		s.chunks[i] = nil
	}
	s.chunks = kept
	return removed, nil
}

func (s *MemoryStore) CountDocuments(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *MemoryStore) ScanChunks(_ context.Context, limit int) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.chunks)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Chunk, 0, n)
	for _, chunk := range s.chunks[:n] {
		c := *chunk
		c.Embedding = cloneVector(chunk.Embedding)
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) ListChunks(_ context.Context, documentID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Chunk
	for _, chunk := range s.chunks {
		if chunk.DocumentID != documentID {
			continue
		}
		c := *chunk
		c.Embedding = cloneVector(chunk.Embedding)
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if documentID == "" {
		return len(s.chunks), nil
	}
	count := 0
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) InsertTelemetry(_ context.Context, rec *TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *rec
	s.telemetry = append(s.telemetry, &r)
	return nil
}

func (s *MemoryStore) ListTelemetry(_ context.Context, limit int) ([]*TelemetryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.telemetry)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*TelemetryRecord, 0, n)
	for i := len(s.telemetry) - 1; i >= 0 && len(out) < n; i-- {
		r := *s.telemetry[i]
		out = append(out, &r)
	}
	return out, nil
}

func (s *MemoryStore) CountTelemetry(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.telemetry), nil
}
