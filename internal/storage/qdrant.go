package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	contentVector  = "content"
	upsertBatch    = 100
	scrollPageSize = uint32(256)
)

// pointNamespace derives stable point ids for record ids that are not UUIDs.
var pointNamespace = uuid.MustParse("6f1c2f4e-1d8b-4c55-9a53-2f0d7c3e9b11")

// QdrantOptions configures the Qdrant backend.
type QdrantOptions struct {
	Host      string
	Port      int
	APIKey    string
	Dimension int
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
// Documents, chunks and telemetry live in separate collections; only chunks carry vectors.
type QdrantStorage struct {
	client    *qdrant.Client
	dimension int
}

// NewQdrantStorage creates a new Qdrant client with health validation and makes
// sure every collection exists. It fails fast if Qdrant is unreachable.
func NewQdrantStorage(ctx context.Context, opts QdrantOptions) (*QdrantStorage, error) {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = 6334
	}
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultDimension
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:    client,
		dimension: opts.Dimension,
	}

	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	if err := storage.EnsureCollections(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return storage, nil
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, newRetryBackoff(ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollections creates the documents, chunks and telemetry collections
// with their payload indexes. Idempotent.
func (s *QdrantStorage) EnsureCollections(ctx context.Context) error {
	collections := []struct {
		name    string
		vectors map[string]*qdrant.VectorParams
		indexes map[string]qdrant.FieldType
	}{
		{
			name:    DocumentsCollection,
			vectors: map[string]*qdrant.VectorParams{},
			indexes: map[string]qdrant.FieldType{"uploaded_unix": qdrant.FieldType_FieldTypeInteger},
		},
		{
			name: ChunksCollection,
			vectors: map[string]*qdrant.VectorParams{
				contentVector: {Size: uint64(s.dimension), Distance: qdrant.Distance_Cosine},
			},
			indexes: map[string]qdrant.FieldType{"document_id": qdrant.FieldType_FieldTypeKeyword},
		},
		{
			name:    TelemetryCollection,
			vectors: map[string]*qdrant.VectorParams{},
			indexes: map[string]qdrant.FieldType{"timestamp_unix": qdrant.FieldType_FieldTypeInteger},
		},
	}

	for _, c := range collections {
		exists, err := s.client.CollectionExists(ctx, c.name)
		if err != nil {
			return fmt.Errorf("failed to check collection %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.name,
			VectorsConfig:  qdrant.NewVectorsConfigMap(c.vectors),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", c.name, err)
		}
		for field, fieldType := range c.indexes {
			_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: c.name,
				FieldName:      field,
				FieldType:      fieldType.Enum(),
				Wait:           qdrant.PtrOf(true),
			})
			if err != nil {
				return fmt.Errorf("failed to create index for field %s: %w", field, err)
			}
		}
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}, newRetryBackoff(ctx))
}

func pointID(id string) *qdrant.PointId {
	if parsed, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(parsed.String())
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
	}
}

// InsertDocument upserts the chunks first and the document last. If any write
// fails, the chunks already written are removed again.
func (s *QdrantStorage) InsertDocument(ctx context.Context, doc *Document, chunks []*Chunk) error {
	if err := validateInsert(doc, chunks, s.dimension); err != nil {
		return err
	}

	for i := 0; i < len(chunks); i += upsertBatch {
		end := min(i+upsertBatch, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, chunk := range chunks[i:end] {
			points = append(points, &qdrant.PointStruct{
				Id: pointID(chunk.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					contentVector: qdrant.NewVector(chunk.Embedding...),
				}),
				Payload: qdrant.NewValueMap(map[string]any{
					"id":          chunk.ID,
					"document_id": chunk.DocumentID,
					"chunk_index": chunk.Index,
					"text":        chunk.Text,
				}),
			})
		}
		if err := s.upsertWithRetry(ctx, ChunksCollection, points); err != nil {
			s.compensate(doc.ID)
			return fmt.Errorf("failed to upsert chunk batch %d-%d: %w", i, end, err)
		}
	}

	point := &qdrant.PointStruct{
		Id:      pointID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			"id":            doc.ID,
			"filename":      doc.Filename,
			"format":        doc.Format,
			"uploaded_at":   doc.UploadedAt.UTC().Format(time.RFC3339Nano),
			"uploaded_unix": doc.UploadedAt.UnixNano(),
			"file_size":     doc.FileSize,
			"text_length":   doc.TextLength,
			"chunk_count":   doc.ChunkCount,
		}),
	}
	if err := s.upsertWithRetry(ctx, DocumentsCollection, []*qdrant.PointStruct{point}); err != nil {
		s.compensate(doc.ID)
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// compensate removes partially written chunks. It runs on a fresh context so a
// cancelled request still cleans up.
func (s *QdrantStorage) compensate(documentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, _ = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ChunksCollection,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
		Wait:           qdrant.PtrOf(true),
	})
}

// GetDocument retrieves a document by ID.
// Returns ErrDocumentNotFound if document doesn't exist.
func (s *QdrantStorage) GetDocument(ctx context.Context, id string) (*Document, error) {
	result, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: DocumentsCollection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrDocumentNotFound
	}
	return documentFromPayload(result[0].Payload), nil
}

func (s *QdrantStorage) ListDocuments(ctx context.Context) ([]*Document, error) {
	total, err := s.countPoints(ctx, DocumentsCollection, nil)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, total)
	if total == 0 {
		return docs, nil
	}
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: DocumentsCollection,
		Limit:          qdrant.PtrOf(uint32(total)),
		OrderBy:        &qdrant.OrderBy{Key: "uploaded_unix", Direction: qdrant.Direction_Asc.Enum()},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll documents: %w", err)
	}
	for _, point := range results {
		docs = append(docs, documentFromPayload(point.Payload))
	}
	return docs, nil
}

func documentFromPayload(payload map[string]*qdrant.Value) *Document {
	uploadedAt, err := time.Parse(time.RFC3339Nano, payload["uploaded_at"].GetStringValue())
	if err != nil {
		uploadedAt = time.Time{}
	}
	return &Document{
		ID:         payload["id"].GetStringValue(),
		Filename:   payload["filename"].GetStringValue(),
		Format:     payload["format"].GetStringValue(),
		UploadedAt: uploadedAt,
		FileSize:   int(payload["file_size"].GetIntegerValue()),
		TextLength: int(payload["text_length"].GetIntegerValue()),
		ChunkCount: int(payload["chunk_count"].GetIntegerValue()),
	}
}

func (s *QdrantStorage) DeleteDocument(ctx context.Context, id string) (int, error) {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return 0, err
	}
	removed, err := s.countPoints(ctx, ChunksCollection, documentFilter(id))
	if err != nil {
		return 0, err
	}
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ChunksCollection,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(id)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: DocumentsCollection,
		Points:         qdrant.NewPointsSelector(pointID(id)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete document: %w", err)
	}
	return removed, nil
}

func (s *QdrantStorage) CountDocuments(ctx context.Context) (int, error) {
	return s.countPoints(ctx, DocumentsCollection, nil)
}

// ScanChunks pages through the chunk collection in point id order.
func (s *QdrantStorage) ScanChunks(ctx context.Context, limit int) ([]*Chunk, error) {
	return s.scrollChunks(ctx, nil, limit)
}

func (s *QdrantStorage) ListChunks(ctx context.Context, documentID string) ([]*Chunk, error) {
	chunks, err := s.scrollChunks(ctx, documentFilter(documentID), 0)
	if err != nil {
		return nil, err
	}
	// Point ids carry no ordering, so restore chunk order.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})
	return chunks, nil
}

func (s *QdrantStorage) scrollChunks(ctx context.Context, filter *qdrant.Filter, limit int) ([]*Chunk, error) {
	var (
		chunks []*Chunk
		offset *qdrant.PointId
	)
	for {
		page := scrollPageSize
		if limit > 0 {
			remaining := limit - len(chunks)
			if remaining <= 0 {
				break
			}
			page = min(page, uint32(remaining))
		}
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: ChunksCollection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(page),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll chunks: %w", err)
		}
		for _, point := range results {
			chunks = append(chunks, chunkFromPoint(point))
		}
		if uint32(len(results)) < page {
			break
		}
		offset = results[len(results)-1].Id
	}
	if chunks == nil {
		chunks = []*Chunk{}
	}
	return chunks, nil
}

func chunkFromPoint(point *qdrant.RetrievedPoint) *Chunk {
	payload := point.Payload
	chunk := &Chunk{
		ID:         payload["id"].GetStringValue(),
		DocumentID: payload["document_id"].GetStringValue(),
		Index:      int(payload["chunk_index"].GetIntegerValue()),
		Text:       payload["text"].GetStringValue(),
	}
	if named := point.GetVectors().GetVectors().GetVectors(); named != nil {
		if v, ok := named[contentVector]; ok {
			if dense := v.GetDense(); dense != nil {
				chunk.Embedding = dense.GetData()
			} else {
				chunk.Embedding = v.GetData()
			}
		}
	}
	return chunk
}

func (s *QdrantStorage) CountChunks(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return s.countPoints(ctx, ChunksCollection, nil)
	}
	return s.countPoints(ctx, ChunksCollection, documentFilter(documentID))
}

func (s *QdrantStorage) InsertTelemetry(ctx context.Context, rec *TelemetryRecord) error {
	point := &qdrant.PointStruct{
		Id:      pointID(rec.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			"id":             rec.ID,
			"query":          rec.Query,
			"answer":         rec.Answer,
			"latency_ms":     rec.LatencyMS,
			"token_count":    rec.TokenCount,
			"timestamp":      rec.Timestamp.UTC().Format(time.RFC3339Nano),
			"timestamp_unix": rec.Timestamp.UnixNano(),
			"success":        rec.Success,
			"error":          rec.Error,
		}),
	}
	if err := s.upsertWithRetry(ctx, TelemetryCollection, []*qdrant.PointStruct{point}); err != nil {
		return fmt.Errorf("failed to upsert telemetry: %w", err)
	}
	return nil
}

func (s *QdrantStorage) ListTelemetry(ctx context.Context, limit int) ([]*TelemetryRecord, error) {
	if limit <= 0 {
		total, err := s.countPoints(ctx, TelemetryCollection, nil)
		if err != nil {
			return nil, err
		}
		limit = total
	}
	records := make([]*TelemetryRecord, 0, limit)
	if limit == 0 {
		return records, nil
	}
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: TelemetryCollection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		OrderBy:        &qdrant.OrderBy{Key: "timestamp_unix", Direction: qdrant.Direction_Desc.Enum()},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll telemetry: %w", err)
	}
	for _, point := range results {
		p := point.Payload
		ts, err := time.Parse(time.RFC3339Nano, p["timestamp"].GetStringValue())
		if err != nil {
			ts = time.Time{}
		}
		records = append(records, &TelemetryRecord{
			ID:         p["id"].GetStringValue(),
			Query:      p["query"].GetStringValue(),
			Answer:     p["answer"].GetStringValue(),
			LatencyMS:  p["latency_ms"].GetDoubleValue(),
			TokenCount: int(p["token_count"].GetIntegerValue()),
			Timestamp:  ts,
			Success:    p["success"].GetBoolValue(),
			Error:      p["error"].GetStringValue(),
		})
	}
	return records, nil
}

func (s *QdrantStorage) CountTelemetry(ctx context.Context) (int, error) {
	return s.countPoints(ctx, TelemetryCollection, nil)
}

func (s *QdrantStorage) countPoints(ctx context.Context, collection string, filter *qdrant.Filter) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return int(n), nil
}
