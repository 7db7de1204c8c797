package databases

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"manifold/internal/rag/kind"
)

// Qdrant only allows UUIDs and positive integers as point IDs. So we
// generate a deterministic UUID based on the original chunk id and store the
// original id in the payload, recovered on search and delete.
const PAYLOAD_ID_FIELD = "_original_id"

type qdrantVector struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string // cosine|l2|euclidean|ip|dot|manhattan
}

// NewQdrantVector creates a new Qdrant-backed VectorStore.
//
// Note: the Go client uses Qdrant's gRPC API, which runs on port 6334 by
// default. Optionally, an API key can be provided as a query parameter:
// "http://localhost:6334?api_key=your_api_key".
func NewQdrantVector(dsn string, collection string, dimensions int, metric string) (VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse Qdrant DSN: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in Qdrant DSN: %w", err)
	}
	config := &qdrant.Config{Host: host, Port: portNum}
	if parsedURL.Scheme == "https" {
		config.UseTLS = true
	}
	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		config.APIKey = apiKey
	}
	client, err := qdrant.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create Qdrant client: %w", err)
	}
	qv := &qdrantVector{
		client:     client,
		collection: collection,
		dimension:  dimensions,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	ctx := context.Background()
	if err := qv.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return qv, nil
}

func (q *qdrantVector) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (q *qdrantVector) Dimension() int { return q.dimension }

func (q *qdrantVector) checkDim(v []float32) error {
	if q.dimension > 0 && len(v) != q.dimension {
		return kind.Wrap(kind.ErrDimensionMismatch, "qdrantVector", nil)
	}
	return nil
}

func pointIDFor(chunkID string) (pointID *qdrant.PointId, isMapped bool) {
	uuidStr := chunkID
	mapped := false
	if _, err := uuid.Parse(chunkID); err != nil {
		uuidStr = uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
		mapped = true
	}
	return qdrant.NewIDUUID(uuidStr), mapped
}

func (q *qdrantVector) Upsert(ctx context.Context, chunkID string, vector []float32, metadata map[string]string) error {
	if err := q.checkDim(vector); err != nil {
		return err
	}
	pointID, mapped := pointIDFor(chunkID)
	metadataAny := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		metadataAny[k] = v
	}
	if mapped {
		metadataAny[PAYLOAD_ID_FIELD] = chunkID
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      pointID,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(metadataAny),
		}},
	})
	if err != nil {
		return kind.Wrap(kind.ErrStoreError, "qdrantVector.Upsert", err)
	}
	return nil
}

func (q *qdrantVector) BatchUpsert(ctx context.Context, records []VectorRecord) error {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		if err := q.checkDim(r.Vector); err != nil {
			return err
		}
		pointID, mapped := pointIDFor(r.ChunkID)
		metadataAny := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			metadataAny[k] = v
		}
		if mapped {
			metadataAny[PAYLOAD_ID_FIELD] = r.ChunkID
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		points = append(points, &qdrant.PointStruct{
			Id:      pointID,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(metadataAny),
		})
	}
	if len(points) == 0 {
		return nil
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	if err != nil {
		return kind.Wrap(kind.ErrStoreError, "qdrantVector.BatchUpsert", err)
	}
	return nil
}

// Delete removes every record whose metadata document_id matches, via a
// filter-based selector rather than a single point id.
func (q *qdrantVector) Delete(ctx context.Context, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)}},
			},
		},
	})
	if err != nil {
		return kind.Wrap(kind.ErrStoreError, "qdrantVector.Delete", err)
	}
	return nil
}

func (q *qdrantVector) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error) {
	if err := q.checkDim(vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	var queryFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	searchResult, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "qdrantVector.SimilaritySearch", err)
	}
	results := make([]VectorResult, 0, len(searchResult))
	for _, hit := range searchResult {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		metadata := make(map[string]string)
		var originalID string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == PAYLOAD_ID_FIELD {
					originalID = v.GetStringValue()
					continue
				}
				metadata[k] = v.GetStringValue()
			}
		}
		chunkID := originalID
		if chunkID == "" {
			chunkID = uuidStr
		}
		results = append(results, VectorResult{ChunkID: chunkID, Score: float64(hit.Score), Metadata: metadata})
	}
	return results, nil
}

func (q *qdrantVector) Close() error { return q.client.Close() }
