package vector

import (
	"context"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	payloadText          = "text"
	payloadDocumentID    = "document_id"
	payloadFragmentIndex = "fragment_index"
	payloadFilename      = "filename"
)

// QdrantIndex implements Index using Qdrant over gRPC.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
	logger      *slog.Logger
}

// NewQdrant creates a Qdrant-backed index for a cosine collection of
// the given dimension. The connection is owned by the index and
// released by Close.
func NewQdrant(host string, port int, collection string, dimension int, logger *slog.Logger) (*QdrantIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("qdrant: invalid dimension %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimension:   dimension,
		logger:      logger,
	}, nil
}

// Dimension returns the configured vector dimension.
func (q *QdrantIndex) Dimension() int { return q.dimension }

// Ping verifies the Qdrant connection by looking up the collection.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	_, err := q.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: q.collection,
	})
	if err != nil {
		return fmt.Errorf("qdrant ping: %w", err)
	}
	return nil
}

// EnsureCollection creates the cosine collection if it does not exist.
// Losing a creation race to a concurrent caller counts as success.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: q.collection,
	})
	if err != nil {
		return fmt.Errorf("qdrant collection lookup: %w", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("qdrant create collection %q: %w", q.collection, err)
	}
	q.logger.Info("created qdrant collection", "collection", q.collection, "dimension", q.dimension)
	return nil
}

// Upsert writes points. Points without a vector are skipped; a vector
// of the wrong dimension fails the whole call. A missing collection is
// created and the write retried once.
func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	structs := make([]*pb.PointStruct, 0, len(points))
	for i, p := range points {
		if len(p.Vector) == 0 {
			q.logger.Debug("skipping point without vector",
				"document_id", p.DocumentID, "fragment_index", p.FragmentIndex)
			continue
		}
		if len(p.Vector) != q.dimension {
			return fmt.Errorf("qdrant: dimension mismatch at point %d: expected %d, got %d",
				i, q.dimension, len(p.Vector))
		}
		structs = append(structs, &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}}},
			Payload: map[string]*pb.Value{
				payloadText:          {Kind: &pb.Value_StringValue{StringValue: p.Text}},
				payloadDocumentID:    {Kind: &pb.Value_StringValue{StringValue: p.DocumentID}},
				payloadFragmentIndex: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.FragmentIndex)}},
				payloadFilename:      {Kind: &pb.Value_StringValue{StringValue: p.Filename}},
			},
		})
	}
	if len(structs) == 0 {
		return nil
	}

	wait := true
	req := &pb.UpsertPoints{
		CollectionName: q.collection,
		Points:         structs,
		Wait:           &wait,
	}
	_, err := q.points.Upsert(ctx, req)
	if status.Code(err) == codes.NotFound {
		// Collection was never initialized; writes must not fail for that.
		if ensureErr := q.EnsureCollection(ctx); ensureErr != nil {
			return ensureErr
		}
		_, err = q.points.Upsert(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Search returns up to limit matches ordered by descending similarity.
// Connection or service errors degrade to an empty result list: the
// caller must treat that as "cannot currently score", never as zero.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}
	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if filter != nil {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key:   payloadFilename,
						Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: filter.Filename}},
					},
				},
			}},
		}
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		q.logger.Warn("qdrant search failed", "collection", q.collection, "error", err)
		return nil, nil
	}

	matches := make([]Match, len(resp.Result))
	for i, pt := range resp.Result {
		matches[i] = Match{
			ID:            pt.Id.GetUuid(),
			Score:         pt.Score,
			Text:          pt.Payload[payloadText].GetStringValue(),
			FragmentIndex: int(pt.Payload[payloadFragmentIndex].GetIntegerValue()),
			Filename:      pt.Payload[payloadFilename].GetStringValue(),
		}
	}
	return matches, nil
}

// Close releases the gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

var _ Index = (*QdrantIndex)(nil)
