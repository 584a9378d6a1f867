// Package vectorstore provides vector index implementations for embedded
// property chunks.
package vectorstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/domain/search"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// ErrDimension indicates a point whose vector does not match the collection.
var ErrDimension = errors.New("vector dimension mismatch")

// pointsAPI is the subset of the Qdrant points service in use.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of the Qdrant collections service in use.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// healthAPI is the subset of the Qdrant root service in use.
type healthAPI interface {
	HealthCheck(ctx context.Context, in *pb.HealthCheckRequest, opts ...grpc.CallOption) (*pb.HealthCheckReply, error)
}

// QdrantOptions configures a Qdrant connection.
type QdrantOptions struct {
	Addr       string
	Collection string
	APIKey     string
	UseTLS     bool
	Logger     *slog.Logger
}

// Qdrant is a property.VectorIndex and search.Searcher backed by Qdrant
// over gRPC.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	health      healthAPI
	collection  string
	dimension   int
	logger      *slog.Logger
}

// NewQdrant creates a Qdrant client. grpc.NewClient connects lazily, so
// call Ping to verify the server is reachable.
func NewQdrant(opts QdrantOptions) (*Qdrant, error) {
	if opts.Addr == "" {
		return nil, errors.New("qdrant: address is required")
	}
	if opts.Collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}

	creds := insecure.NewCredentials()
	if opts.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if opts.APIKey != "" {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(apiKeyInterceptor(opts.APIKey)))
	}

	conn, err := grpc.NewClient(opts.Addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", opts.Addr, err)
	}

	q := newQdrantWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), pb.NewQdrantClient(conn), opts.Collection, opts.Logger)
	q.conn = conn
	return q, nil
}

func newQdrantWithClients(points pointsAPI, collections collectionsAPI, health healthAPI, collection string, logger *slog.Logger) *Qdrant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Qdrant{
		points:      points,
		collections: collections,
		health:      health,
		collection:  collection,
		logger:      logger,
	}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the underlying gRPC connection.
func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// Ping runs a health check against the server.
func (q *Qdrant) Ping(ctx context.Context) error {
	reply, err := q.health.HealthCheck(ctx, &pb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: health check: %w", err)
	}
	q.logger.Debug("qdrant reachable", slog.String("version", reply.GetVersion()))
	return nil
}

// Collection returns the collection name.
func (q *Qdrant) Collection() string { return q.collection }

// Reset drops the collection if it exists and recreates it empty.
func (q *Qdrant) Reset(ctx context.Context, dimension int, distance property.Distance) error {
	if dimension <= 0 {
		return fmt.Errorf("qdrant: invalid dimension %d", dimension)
	}
	dist, err := qdrantDistance(distance)
	if err != nil {
		return err
	}

	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() != q.collection {
			continue
		}
		q.logger.Info("dropping existing collection", slog.String("collection", q.collection))
		if _, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collection}); err != nil {
			return fmt.Errorf("qdrant: delete collection %s: %w", q.collection, err)
		}
		break
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: dist,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", q.collection, err)
	}
	q.dimension = dimension
	q.logger.Info("collection created",
		slog.String("collection", q.collection),
		slog.Int("dimension", dimension),
		slog.String("distance", string(distance)),
	)
	return nil
}

// Upload writes every point in a single request and waits for the server
// to apply it. An empty slice sends nothing.
func (q *Qdrant) Upload(ctx context.Context, points []property.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		vec := p.Vector()
		if q.dimension > 0 && len(vec) != q.dimension {
			return fmt.Errorf("qdrant: point %s: %w: got %d, want %d", p.ID(), ErrDimension, len(vec), q.dimension)
		}
		payload := make(map[string]*pb.Value, 3)
		for k, v := range p.Payload() {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		structs[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vec},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	if _, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         structs,
	}); err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the nearest chunks to vector.
func (q *Qdrant) Search(ctx context.Context, vector []float32, filters search.Filters) ([]search.Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(filters.Limit()),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if filters.MinScore() > 0 {
		threshold := float32(filters.MinScore())
		req.ScoreThreshold = &threshold
	}

	var must []*pb.Condition
	if id := filters.PropertyID(); id != "" {
		must = append(must, fieldMatch(property.PayloadPropertyID, id))
	}
	if kind := filters.ChunkKind(); kind != "" {
		must = append(must, fieldMatch(property.PayloadChunkType, string(kind)))
	}
	if len(must) > 0 {
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	hits := make([]search.Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		payload := r.GetPayload()
		chunk := property.NewChunk(
			payload[property.PayloadPropertyID].GetStringValue(),
			property.ChunkKind(payload[property.PayloadChunkType].GetStringValue()),
			payload[property.PayloadText].GetStringValue(),
		)
		hits = append(hits, search.NewHit(r.GetId().GetUuid(), float64(r.GetScore()), chunk))
	}
	return hits, nil
}

func qdrantDistance(d property.Distance) (pb.Distance, error) {
	switch d {
	case property.DistanceCosine, "":
		return pb.Distance_Cosine, nil
	case property.DistanceDot:
		return pb.Distance_Dot, nil
	case property.DistanceEuclidean:
		return pb.Distance_Euclid, nil
	default:
		return pb.Distance_UnknownDistance, fmt.Errorf("qdrant: unsupported distance %q", d)
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
