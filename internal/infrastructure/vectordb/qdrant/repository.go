// Package qdrant provides an AlertIndex implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

// Repository implements ports.AlertIndex and ports.CollectionManager using Qdrant.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// apiKeyInterceptor adds the api-key header Qdrant Cloud expects.
func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// DeleteCollection removes the collection and every indexed alert.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// SaveAlert stores an alert with its embedding. The alert id is the point id,
// so indexing the same alert twice overwrites it.
func (r *Repository) SaveAlert(ctx context.Context, alert *entities.Alert, embedding []float32) error {
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         []*pb.PointStruct{alertPoint(alert, embedding)},
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// SearchAlerts performs a semantic search over indexed alerts.
func (r *Repository) SearchAlerts(ctx context.Context, embedding []float32, restaurantID int, limit int) ([]entities.AlertMatch, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		Filter:         restaurantFilter(restaurantID),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	return scoredPointsToMatches(resp.Result), nil
}

// Count returns the number of indexed alerts.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// alertPoint converts an alert to a Qdrant point.
func alertPoint(alert *entities.Alert, embedding []float32) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{
				Uuid: alert.ID,
			},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{
					Data: embedding,
				},
			},
		},
		Payload: map[string]*pb.Value{
			"restaurant_id": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(alert.Key.RestaurantID)}},
			"ingredient_id": {Kind: &pb.Value_StringValue{StringValue: alert.Key.IngredientID}},
			"event_type":    {Kind: &pb.Value_StringValue{StringValue: string(alert.Key.EventType)}},
			"severity":      {Kind: &pb.Value_StringValue{StringValue: string(alert.Severity)}},
			"message":       {Kind: &pb.Value_StringValue{StringValue: alert.Message}},
			"trend":         {Kind: &pb.Value_StringValue{StringValue: alert.HistoricalContext.Trend}},
			"created_at":    {Kind: &pb.Value_StringValue{StringValue: alert.CreatedAt.UTC().Format(time.RFC3339)}},
		},
	}
}

// restaurantFilter limits a search to one restaurant. Zero means no filter.
func restaurantFilter(restaurantID int) *pb.Filter {
	if restaurantID == 0 {
		return nil
	}
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: "restaurant_id",
						Match: &pb.Match{
							MatchValue: &pb.Match_Integer{
								Integer: int64(restaurantID),
							},
						},
					},
				},
			},
		},
	}
}

// scoredPointsToMatches converts scored points to alert matches.
func scoredPointsToMatches(points []*pb.ScoredPoint) []entities.AlertMatch {
	matches := make([]entities.AlertMatch, 0, len(points))

	for _, point := range points {
		payload := point.Payload
		matches = append(matches, entities.AlertMatch{
			AlertID: point.Id.GetUuid(),
			Key: entities.DedupKey{
				RestaurantID: int(getIntValue(payload, "restaurant_id")),
				IngredientID: getStringValue(payload, "ingredient_id"),
				EventType:    entities.EventType(getStringValue(payload, "event_type")),
			},
			Severity:     entities.Severity(getStringValue(payload, "severity")),
			Message:      getStringValue(payload, "message"),
			Score:        point.Score,
			CreatedAtRFC: getStringValue(payload, "created_at"),
		})
	}

	return matches
}

// Helper functions for payload extraction.
func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
