package qdrant

import (
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

func TestNewRepository(t *testing.T) {
	_, err := NewRepository(config.QdrantConfig{Host: "localhost", Port: 6334})
	require.Error(t, err)

	repo, err := NewRepository(config.QdrantConfig{Host: "localhost", Port: 6334, Collection: "spellstock_alerts_test", APIKey: "k"})
	require.NoError(t, err)
	assert.NoError(t, repo.Close())
}

func TestAlertPointRoundTrip(t *testing.T) {
	alert := &entities.Alert{
		ID:        "0b6c1a9e-5d0f-4f43-9a55-2f6f7c0c1d11",
		Key:       entities.DedupKey{RestaurantID: 3, IngredientID: "salmon", EventType: entities.EventStockoutRisk},
		Severity:  entities.SeverityCritical,
		Message:   "Critical stockout risk for Salmon in 1 day(s) (91% confidence)",
		CreatedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}

	point := alertPoint(alert, []float32{0.1, 0.2})
	assert.Equal(t, alert.ID, point.Id.GetUuid())
	assert.Equal(t, []float32{0.1, 0.2}, point.Vectors.GetVector().GetData())

	matches := scoredPointsToMatches([]*pb.ScoredPoint{{Id: point.Id, Payload: point.Payload, Score: 0.93}})

	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, alert.ID, m.AlertID)
	assert.Equal(t, alert.Key, m.Key)
	assert.Equal(t, entities.SeverityCritical, m.Severity)
	assert.Equal(t, alert.Message, m.Message)
	assert.Equal(t, float32(0.93), m.Score)
	assert.Equal(t, "2026-03-02T08:00:00Z", m.CreatedAtRFC)
}

func TestRestaurantFilter(t *testing.T) {
	assert.Nil(t, restaurantFilter(0))

	f := restaurantFilter(7)
	require.Len(t, f.Must, 1)
	field := f.Must[0].GetField()
	assert.Equal(t, "restaurant_id", field.Key)
	assert.Equal(t, int64(7), field.Match.GetInteger())
}
