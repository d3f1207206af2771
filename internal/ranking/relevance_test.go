package ranking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/timecraft/timebank-backend/internal/models"
)

func offer(service, status string) models.Offer {
	return models.Offer{ID: uuid.New(), ServiceType: service, Status: status}
}

func TestScore(t *testing.T) {
	o := offer("переезд", models.OfferStatusAvailable)

	assert.Equal(t, 0, Score(o, nil, 3))
	assert.Equal(t, 1, Score(o, []string{"переезд"}, 0))
	assert.Equal(t, 4, Score(o, []string{"переезд"}, 3))
	assert.Equal(t, 2, Score(o, []string{"уроки"}, 2))
}

func TestSortByRelevance_AvailableFirst(t *testing.T) {
	booked := offer("переезд", models.OfferStatusBooked)
	available := offer("уроки", models.OfferStatusAvailable)

	sorted := SortByRelevance([]models.Offer{booked, available}, []string{"переезд"}, nil)

	assert.Equal(t, available.ID, sorted[0].ID)
	assert.Equal(t, booked.ID, sorted[1].ID)
}

func TestSortByRelevance_ScoreWithinGroup(t *testing.T) {
	match := offer("переезд", models.OfferStatusAvailable)
	noMatch := offer("уроки", models.OfferStatusAvailable)
	popular := offer("ремонт", models.OfferStatusAvailable)

	counts := map[uuid.UUID]int{popular.ID: 5}

	sorted := SortByRelevance([]models.Offer{noMatch, match, popular}, []string{"переезд"}, counts)

	assert.Equal(t, popular.ID, sorted[0].ID)
	assert.Equal(t, match.ID, sorted[1].ID)
	assert.Equal(t, noMatch.ID, sorted[2].ID)
}

func TestSortByRelevance_NoServicesKeepsOrder(t *testing.T) {
	first := offer("переезд", models.OfferStatusBooked)
	second := offer("уроки", models.OfferStatusAvailable)

	input := []models.Offer{first, second}
	sorted := SortByRelevance(input, nil, nil)

	assert.Equal(t, first.ID, sorted[0].ID)
	assert.Equal(t, second.ID, sorted[1].ID)
	// Вход не изменяется.
	assert.Equal(t, first.ID, input[0].ID)
}
