package ranking

import (
	"sort"

	"github.com/google/uuid"

	"github.com/timecraft/timebank-backend/internal/models"
)

// Score вычисляет релевантность запроса для пользователя: совпадение
// типа услуги с услугами пользователя плюс число принятых заявок на запрос.
func Score(offer models.Offer, userServices []string, acceptedCount int) int {
	if len(userServices) == 0 {
		return 0
	}

	score := 0
	for _, svc := range userServices {
		if svc == offer.ServiceType {
			score++
			break
		}
	}
	return score + acceptedCount
}

// SortByRelevance сортирует запросы: сначала доступные, внутри группы —
// по убыванию релевантности. Сортировка стабильная и не изменяет вход.
func SortByRelevance(offers []models.Offer, userServices []string, acceptedCounts map[uuid.UUID]int) []models.Offer {
	sorted := make([]models.Offer, len(offers))
	copy(sorted, offers)

	if len(userServices) == 0 {
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]

		aAvail := a.Status == models.OfferStatusAvailable
		bAvail := b.Status == models.OfferStatusAvailable
		if aAvail != bAvail {
			return aAvail
		}

		return Score(a, userServices, acceptedCounts[a.ID]) >
			Score(b, userServices, acceptedCounts[b.ID])
	})

	return sorted
}
