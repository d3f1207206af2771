package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timecraft/timebank-backend/internal/dto"
	"github.com/timecraft/timebank-backend/internal/http/handlers/common"
	"github.com/timecraft/timebank-backend/internal/service"
)

// StatsHandler отдаёт балансы и статистику обменов.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler создаёт новый хэндлер.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetBalance GET /balance
func (h *StatsHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	view, err := h.stats.BalanceView(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		Balance:   view.Balance,
		Available: view.Available,
	})
}

// GetStats GET /stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	stats, err := h.stats.Stats(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListTransactions GET /transactions
func (h *StatsHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	trxs, err := h.stats.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, trxs)
}
