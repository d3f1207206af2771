package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timecraft/timebank-backend/internal/dto"
	"github.com/timecraft/timebank-backend/internal/http/handlers/common"
	"github.com/timecraft/timebank-backend/internal/models"
	"github.com/timecraft/timebank-backend/internal/service"
)

// OfferHandler отвечает за жизненный цикл запросов услуг.
type OfferHandler struct {
	lifecycle *service.LifecycleService
}

// NewOfferHandler создаёт новый хэндлер.
func NewOfferHandler(lifecycle *service.LifecycleService) *OfferHandler {
	return &OfferHandler{lifecycle: lifecycle}
}

// Create POST /offers
func (h *OfferHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "title, service_type, hours и time_credits обязательны")
		return
	}

	offer, err := h.lifecycle.CreateOffer(c.Request.Context(), userID, service.CreateOfferInput{
		Title:       req.Title,
		Description: req.Description,
		ServiceType: req.ServiceType,
		Hours:       req.Hours,
		TimeCredits: req.TimeCredits,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, offer)
}

// List GET /offers?status=available&sort=relevance
func (h *OfferHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	in := service.ListOffersInput{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	}

	if c.Query("sort") == "relevance" {
		if viewerID, err := common.CurrentUserID(c); err == nil {
			in.SortByScore = true
			in.ViewerID = viewerID
		}
	}

	if in.Status != "" && in.Status != models.OfferStatusAvailable &&
		in.Status != models.OfferStatusBooked && in.Status != models.OfferStatusCompleted {
		common.RespondBadRequest(c, "status должен быть available, booked или completed")
		return
	}

	offers, err := h.lifecycle.ListOffers(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offers)
}

// Update PUT /offers/:id
func (h *OfferHandler) Update(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.UpdateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "title, service_type, hours и time_credits обязательны")
		return
	}

	offer, err := h.lifecycle.UpdateOffer(c.Request.Context(), offerID, userID, service.CreateOfferInput{
		Title:       req.Title,
		Description: req.Description,
		ServiceType: req.ServiceType,
		Hours:       req.Hours,
		TimeCredits: req.TimeCredits,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// ListMine GET /offers/my
func (h *OfferHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offers, counts, err := h.lifecycle.ListOffersByOwner(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]dto.OfferResponse, len(offers))
	for i := range offers {
		out[i] = dto.OfferResponse{
			Offer:             &offers[i],
			ApplicationsCount: counts[offers[i].ID],
		}
	}

	c.JSON(http.StatusOK, out)
}

// Get GET /offers/:id
func (h *OfferHandler) Get(c *gin.Context) {
	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.lifecycle.GetOffer(c.Request.Context(), offerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// Delete DELETE /offers/:id
func (h *OfferHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.lifecycle.DeleteOffer(c.Request.Context(), offerID, userID); err != nil {
		c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "запрос удалён", gin.H{"id": offerID})
}

// Complete POST /offers/:id/complete
func (h *OfferHandler) Complete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	trx, err := h.lifecycle.CompleteOffer(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, trx)
}

// Claim POST /offers/:id/claim
func (h *OfferHandler) Claim(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.lifecycle.ClaimCredits(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ClaimResponse{
		Transaction:    result.Transaction,
		AlreadyClaimed: result.AlreadyClaimed,
	})
}

// GetTransaction GET /offers/:id/transaction
func (h *OfferHandler) GetTransaction(c *gin.Context) {
	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	trx, err := h.lifecycle.GetTransactionByOffer(c.Request.Context(), offerID)
	if err != nil {
		c.Error(err)
		return
	}

	// Журнал обмена видят только его участники.
	if userID, err := common.CurrentUserID(c); err != nil ||
		(userID != trx.RequesterID && userID != trx.ProviderID) {
		common.RespondError(c, http.StatusForbidden, "обмен видят только его участники")
		return
	}

	c.JSON(http.StatusOK, trx)
}
