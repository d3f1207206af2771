package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timecraft/timebank-backend/internal/dto"
	"github.com/timecraft/timebank-backend/internal/http/handlers/common"
	"github.com/timecraft/timebank-backend/internal/service"
)

// ApplicationHandler отвечает за заявки исполнителей.
type ApplicationHandler struct {
	lifecycle *service.LifecycleService
}

// NewApplicationHandler создаёт новый хэндлер.
func NewApplicationHandler(lifecycle *service.LifecycleService) *ApplicationHandler {
	return &ApplicationHandler{lifecycle: lifecycle}
}

// Apply POST /offers/:id/applications
func (h *ApplicationHandler) Apply(c *gin.Context) {
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

	app, err := h.lifecycle.ApplyToOffer(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

// ListByOffer GET /offers/:id/applications
func (h *ApplicationHandler) ListByOffer(c *gin.Context) {
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

	apps, err := h.lifecycle.ListApplicationsByOffer(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, apps)
}

// ListMine GET /applications/my
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	apps, err := h.lifecycle.ListApplicationsByApplicant(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, apps)
}

// UpdateStatus PATCH /applications/:id
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	applicationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.UpdateApplicationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "status обязателен")
		return
	}

	app, err := h.lifecycle.UpdateApplicationStatus(c.Request.Context(), applicationID, userID, req.Status)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, app)
}
