package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/timecraft/timebank-backend/internal/dto"
	"github.com/timecraft/timebank-backend/internal/http/handlers/common"
	"github.com/timecraft/timebank-backend/internal/models"
	"github.com/timecraft/timebank-backend/internal/repository"
	"github.com/timecraft/timebank-backend/internal/storage"
	"github.com/timecraft/timebank-backend/internal/validation"
)

// ProfileDirectory описывает часть хранилища пользователей, нужную хэндлеру.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error
	SetAvatarPath(ctx context.Context, userID uuid.UUID, path string) error
}

// ProfileHandler отвечает за профили и аватары.
type ProfileHandler struct {
	users   ProfileDirectory
	avatars *storage.AvatarStorage
}

// NewProfileHandler создаёт новый хэндлер.
func NewProfileHandler(users ProfileDirectory, avatars *storage.AvatarStorage) *ProfileHandler {
	return &ProfileHandler{users: users, avatars: avatars}
}

// GetMe GET /profiles/me
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			common.RespondError(c, http.StatusNotFound, "профиль не найден")
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Get GET /profiles/:id
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			common.RespondError(c, http.StatusNotFound, "профиль не найден")
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Update PUT /profiles/me
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		common.RespondBadRequest(c, "display_name обязателен")
		return
	}
	if err := validation.ValidateServices(req.Services); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile := &models.Profile{
		UserID:      userID,
		DisplayName: displayName,
		Services:    req.Services,
	}
	if bio := strings.TrimSpace(req.Bio); bio != "" {
		profile.Bio = &bio
	}
	if location := strings.TrimSpace(req.Location); location != "" {
		profile.Location = &location
	}
	if profile.Services == nil {
		profile.Services = []string{}
	}

	if err := h.users.UpsertProfile(c.Request.Context(), profile); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UploadAvatar POST /profiles/me/avatar
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	file, _, err := c.Request.FormFile("avatar")
	if err != nil {
		common.RespondBadRequest(c, "файл avatar обязателен")
		return
	}
	defer file.Close()

	path, size, err := h.avatars.Save(c.Request.Context(), userID, file)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.users.SetAvatarPath(c.Request.Context(), userID, path); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			common.RespondError(c, http.StatusNotFound, "профиль не найден")
			return
		}
		c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "аватар загружен", gin.H{
		"path": path,
		"size": size,
	})
}

// GetAvatar GET /profiles/:id/avatar
func (h *ProfileHandler) GetAvatar(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil || profile.AvatarPath == nil {
		common.RespondError(c, http.StatusNotFound, "аватар не найден")
		return
	}

	fullPath, err := h.avatars.Resolve(*profile.AvatarPath)
	if err != nil {
		common.RespondError(c, http.StatusNotFound, "аватар не найден")
		return
	}

	c.File(fullPath)
}
