package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timecraft/timebank-backend/internal/http/middleware"
	"github.com/timecraft/timebank-backend/internal/models"
	"github.com/timecraft/timebank-backend/internal/repository"
)

// fakeProfileDirectory хранит профили в памяти и запоминает последний upsert.
type fakeProfileDirectory struct {
	profiles map[uuid.UUID]*models.Profile
	lastSave *models.Profile
}

func newFakeProfileDirectory() *fakeProfileDirectory {
	return &fakeProfileDirectory{profiles: make(map[uuid.UUID]*models.Profile)}
}

func (d *fakeProfileDirectory) GetProfile(_ context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, ok := d.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return profile, nil
}

func (d *fakeProfileDirectory) UpsertProfile(_ context.Context, profile *models.Profile) error {
	copied := *profile
	d.profiles[profile.UserID] = &copied
	d.lastSave = &copied
	return nil
}

func (d *fakeProfileDirectory) SetAvatarPath(_ context.Context, userID uuid.UUID, path string) error {
	profile, ok := d.profiles[userID]
	if !ok {
		return repository.ErrProfileNotFound
	}
	profile.AvatarPath = &path
	return nil
}

// authAs подставляет userID в контекст вместо полной проверки токена.
func authAs(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Next()
	}
}

func TestProfileHandler_Update_SavesAllFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	dir := newFakeProfileDirectory()
	handler := NewProfileHandler(dir, nil)

	r := gin.New()
	r.PUT("/profiles/me", authAs(userID), handler.Update)

	body := strings.NewReader(`{
		"display_name": "Анна",
		"bio": "Помогаю с переездами",
		"location": "Лиссабон",
		"services": ["переезд", "уборка"]
	}`)
	req, _ := http.NewRequest("PUT", "/profiles/me", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, dir.lastSave)
	assert.Equal(t, "Анна", dir.lastSave.DisplayName)
	require.NotNil(t, dir.lastSave.Location)
	assert.Equal(t, "Лиссабон", *dir.lastSave.Location)
	assert.Equal(t, []string{"переезд", "уборка"}, dir.lastSave.Services)
}

func TestProfileHandler_Update_RequiresDisplayName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := newFakeProfileDirectory()
	handler := NewProfileHandler(dir, nil)

	r := gin.New()
	r.PUT("/profiles/me", authAs(uuid.New()), handler.Update)

	req, _ := http.NewRequest("PUT", "/profiles/me", strings.NewReader(`{"location":"Лиссабон"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, dir.lastSave)
}
