package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/timecraft/timebank-backend/internal/http/middleware"
)

func TestOfferHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OfferHandler{lifecycle: nil}
	r.POST("/offers", handler.Create)

	body := strings.NewReader(`{"title":"Помощь","service_type":"переезд","hours":2,"time_credits":2}`)
	req, _ := http.NewRequest("POST", "/offers", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOfferHandler_Get_InvalidUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OfferHandler{lifecycle: nil}
	r.GET("/offers/:id", middleware.UUIDValidator("id"), handler.Get)

	req, _ := http.NewRequest("GET", "/offers/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOfferHandler_Claim_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OfferHandler{lifecycle: nil}
	r.POST("/offers/:id/claim", middleware.UUIDValidator("id"), handler.Claim)

	req, _ := http.NewRequest("POST", "/offers/"+uuid.NewString()+"/claim", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApplicationHandler_Apply_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ApplicationHandler{lifecycle: nil}
	r.POST("/offers/:id/applications", middleware.UUIDValidator("id"), handler.Apply)

	req, _ := http.NewRequest("POST", "/offers/"+uuid.NewString()+"/applications", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApplicationHandler_UpdateStatus_InvalidUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ApplicationHandler{lifecycle: nil}
	r.PATCH("/applications/:id", middleware.UUIDValidator("id"), handler.UpdateStatus)

	req, _ := http.NewRequest("PATCH", "/applications/42", strings.NewReader(`{"status":"accepted"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsHandler_GetBalance_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &StatsHandler{stats: nil}
	r.GET("/balance", handler.GetBalance)

	req, _ := http.NewRequest("GET", "/balance", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
