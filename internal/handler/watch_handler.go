package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seatwatch/seatwatch-backend/internal/middleware"
	"github.com/seatwatch/seatwatch-backend/internal/model"
	"github.com/seatwatch/seatwatch-backend/internal/repository"
	"github.com/seatwatch/seatwatch-backend/internal/response"
	"github.com/seatwatch/seatwatch-backend/internal/service"
	"github.com/seatwatch/seatwatch-backend/internal/validator"
)

// WatchHandler handles watch-entry CRUD for the authenticated user.
type WatchHandler struct {
	subService *service.SubscriptionService
	userRepo   *repository.UserRepository
}

// NewWatchHandler creates a new WatchHandler.
func NewWatchHandler(subService *service.SubscriptionService, userRepo *repository.UserRepository) *WatchHandler {
	return &WatchHandler{
		subService: subService,
		userRepo:   userRepo,
	}
}

// List godoc
// GET /api/v1/watches
// Returns the user's watch entries with their course keys.
func (h *WatchHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	entries, err := h.subService.ListWatches(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"watches": entries})
}

// Add godoc
// POST /api/v1/watches
// Subscribes the user to a section, probing the live page for first-seen
// courses. Degenerate but watchable sections return a warning alongside the
// created entry.
func (h *WatchHandler) Add(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AddWatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	entry, warning, err := h.subService.AddWatch(c.Request.Context(), user, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCourseKey):
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		case errors.Is(err, service.ErrSectionLimit):
			response.Fail(c, http.StatusForbidden, response.ErrSectionLimit)
		case errors.Is(err, service.ErrSectionUnreachable):
			response.Fail(c, http.StatusBadGateway, response.ErrSectionUnreachable)
		case errors.Is(err, service.ErrSectionNotOffered):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrSectionNotOffered)
		case errors.Is(err, service.ErrAlreadyWatching):
			response.Fail(c, http.StatusConflict, response.ErrAlreadyWatching)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	body := gin.H{"watch": entry}
	if warning != "" {
		body["warning"] = warning
	}
	response.Success(c, http.StatusCreated, body)
}

// Remove godoc
// DELETE /api/v1/watches/:id
// Deletes one of the user's watch entries.
func (h *WatchHandler) Remove(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.subService.RemoveWatch(c.Request.Context(), claims.UserID, entryID); err != nil {
		if errors.Is(err, service.ErrWatchNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
