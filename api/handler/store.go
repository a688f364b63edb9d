package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/crawlkit/models"
	"github.com/use-agent/crawlkit/storage"
)

// PostStore returns a handler for POST /api/v1/store.
func PostStore(st storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "no data provided for storage", err), models.TimingInfo{})
			return
		}

		key, err := st.Create(c.Request.Context(), req.Data)
		if err != nil {
			respondError(c, storageError(err), models.TimingInfo{})
			return
		}

		c.JSON(http.StatusCreated, models.StoreResponse{
			Success:    true,
			UniqueCode: key,
			Message:    "data stored successfully",
		})
	}
}

// GetStore returns a handler for GET /api/v1/store/:code.
func GetStore(st storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		data, err := st.Get(c.Request.Context(), code)
		if err != nil {
			respondError(c, storageError(err), models.TimingInfo{})
			return
		}

		c.JSON(http.StatusOK, models.StoreResponse{
			Success:    true,
			UniqueCode: code,
			Data:       data,
		})
	}
}

// PutStore returns a handler for PUT /api/v1/store/:code.
func PutStore(st storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "no data provided for update", err), models.TimingInfo{})
			return
		}

		code := c.Param("code")
		if err := st.Update(c.Request.Context(), code, req.Data); err != nil {
			respondError(c, storageError(err), models.TimingInfo{})
			return
		}

		c.JSON(http.StatusOK, models.StoreResponse{
			Success:    true,
			UniqueCode: code,
			Message:    "data updated successfully",
		})
	}
}

// DeleteStore returns a handler for DELETE /api/v1/store/:code.
func DeleteStore(st storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		if err := st.Delete(c.Request.Context(), code); err != nil {
			respondError(c, storageError(err), models.TimingInfo{})
			return
		}

		c.JSON(http.StatusOK, models.StoreResponse{
			Success:    true,
			UniqueCode: code,
			Message:    "data deleted successfully",
		})
	}
}

// storageError maps storage sentinels onto API error codes.
func storageError(err error) *models.ScrapeError {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return models.NewScrapeError(models.ErrCodeNotFound, "no stored data for this code", err)
	case errors.Is(err, storage.ErrInvalidKey):
		return models.NewScrapeError(models.ErrCodeInvalidInput, "malformed unique code", err)
	case errors.Is(err, storage.ErrInvalidData):
		return models.NewScrapeError(models.ErrCodeInvalidInput, "data is not valid JSON", err)
	default:
		slog.Error("storage operation failed", "error", err)
		return models.NewScrapeError(models.ErrCodeStorage, "storage operation failed", err)
	}
}
