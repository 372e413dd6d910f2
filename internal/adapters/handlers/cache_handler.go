package handlers

import (
	"net/http"

	"github.com/klipperplace/pnpService/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// GetCacheStatistics возвращает статистику кэша состояний.
// @Summary Статистика кэша
// @Tags Cache
// @Produce json
// @Success 200 {object} models.CacheStatsResponse "Статистика кэша"
// @Router /cache/statistics [get]
func (h *Handler) GetCacheStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "statistics": h.usecase.CacheStatistics()})
}

// InvalidateCache инвалидирует записи кэша.
// @Summary Инвалидировать кэш
// @Description Инвалидирует записи по точному ключу, категории или подстроке ключа.
// @Tags Cache
// @Accept json
// @Produce json
// @Param input body models.CacheInvalidateRequest true "Критерий инвалидации"
// @Success 200 {object} models.MessageResponse "Число инвалидированных записей"
// @Failure 400 {object} models.ErrorResponse "Критерий не указан"
// @Router /cache/invalidate [post]
func (h *Handler) InvalidateCache(c *gin.Context) {
	var req models.CacheInvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	count, err := h.usecase.CacheInvalidate(req)
	if err != nil {
		h.BadRequest(c, err, "Invalid invalidation criteria")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "invalidated": count})
}

// ClearCache удаляет все записи кэша.
// @Summary Очистить кэш
// @Tags Cache
// @Produce json
// @Success 200 {object} models.MessageResponse "Кэш очищен"
// @Router /cache [delete]
func (h *Handler) ClearCache(c *gin.Context) {
	h.usecase.CacheClear()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Cache cleared"})
}
