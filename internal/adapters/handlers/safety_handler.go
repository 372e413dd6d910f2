package handlers

import (
	"net/http"
	"strconv"

	"github.com/klipperplace/pnpService/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// GetLimits возвращает действующие лимиты безопасности.
// @Summary Текущие лимиты
// @Tags Safety
// @Produce json
// @Success 200 {object} models.LimitsResponse "Действующие лимиты"
// @Router /safety/limits [get]
func (h *Handler) GetLimits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "limits": h.usecase.CurrentLimits()})
}

// UpdateLimits изменяет отдельные лимиты безопасности.
// @Summary Обновить лимиты
// @Description Изменяет лимиты по имени поля (max_x_position, max_feedrate, ...). Неизвестные имена игнорируются.
// @Tags Safety
// @Accept json
// @Produce json
// @Param input body models.UpdateLimitsRequest true "Изменяемые лимиты"
// @Success 200 {object} models.LimitsResponse "Лимиты после обновления"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса"
// @Router /safety/limits [put]
func (h *Handler) UpdateLimits(c *gin.Context) {
	var req models.UpdateLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	h.usecase.UpdateLimits(req.Limits)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "limits": h.usecase.CurrentLimits()})
}

// GetSafetyEvents возвращает журнал событий безопасности.
// @Summary События безопасности
// @Description Возвращает журнал событий с фильтрами по типу и уровню.
// @Tags Safety
// @Produce json
// @Param limit query int false "Максимальное число событий"
// @Param type query string false "Фильтр по типу события"
// @Param level query string false "Фильтр по уровню"
// @Success 200 {object} models.SafetyEventsResponse "События безопасности"
// @Failure 400 {object} models.ErrorResponse "Неверный формат параметров"
// @Router /safety/events [get]
func (h *Handler) GetSafetyEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.BadRequest(c, err, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	events := h.usecase.SafetyEvents(limit,
		models.SafetyEventType(c.Query("type")),
		models.SafetyLevel(c.Query("level")))
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"count":  len(events),
		"events": events,
	})
}

// ClearSafetyEvents очищает журнал событий безопасности.
// @Summary Очистить журнал событий
// @Tags Safety
// @Produce json
// @Success 200 {object} models.MessageResponse "Журнал очищен"
// @Router /safety/events [delete]
func (h *Handler) ClearSafetyEvents(c *gin.Context) {
	h.usecase.ClearSafetyEvents()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Safety events cleared"})
}

// ResolveSafetyEvent помечает событие как разрешенное.
// @Summary Разрешить событие
// @Description Помечает событие журнала по его индексу как разрешенное оператором.
// @Tags Safety
// @Accept json
// @Produce json
// @Param input body models.ResolveEventRequest true "Индекс события"
// @Success 200 {object} models.MessageResponse "Событие разрешено"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса"
// @Failure 404 {object} models.ErrorResponse "Событие с таким индексом не найдено"
// @Router /safety/events/resolve [post]
func (h *Handler) ResolveSafetyEvent(c *gin.Context) {
	var req models.ResolveEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	if !h.usecase.ResolveSafetyEvent(req.Index) {
		h.NotFound(c, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Event resolved"})
}

// GetSafetyStatistics возвращает статистику монитора безопасности.
// @Summary Статистика безопасности
// @Tags Safety
// @Produce json
// @Success 200 {object} models.MessageResponse "Статистика монитора"
// @Router /safety/statistics [get]
func (h *Handler) GetSafetyStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "statistics": h.usecase.SafetyStatistics()})
}

// GetSafetyState возвращает снимок состояния монитора безопасности.
// @Summary Состояние монитора
// @Tags Safety
// @Produce json
// @Success 200 {object} models.MessageResponse "Состояние монитора"
// @Router /safety/state [get]
func (h *Handler) GetSafetyState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": h.usecase.SafetyState()})
}

// EmergencyStop активирует аварийную остановку.
// @Summary Аварийная остановка
// @Description Отправляет M112 и блокирует дальнейшие команды движения до снятия остановки.
// @Tags Safety
// @Accept json
// @Produce json
// @Param input body models.EmergencyStopRequest false "Причина остановки"
// @Success 200 {object} models.MessageResponse "Остановка активирована"
// @Router /safety/emergency_stop [post]
func (h *Handler) EmergencyStop(c *gin.Context) {
	var req models.EmergencyStopRequest
	_ = c.ShouldBindJSON(&req)

	event := h.usecase.EmergencyStop(c.Request.Context(), req.Reason)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "event": event})
}

// ClearEmergencyStop снимает аварийную остановку.
// @Summary Снять аварийную остановку
// @Tags Safety
// @Produce json
// @Success 200 {object} models.MessageResponse "Остановка снята"
// @Router /safety/emergency_stop [delete]
func (h *Handler) ClearEmergencyStop(c *gin.Context) {
	h.usecase.ClearEmergencyStop()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Emergency stop cleared"})
}
