package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/klipperplace/pnpService/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// runSystemCommand выполняет системную команду через общий конвейер.
func (h *Handler) runSystemCommand(c *gin.Context, ct models.CommandType) {
	cmd := models.NewCommand(ct, nil)
	resp := h.usecase.Execute(c.Request.Context(), cmd)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "response": resp})
}

// CancelExecution прерывает текущее выполнение.
// @Summary Отменить выполнение
// @Description Прерывает выполнение очереди и пакетов. Флаг отмены действует до сброса.
// @Tags System
// @Produce json
// @Success 200 {object} models.CommandResponse "Выполнение отменено"
// @Router /system/cancel [post]
func (h *Handler) CancelExecution(c *gin.Context) {
	h.runSystemCommand(c, models.CommandCancel)
}

// PauseExecution приостанавливает обработчик выполнения.
// @Summary Приостановить выполнение
// @Tags System
// @Produce json
// @Success 200 {object} models.CommandResponse "Выполнение приостановлено"
// @Router /system/pause [post]
func (h *Handler) PauseExecution(c *gin.Context) {
	h.runSystemCommand(c, models.CommandPause)
}

// ResumeExecution возобновляет обработчик выполнения.
// @Summary Возобновить выполнение
// @Tags System
// @Produce json
// @Success 200 {object} models.CommandResponse "Выполнение возобновлено"
// @Router /system/resume [post]
func (h *Handler) ResumeExecution(c *gin.Context) {
	h.runSystemCommand(c, models.CommandResume)
}

// ResetExecution сбрасывает обработчик: очередь, историю и флаг отмены.
// @Summary Сбросить обработчик
// @Description Очищает очередь, журнал выполнения, флаг отмены и отслеживаемое состояние устройства.
// @Tags System
// @Produce json
// @Success 200 {object} models.CommandResponse "Обработчик сброшен"
// @Router /system/reset [post]
func (h *Handler) ResetExecution(c *gin.Context) {
	h.runSystemCommand(c, models.CommandReset)
}

// GetHistory возвращает журнал выполнения с фильтрами.
// @Summary История выполнения
// @Description Возвращает записи журнала выполнения. Фильтры: limit, status, since (RFC3339).
// @Tags System
// @Produce json
// @Param limit query int false "Максимальное число записей"
// @Param status query string false "Фильтр по статусу (completed, failed, cancelled)"
// @Param since query string false "Нижняя граница времени в формате RFC3339"
// @Success 200 {object} models.HistoryResponse "Записи журнала"
// @Failure 400 {object} models.ErrorResponse "Неверный формат параметров"
// @Router /history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.BadRequest(c, err, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, err, "Invalid since parameter")
			return
		}
		since = parsed
	}

	entries := h.usecase.History(limit, models.ExecutionStatus(c.Query("status")), since)
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"count":   len(entries),
		"entries": entries,
	})
}

// GetStatistics возвращает сводную статистику выполнения.
// @Summary Статистика выполнения
// @Description Возвращает состояние обработчика, размер очереди и сводку журнала выполнения.
// @Tags System
// @Produce json
// @Success 200 {object} models.MessageResponse "Статистика выполнения"
// @Router /statistics [get]
func (h *Handler) GetStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "statistics": h.usecase.Statistics()})
}

// GetServiceStatus возвращает сводку состояния сервиса.
// @Summary Статус сервиса
// @Description Возвращает состояние подключения к Moonraker, обработчика выполнения, кэша и монитора безопасности.
// @Tags System
// @Produce json
// @Success 200 {object} models.MessageResponse "Статус сервиса"
// @Router /status [get]
func (h *Handler) GetServiceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.usecase.ServiceStatus(c.Request.Context()),
	})
}
