package handlers

import (
	"net/http"

	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/pkg/errors"

	"github.com/gin-gonic/gin"
)

// EnqueueCommand помещает команду в приоритетную очередь.
// @Summary Поставить команду в очередь
// @Description Транслирует команду в инструкции и помещает их в очередь выполнения с заданным приоритетом.
// @Tags Queue
// @Accept json
// @Produce json
// @Param input body models.EnqueueRequest true "Команда и приоритет"
// @Success 200 {object} models.EnqueueResponse "Идентификатор команды в очереди"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса или нарушение лимитов"
// @Failure 503 {object} models.ErrorResponse "Очередь заполнена"
// @Router /queue [post]
func (h *Handler) EnqueueCommand(c *gin.Context) {
	var req models.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	cmd, err := buildCommand(req.Command, req.Parameters, req.Metadata, req.Priority, "")
	if err != nil {
		h.BadRequest(c, err, "Unknown command type")
		return
	}

	id, err := h.usecase.Enqueue(c.Request.Context(), cmd, req.Priority)
	if err != nil {
		if errors.IsQueueFull(err) {
			h.ErrorResponse(c, err, http.StatusServiceUnavailable, "Queue is full", true)
			return
		}
		h.BadRequest(c, err, "Failed to enqueue command")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "command_id": id})
}

// ProcessQueue выполняет все команды очереди.
// @Summary Обработать очередь
// @Description Выполняет все инструкции очереди в порядке приоритета и возвращает результаты.
// @Tags Queue
// @Accept json
// @Produce json
// @Param input body models.ProcessQueueRequest false "Параметры обработки"
// @Success 200 {object} models.BatchResponse "Результаты выполнения очереди"
// @Router /queue/process [post]
func (h *Handler) ProcessQueue(c *gin.Context) {
	var req models.ProcessQueueRequest
	_ = c.ShouldBindJSON(&req)

	stopOnError := true
	if req.StopOnError != nil {
		stopOnError = *req.StopOnError
	}

	responses := h.usecase.ProcessQueue(c.Request.Context(), stopOnError)
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"count":     len(responses),
		"responses": responses,
	})
}

// GetQueue возвращает текущее состояние очереди.
// @Summary Состояние очереди
// @Description Возвращает размер очереди и список ожидающих инструкций в порядке выполнения.
// @Tags Queue
// @Produce json
// @Success 200 {object} models.QueueInfoResponse "Состояние очереди"
// @Router /queue [get]
func (h *Handler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "queue": h.usecase.QueueInfo()})
}

// RemoveQueuedCommand удаляет одну ожидающую команду из очереди.
// @Summary Удалить команду из очереди
// @Description Удаляет ожидающую инструкцию с заданным идентификатором, не затрагивая остальную очередь.
// @Tags Queue
// @Produce json
// @Param id path string true "Идентификатор команды в очереди"
// @Success 200 {object} models.MessageResponse "Команда удалена"
// @Failure 404 {object} models.ErrorResponse "Команда не найдена в очереди"
// @Router /queue/{id} [delete]
func (h *Handler) RemoveQueuedCommand(c *gin.Context) {
	id := c.Param("id")
	if !h.usecase.RemoveQueued(id) {
		h.NotFound(c, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Queued command removed"})
}

// ClearQueue удаляет все ожидающие команды из очереди.
// @Summary Очистить очередь
// @Description Удаляет все ожидающие инструкции из очереди выполнения.
// @Tags Queue
// @Produce json
// @Success 200 {object} models.MessageResponse "Очередь очищена"
// @Router /queue [delete]
func (h *Handler) ClearQueue(c *gin.Context) {
	h.usecase.ClearQueue()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Queue cleared"})
}
