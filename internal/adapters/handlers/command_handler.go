package handlers

import (
	"net/http"

	"github.com/klipperplace/pnpService/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// buildCommand собирает доменную команду из тела запроса.
func buildCommand(command string, params, metadata map[string]interface{}, priority int, id string) (models.Command, error) {
	ct, err := models.ParseCommandType(command)
	if err != nil {
		return models.Command{}, err
	}

	cmd := models.NewCommand(ct, params)
	if metadata != nil {
		cmd.Metadata = metadata
	}
	if id != "" {
		cmd.ID = id
	} else {
		cmd.ID = uuid.NewString()
	}
	cmd.Priority = priority
	return cmd, nil
}

// ExecuteCommand выполняет одну семантическую команду.
// @Summary Выполнить команду
// @Description Транслирует семантическую команду в вызовы прошивки и выполняет ее немедленно.
// @Tags Commands
// @Accept json
// @Produce json
// @Param input body models.CommandRequest true "Команда и ее параметры"
// @Success 200 {object} models.CommandResponse "Результат выполнения команды"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса или неизвестная команда"
// @Router /commands [post]
func (h *Handler) ExecuteCommand(c *gin.Context) {
	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	cmd, err := buildCommand(req.Command, req.Parameters, req.Metadata, req.Priority, req.ID)
	if err != nil {
		h.BadRequest(c, err, "Unknown command type")
		return
	}

	resp := h.usecase.Execute(c.Request.Context(), cmd)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "response": resp})
}

// ExecuteBatch выполняет пакет команд последовательно.
// @Summary Выполнить пакет команд
// @Description Выполняет список команд по порядку. При stop_on_error (по умолчанию true) выполнение прерывается после первой ошибки.
// @Tags Commands
// @Accept json
// @Produce json
// @Param input body models.BatchRequest true "Список команд"
// @Success 200 {object} models.BatchResponse "Результаты выполнения команд"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса"
// @Router /commands/batch [post]
func (h *Handler) ExecuteBatch(c *gin.Context) {
	var req models.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	cmds := make([]models.Command, 0, len(req.Commands))
	for _, item := range req.Commands {
		cmd, err := buildCommand(item.Command, item.Parameters, item.Metadata, item.Priority, item.ID)
		if err != nil {
			h.BadRequest(c, err, "Unknown command type")
			return
		}
		cmds = append(cmds, cmd)
	}

	stopOnError := true
	if req.StopOnError != nil {
		stopOnError = *req.StopOnError
	}

	responses := h.usecase.ExecuteBatch(c.Request.Context(), cmds, stopOnError)
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"count":     len(responses),
		"responses": responses,
	})
}
