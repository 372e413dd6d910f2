package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDeviceState возвращает отслеживаемое состояние устройства.
// @Summary Состояние устройства
// @Description Возвращает последнее известное положение, состояние вакуума, вентилятора и актуаторов.
// @Tags State
// @Produce json
// @Success 200 {object} models.MessageResponse "Состояние устройства"
// @Router /state [get]
func (h *Handler) GetDeviceState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": h.usecase.DeviceState()})
}

// ResetDeviceState сбрасывает отслеживаемое состояние устройства.
// @Summary Сбросить состояние
// @Tags State
// @Produce json
// @Success 200 {object} models.MessageResponse "Состояние сброшено"
// @Router /state [delete]
func (h *Handler) ResetDeviceState(c *gin.Context) {
	h.usecase.ResetDeviceState()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Device state reset"})
}
