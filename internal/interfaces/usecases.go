package interfaces

import (
	"context"
	"time"

	"github.com/klipperplace/pnpService/internal/domain/models"
)

// Usecases - это агрегирующий интерфейс для всех use cases
type Usecases interface {
	// Выполнение команд
	Execute(ctx context.Context, cmd models.Command) models.Response
	ExecuteBatch(ctx context.Context, cmds []models.Command, stopOnError bool) []models.Response

	// Очередь команд
	Enqueue(ctx context.Context, cmd models.Command, priority int) (string, error)
	ProcessQueue(ctx context.Context, stopOnError bool) []models.Response
	QueueInfo() models.QueueInfo
	RemoveQueued(id string) bool
	ClearQueue()

	// Состояние и история
	DeviceState() models.DeviceState
	ResetDeviceState()
	History(limit int, status models.ExecutionStatus, since time.Time) []models.HistoryEntry
	Statistics() map[string]interface{}

	// Администрирование безопасности
	CurrentLimits() models.SafetyLimits
	UpdateLimits(limits map[string]float64)
	SafetyEvents(limit int, eventType models.SafetyEventType, level models.SafetyLevel) []models.SafetyEvent
	ClearSafetyEvents()
	ResolveSafetyEvent(index int) bool
	SafetyStatistics() models.SafetyStatistics
	SafetyState() map[string]interface{}
	EmergencyStop(ctx context.Context, reason string) models.SafetyEvent
	ClearEmergencyStop()

	// Администрирование кэша
	CacheStatistics() models.CacheStatistics
	CacheClear()
	CacheInvalidate(req models.CacheInvalidateRequest) (int, error)

	// Статус сервиса
	ServiceStatus(ctx context.Context) map[string]interface{}
}
