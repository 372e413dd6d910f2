package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/internal/services/translator"
)

// PnpUsecase реализует прикладные сценарии сервиса поверх движка
// трансляции.
type PnpUsecase struct {
	engine    *translator.Engine
	moonraker interfaces.MoonrakerService
	logger    *logging.Logger
}

// NewPnpUsecase создает новый экземпляр PnpUsecase
func NewPnpUsecase(engine *translator.Engine, moonraker interfaces.MoonrakerService, logger *logging.Logger) interfaces.Usecases {
	return &PnpUsecase{
		engine:    engine,
		moonraker: moonraker,
		logger:    logger.WithPrefix("USECASE"),
	}
}

// Execute выполняет одну семантическую команду.
func (u *PnpUsecase) Execute(ctx context.Context, cmd models.Command) models.Response {
	u.logger.Info("Executing command", "command", cmd.Type, "id", cmd.ID)
	return u.engine.Execute(ctx, cmd)
}

// ExecuteBatch выполняет пакет команд.
func (u *PnpUsecase) ExecuteBatch(ctx context.Context, cmds []models.Command, stopOnError bool) []models.Response {
	u.logger.Info("Executing batch", "commands", len(cmds), "stop_on_error", stopOnError)
	return u.engine.ExecuteBatch(ctx, cmds, stopOnError)
}

// Enqueue помещает команду в очередь выполнения.
func (u *PnpUsecase) Enqueue(ctx context.Context, cmd models.Command, priority int) (string, error) {
	return u.engine.Enqueue(ctx, cmd, priority)
}

// ProcessQueue выполняет все команды очереди.
func (u *PnpUsecase) ProcessQueue(ctx context.Context, stopOnError bool) []models.Response {
	u.logger.Info("Processing queue", "stop_on_error", stopOnError)
	return u.engine.ProcessQueue(ctx, stopOnError)
}

// QueueInfo возвращает состояние очереди.
func (u *PnpUsecase) QueueInfo() models.QueueInfo {
	return u.engine.Executor().QueueStatus()
}

// RemoveQueued удаляет ожидающую команду по идентификатору.
func (u *PnpUsecase) RemoveQueued(id string) bool {
	return u.engine.Executor().Remove(id)
}

// ClearQueue удаляет все ожидающие команды.
func (u *PnpUsecase) ClearQueue() {
	u.engine.Executor().ClearQueue()
}

// DeviceState возвращает отслеживаемое состояние устройства.
func (u *PnpUsecase) DeviceState() models.DeviceState {
	return u.engine.State()
}

// ResetDeviceState сбрасывает отслеживаемое состояние устройства.
func (u *PnpUsecase) ResetDeviceState() {
	u.engine.ResetState()
}

// History возвращает журнал выполнения с фильтрами.
func (u *PnpUsecase) History(limit int, status models.ExecutionStatus, since time.Time) []models.HistoryEntry {
	return u.engine.Executor().History(limit, status, since)
}

// Statistics возвращает сводную статистику выполнения.
func (u *PnpUsecase) Statistics() map[string]interface{} {
	return u.engine.Executor().Statistics()
}

// CurrentLimits возвращает действующие лимиты безопасности.
func (u *PnpUsecase) CurrentLimits() models.SafetyLimits {
	return u.engine.Safety().CurrentLimits()
}

// UpdateLimits изменяет лимиты безопасности по имени поля.
func (u *PnpUsecase) UpdateLimits(limits map[string]float64) {
	u.engine.Safety().UpdateLimits(limits)
}

// SafetyEvents возвращает журнал событий безопасности с фильтрами.
func (u *PnpUsecase) SafetyEvents(limit int, eventType models.SafetyEventType, level models.SafetyLevel) []models.SafetyEvent {
	return u.engine.Safety().EventHistory(limit, eventType, level)
}

// ClearSafetyEvents очищает журнал событий безопасности.
func (u *PnpUsecase) ClearSafetyEvents() {
	u.engine.Safety().ClearEventHistory()
}

// ResolveSafetyEvent помечает событие как разрешенное.
func (u *PnpUsecase) ResolveSafetyEvent(index int) bool {
	return u.engine.Safety().ResolveEvent(index)
}

// SafetyStatistics возвращает статистику монитора безопасности.
func (u *PnpUsecase) SafetyStatistics() models.SafetyStatistics {
	return u.engine.Safety().Statistics()
}

// SafetyState возвращает снимок состояния монитора безопасности.
func (u *PnpUsecase) SafetyState() map[string]interface{} {
	return u.engine.Safety().CurrentState()
}

// EmergencyStop активирует аварийную остановку.
func (u *PnpUsecase) EmergencyStop(ctx context.Context, reason string) models.SafetyEvent {
	u.logger.Warn("Emergency stop requested", "reason", reason)
	return u.engine.Safety().EmergencyStop(ctx, reason)
}

// ClearEmergencyStop снимает аварийную остановку.
func (u *PnpUsecase) ClearEmergencyStop() {
	u.engine.Safety().ClearEmergencyStop()
}

// CacheStatistics возвращает статистику кэша состояний.
func (u *PnpUsecase) CacheStatistics() models.CacheStatistics {
	return u.engine.Cache().Statistics()
}

// CacheClear удаляет все записи кэша.
func (u *PnpUsecase) CacheClear() {
	u.engine.Cache().Clear()
}

// CacheInvalidate инвалидирует записи по ключу, категории или шаблону.
func (u *PnpUsecase) CacheInvalidate(req models.CacheInvalidateRequest) (int, error) {
	switch {
	case req.Key != "":
		if u.engine.Cache().Invalidate(req.Key) {
			return 1, nil
		}
		return 0, nil
	case req.Category != "":
		return u.engine.Cache().InvalidateCategory(models.CacheCategory(req.Category)), nil
	case req.Pattern != "":
		return u.engine.Cache().InvalidatePattern(req.Pattern), nil
	default:
		return 0, fmt.Errorf("key, category or pattern must be provided")
	}
}

// ServiceStatus возвращает сводку состояния сервиса и подключения.
func (u *PnpUsecase) ServiceStatus(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"execution": u.engine.Executor().Statistics(),
		"safety":    u.engine.Safety().CurrentState(),
		"cache":     u.engine.Cache().Statistics(),
		"device":    u.engine.State(),
	}

	if state, err := u.moonraker.Connection(ctx); err == nil {
		status["klippy_state"] = state
		status["moonraker_reachable"] = true
	} else {
		status["klippy_state"] = "unreachable"
		status["moonraker_reachable"] = false
	}
	return status
}
