package executor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/pkg/errors"
)

// Handler выполняет низкоуровневые инструкции: немедленно, пакетом или
// через приоритетную очередь. Каждое выполнение записывается в журнал.
//
// Конечный автомат: idle -> executing на время пакета или разбора
// очереди, затем всегда обратно в idle. Cancel переводит в stopped,
// Pause в paused, Resume и Reset в idle. Флаг отмены действует до
// Reset: новые пакеты прерываются сразу после текущей инструкции.
type Handler struct {
	runner  interfaces.ScriptRunner
	queue   *queue
	history *history

	mu             sync.Mutex
	state          models.ExecutionState
	cancelled      bool
	stateCallbacks []StateCallback

	defaultTimeout time.Duration
	logger         *logging.Logger
}

// StateCallback вызывается при каждом переходе конечного автомата.
type StateCallback func(from, to models.ExecutionState)

// NewHandler создает новый обработчик выполнения
func NewHandler(runner interfaces.ScriptRunner, cfg *config.AppConfig, logger *logging.Logger) *Handler {
	return &Handler{
		runner:         runner,
		queue:          newQueue(cfg.Engine.QueueMaxSize),
		history:        newHistory(cfg.Engine.HistoryMaxEntries),
		state:          models.StateIdle,
		defaultTimeout: time.Duration(cfg.Engine.DefaultTimeoutMs) * time.Millisecond,
		logger:         logger.WithPrefix("EXECUTOR"),
	}
}

// State возвращает текущее состояние конечного автомата.
func (h *Handler) State() models.ExecutionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// OnStateChange регистрирует обработчик переходов конечного автомата.
func (h *Handler) OnStateChange(cb StateCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stateCallbacks = append(h.stateCallbacks, cb)
}

func (h *Handler) setState(state models.ExecutionState) {
	h.mu.Lock()
	from := h.state
	if from == state {
		h.mu.Unlock()
		return
	}
	h.state = state
	callbacks := make([]StateCallback, len(h.stateCallbacks))
	copy(callbacks, h.stateCallbacks)
	h.mu.Unlock()

	for _, cb := range callbacks {
		cb(from, state)
	}
}

func (h *Handler) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// RunOnce выполняет одну инструкцию с таймаутом. Результат всегда
// попадает в журнал; ошибка возвращается при таймауте или отмене.
func (h *Handler) RunOnce(ctx context.Context, instruction string, timeout time.Duration, metadata map[string]interface{}) (models.ExecutionResult, error) {
	if timeout <= 0 {
		timeout = h.defaultTimeout
	}

	result := models.ExecutionResult{
		ID:          uuid.New().String(),
		Instruction: instruction,
	}

	if h.isCancelled() {
		result.Status = models.ExecutionCancelled
		result.ErrorMessage = "execution cancelled"
		h.record(result, metadata)
		return result, &errors.CancellationError{Stage: "instruction"}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	response, err := h.runner.RunScript(runCtx, instruction)
	result.ExecutionTime = time.Since(start).Seconds()

	switch {
	case err != nil && runCtx.Err() == context.DeadlineExceeded:
		result.Status = models.ExecutionFailed
		timeoutErr := &errors.TimeoutError{Timeout: timeout}
		result.ErrorMessage = timeoutErr.Error()
		h.record(result, metadata)
		h.logger.Error("Instruction timed out", "gcode", instruction, "timeout", timeout)
		return result, timeoutErr
	case err != nil:
		result.Status = models.ExecutionFailed
		result.ErrorMessage = err.Error()
		h.record(result, metadata)
		h.logger.Error("Instruction failed", "gcode", instruction, "error", err)
		return result, nil
	default:
		result.Status = models.ExecutionCompleted
		result.Response = response
		h.record(result, metadata)
		h.logger.Debug("Instruction completed", "gcode", instruction, "time", result.ExecutionTime)
		return result, nil
	}
}

func (h *Handler) record(result models.ExecutionResult, metadata map[string]interface{}) {
	h.history.add(models.HistoryEntry{
		ID:            result.ID,
		Instruction:   result.Instruction,
		Status:        result.Status,
		Timestamp:     time.Now(),
		ExecutionTime: result.ExecutionTime,
		Response:      result.Response,
		ErrorMessage:  result.ErrorMessage,
		Metadata:      metadata,
	})
}

// RunBatch выполняет список инструкций последовательно. На время
// выполнения обработчик находится в состоянии executing и всегда
// возвращается в idle, независимо от ошибок. При stopOnError первый
// неуспешный результат включается в ответ и выполнение прерывается.
func (h *Handler) RunBatch(ctx context.Context, instructions []string, stopOnError bool) []models.ExecutionResult {
	h.setState(models.StateExecuting)
	defer h.setState(models.StateIdle)

	results := make([]models.ExecutionResult, 0, len(instructions))
	for _, instruction := range instructions {
		if h.isCancelled() {
			h.logger.Warn("Batch interrupted by cancellation", "remaining", len(instructions)-len(results))
			break
		}

		result, _ := h.RunOnce(ctx, instruction, 0, nil)
		results = append(results, result)

		if stopOnError && result.Status != models.ExecutionCompleted {
			break
		}
	}
	return results
}

// Enqueue добавляет инструкцию в приоритетную очередь.
func (h *Handler) Enqueue(instruction string, priority int, metadata map[string]interface{}) (string, error) {
	id, err := h.queue.push(instruction, priority, metadata)
	if err != nil {
		h.logger.Warn("Queue is full, command rejected")
		return "", err
	}
	h.logger.Debug("Instruction queued", "id", id, "priority", priority)
	return id, nil
}

// ProcessQueue выполняет все инструкции очереди в порядке приоритета.
// Семантика состояния и отмены совпадает с RunBatch.
func (h *Handler) ProcessQueue(ctx context.Context, stopOnError bool) []models.ExecutionResult {
	h.setState(models.StateExecuting)
	defer h.setState(models.StateIdle)

	results := make([]models.ExecutionResult, 0, h.queue.size())
	for {
		if h.isCancelled() {
			h.logger.Warn("Queue processing interrupted by cancellation", "remaining", h.queue.size())
			break
		}

		cmd, ok := h.queue.pop()
		if !ok {
			break
		}

		result, _ := h.RunOnce(ctx, cmd.Instruction, 0, cmd.Metadata)
		result.ID = cmd.ID
		results = append(results, result)

		if stopOnError && result.Status != models.ExecutionCompleted {
			break
		}
	}
	return results
}

// Peek возвращает следующую команду очереди, не извлекая ее.
func (h *Handler) Peek() (models.QueuedCommand, bool) {
	return h.queue.peek()
}

// Remove удаляет ожидающую команду по идентификатору.
func (h *Handler) Remove(id string) bool {
	removed := h.queue.remove(id)
	if removed {
		h.logger.Debug("Queued instruction removed", "id", id)
	}
	return removed
}

// QueueStatus возвращает размер и содержимое очереди.
func (h *Handler) QueueStatus() models.QueueInfo {
	return models.QueueInfo{
		Size:     h.queue.size(),
		Snapshot: h.queue.snapshot(),
	}
}

// ClearQueue удаляет все ожидающие инструкции.
func (h *Handler) ClearQueue() int {
	removed := h.queue.clear()
	h.logger.Info("Queue cleared", "removed", removed)
	return removed
}

// Cancel прерывает выполнение. Флаг действует до Reset.
func (h *Handler) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.setState(models.StateStopped)
	h.logger.Warn("Execution cancelled")
}

// Pause приостанавливает обработчик.
func (h *Handler) Pause() {
	h.setState(models.StatePaused)
	h.logger.Info("Execution paused")
}

// Resume возвращает обработчик в состояние готовности.
func (h *Handler) Resume() {
	h.setState(models.StateIdle)
	h.logger.Info("Execution resumed")
}

// Reset очищает очередь, журнал и флаг отмены.
func (h *Handler) Reset() {
	h.queue.clear()
	h.history.clear()

	h.mu.Lock()
	h.cancelled = false
	h.mu.Unlock()
	h.setState(models.StateIdle)

	h.logger.Info("Executor reset")
}

// History возвращает записи журнала выполнения с фильтрами.
func (h *Handler) History(limit int, status models.ExecutionStatus, since time.Time) []models.HistoryEntry {
	return h.history.list(limit, status, since)
}

// HistoryEntry возвращает запись журнала по идентификатору.
func (h *Handler) HistoryEntry(id string) (models.HistoryEntry, bool) {
	return h.history.entry(id)
}

// Statistics возвращает состояние, размер очереди и сводку журнала.
func (h *Handler) Statistics() map[string]interface{} {
	return map[string]interface{}{
		"state":      h.State(),
		"queue_size": h.queue.size(),
		"history":    h.history.statistics(),
	}
}
