package translator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/internal/services/cache"
	"github.com/klipperplace/pnpService/internal/services/executor"
	"github.com/klipperplace/pnpService/internal/services/safety"
	"github.com/klipperplace/pnpService/pkg/errors"
)

// Strategy определяет способ выполнения типа команды.
type Strategy string

const (
	// StrategyInstruction - команда транслируется в G-code и проходит
	// через обработчик выполнения.
	StrategyInstruction Strategy = "gcode"
	// StrategyDirectAPI - команда выполняется прямым вызовом REST API
	// или внутренней операцией, минуя генерацию инструкций.
	StrategyDirectAPI Strategy = "direct_api"
	// StrategyHybrid - команда объединяет данные нескольких источников.
	StrategyHybrid Strategy = "hybrid"
)

var commandStrategies = map[models.CommandType]Strategy{
	models.CommandMove:          StrategyInstruction,
	models.CommandMoveAbsolute:  StrategyInstruction,
	models.CommandMoveRelative:  StrategyInstruction,
	models.CommandHome:          StrategyInstruction,
	models.CommandPick:          StrategyInstruction,
	models.CommandPlace:         StrategyInstruction,
	models.CommandPickAndPlace:  StrategyInstruction,
	models.CommandActuate:       StrategyInstruction,
	models.CommandActuateOn:     StrategyInstruction,
	models.CommandActuateOff:    StrategyInstruction,
	models.CommandVacuumOn:      StrategyInstruction,
	models.CommandVacuumOff:     StrategyInstruction,
	models.CommandVacuumSet:     StrategyInstruction,
	models.CommandFanOn:         StrategyInstruction,
	models.CommandFanOff:        StrategyInstruction,
	models.CommandGPIOWrite:     StrategyInstruction,
	models.CommandFeederAdvance: StrategyInstruction,
	models.CommandFeederRetract: StrategyInstruction,
	models.CommandQueueCommand:  StrategyInstruction,
	models.CommandQueueBatch:    StrategyInstruction,

	models.CommandGPIORead:      StrategyDirectAPI,
	models.CommandSensorRead:    StrategyDirectAPI,
	models.CommandSensorReadAll: StrategyDirectAPI,
	models.CommandFanSet:        StrategyDirectAPI,
	models.CommandPWMSet:        StrategyDirectAPI,
	models.CommandPWMRamp:       StrategyDirectAPI,
	models.CommandQueueStatus:   StrategyDirectAPI,
	models.CommandQueueClear:    StrategyDirectAPI,
	models.CommandCancel:        StrategyDirectAPI,
	models.CommandPause:         StrategyDirectAPI,
	models.CommandResume:        StrategyDirectAPI,
	models.CommandReset:         StrategyDirectAPI,

	models.CommandGetStatus:       StrategyHybrid,
	models.CommandGetPosition:     StrategyHybrid,
	models.CommandGetPrinterState: StrategyHybrid,
}

// Engine транслирует семантические команды в вызовы Moonraker.
// Проверки безопасности выполняются до генерации инструкций: небезопасная
// команда не порождает ни G-code, ни обращения к прошивке.
type Engine struct {
	moonraker interfaces.MoonrakerService
	renderer  *Renderer
	cache     *cache.Manager
	safety    *safety.Monitor
	executor  *executor.Handler
	logger    *logging.Logger

	mu    sync.Mutex
	state models.DeviceState
}

// NewEngine создает новый движок трансляции команд
func NewEngine(
	moonraker interfaces.MoonrakerService,
	renderer *Renderer,
	cacheManager *cache.Manager,
	monitor *safety.Monitor,
	handler *executor.Handler,
	logger *logging.Logger,
) *Engine {
	return &Engine{
		moonraker: moonraker,
		renderer:  renderer,
		cache:     cacheManager,
		safety:    monitor,
		executor:  handler,
		logger:    logger.WithPrefix("ENGINE"),
		state:     models.NewDeviceState(),
	}
}

// Renderer возвращает генератор инструкций для регистрации шаблонов.
func (e *Engine) Renderer() *Renderer { return e.renderer }

// Executor возвращает обработчик выполнения.
func (e *Engine) Executor() *executor.Handler { return e.executor }

// Safety возвращает монитор безопасности.
func (e *Engine) Safety() *safety.Monitor { return e.safety }

// Cache возвращает менеджер кэша состояний.
func (e *Engine) Cache() *cache.Manager { return e.cache }

// Execute выполняет одну семантическую команду и возвращает
// унифицированный ответ. Никогда не паникует: внутренний сбой
// превращается в ответ с кодом EXECUTION_ERROR.
func (e *Engine) Execute(ctx context.Context, cmd models.Command) (response models.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Command execution panicked", "command", cmd.Type, "panic", r)
			response = errorResponse(cmd, errors.CodeExecutionError, fmt.Sprintf("internal error: %v", r))
		}
		response.ExecutionTime = time.Since(start).Seconds()
	}()

	strategy, known := commandStrategies[cmd.Type]
	if !known {
		return errorResponse(cmd, errors.CodeUnknownCommand,
			fmt.Sprintf("unknown command type: %s", cmd.Type))
	}

	if resp, ok := e.checkSafety(cmd); !ok {
		return resp
	}

	if strategy == StrategyInstruction && e.safety.IsEmergencyStopped() {
		return errorResponse(cmd, errors.CodeEmergencyStopActive,
			"emergency stop is active, clear it before sending motion commands")
	}

	switch strategy {
	case StrategyInstruction:
		return e.executeInstruction(ctx, cmd)
	case StrategyDirectAPI:
		return e.executeDirect(ctx, cmd)
	default:
		return e.executeHybrid(ctx, cmd)
	}
}

// checkSafety проверяет команду на соответствие лимитам. Возвращает
// готовый ответ с кодом BOUNDS_VIOLATION, если команда отклонена.
func (e *Engine) checkSafety(cmd models.Command) (models.Response, bool) {
	var ok bool
	var violations []string

	switch cmd.Type {
	case models.CommandMove, models.CommandPick, models.CommandPlace:
		ok, violations = e.safety.ValidateMove(cmd.Parameters)
	case models.CommandPickAndPlace:
		// Проверяются обе точки цикла: забор (x/y/z либо pick_*)
		// и установка (place_*).
		ok, violations = e.safety.ValidateMove(cmd.Parameters)
		for _, target := range []map[string]interface{}{
			axisTarget(cmd.Parameters, "pick_x", "pick_y", "pick_z"),
			axisTarget(cmd.Parameters, "place_x", "place_y", "place_z"),
		} {
			if targetOK, targetViolations := e.safety.ValidateMove(target); !targetOK {
				ok = false
				violations = append(violations, targetViolations...)
			}
		}
	case models.CommandFanSet, models.CommandFanOn:
		if speed, found := lookupNum(cmd.Parameters, "speed"); found {
			ok, violations = e.safety.ValidateFan(normalizePWM(speed))
		} else {
			ok = true
		}
	case models.CommandPWMSet:
		ok, violations = e.safety.CheckPWMLimits(numParam(cmd.Parameters, "value", 0))
	case models.CommandPWMRamp:
		ok, violations = e.safety.CheckPWMLimits(
			numParam(cmd.Parameters, "start_value", 0),
			numParam(cmd.Parameters, "end_value", 0))
	case models.CommandFeederAdvance, models.CommandFeederRetract:
		if feedrate, found := lookupNum(cmd.Parameters, "feedrate"); found {
			ok, violations = e.safety.ValidateFeedrate(feedrate)
		} else {
			ok = true
		}
	default:
		ok = true
	}

	if ok {
		return models.Response{}, true
	}

	resp := errorResponse(cmd, errors.CodeBoundsViolation,
		(&errors.SafetyViolationError{Violations: violations}).Error())
	resp.Data = map[string]interface{}{"violations": violations}
	return resp, false
}

// axisTarget проецирует именованные координаты точки на оси x/y/z.
func axisTarget(p map[string]interface{}, xName, yName, zName string) map[string]interface{} {
	target := make(map[string]interface{}, 3)
	for axis, name := range map[string]string{"x": xName, "y": yName, "z": zName} {
		if v, ok := lookupNum(p, name); ok {
			target[axis] = v
		}
	}
	return target
}

// normalizePWM приводит значения в диапазоне 0-255 к долям 0.0-1.0.
func normalizePWM(v float64) float64 {
	if v > 1.0 {
		return v / 255.0
	}
	return v
}

func errorResponse(cmd models.Command, code, message string) models.Response {
	resp := models.NewResponse(models.StatusError, cmd)
	resp.ErrorCode = code
	resp.ErrorMessage = message
	return resp
}

// executeInstruction транслирует команду в G-code и выполняет его.
func (e *Engine) executeInstruction(ctx context.Context, cmd models.Command) models.Response {
	script, err := e.renderInstruction(cmd)
	if err != nil {
		return errorResponse(cmd, errors.CodeGcodeError, err.Error())
	}

	result, execErr := e.executor.RunOnce(ctx, script, 0, cmd.Metadata)

	switch {
	case errors.IsTimeout(execErr):
		resp := models.NewResponse(models.StatusTimeout, cmd)
		resp.ErrorCode = errors.CodeExecutionTimeout
		resp.ErrorMessage = result.ErrorMessage
		return resp
	case errors.IsCancellation(execErr):
		resp := models.NewResponse(models.StatusCancelled, cmd)
		resp.ErrorCode = errors.CodeExecutionCancelled
		resp.ErrorMessage = result.ErrorMessage
		return resp
	case result.Status != models.ExecutionCompleted:
		return errorResponse(cmd, errors.CodeGcodeExecutionFailed, result.ErrorMessage)
	}

	e.applyStateChange(cmd)

	resp := models.NewResponse(models.StatusSuccess, cmd)
	resp.Data = map[string]interface{}{
		"gcode":    script,
		"response": result.Response,
	}
	return resp
}

// renderInstruction возвращает текст инструкций команды. Команды
// queue_command и queue_batch несут готовый G-code в параметрах.
func (e *Engine) renderInstruction(cmd models.Command) (string, error) {
	switch cmd.Type {
	case models.CommandQueueCommand:
		script := stringParam(cmd.Parameters, "gcode", "")
		if script == "" {
			return "", &errors.ValidationError{Field: "gcode", Message: "parameter is required"}
		}
		return script, nil
	case models.CommandQueueBatch:
		raw, ok := cmd.Parameters["commands"].([]interface{})
		if !ok || len(raw) == 0 {
			return "", &errors.ValidationError{Field: "commands", Message: "non-empty list is required"}
		}
		lines := make([]string, 0, len(raw))
		for _, item := range raw {
			line, ok := item.(string)
			if !ok || line == "" {
				return "", &errors.ValidationError{Field: "commands", Message: "entries must be non-empty strings"}
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n"), nil
	default:
		return e.renderer.Render(cmd)
	}
}

// applyStateChange обновляет отслеживаемое состояние устройства.
// Вызывается только после успешного выполнения.
func (e *Engine) applyStateChange(cmd models.Command) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := cmd.Parameters
	switch cmd.Type {
	case models.CommandMove, models.CommandPick, models.CommandPlace, models.CommandPickAndPlace:
		for _, axis := range []string{"x", "y", "z"} {
			if value, ok := lookupNum(p, axis); ok {
				e.state.Position[axis] = value
			}
		}
	case models.CommandHome:
		axes := strings.Fields(strings.ToUpper(stringParam(p, "axes", "X Y Z")))
		e.state.HomedAxes = mergeAxes(e.state.HomedAxes, axes)
		e.safety.MarkHomed(axes)
	case models.CommandVacuumOn:
		e.state.VacuumEnabled = true
	case models.CommandVacuumOff:
		e.state.VacuumEnabled = false
	case models.CommandVacuumSet:
		e.state.VacuumEnabled = numParam(p, "power", 0) > 0
	case models.CommandFanOn:
		e.state.FanSpeed = 1.0
	case models.CommandFanOff:
		e.state.FanSpeed = 0.0
	case models.CommandActuate, models.CommandGPIOWrite:
		if pin := stringParam(p, "pin", ""); pin != "" {
			e.state.Actuators[pin] = numParam(p, "value", 1)
		}
	case models.CommandActuateOn:
		if pin := stringParam(p, "pin", ""); pin != "" {
			e.state.Actuators[pin] = 1.0
		}
	case models.CommandActuateOff:
		if pin := stringParam(p, "pin", ""); pin != "" {
			e.state.Actuators[pin] = 0.0
		}
	}
}

func mergeAxes(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))
	for _, axis := range append(existing, added...) {
		if !seen[axis] {
			seen[axis] = true
			merged = append(merged, axis)
		}
	}
	return merged
}

// executeDirect выполняет команду прямым вызовом API или внутренней
// операцией очереди.
func (e *Engine) executeDirect(ctx context.Context, cmd models.Command) models.Response {
	p := cmd.Parameters

	switch cmd.Type {
	case models.CommandGPIORead:
		pin := stringParam(p, "pin", "all")
		return e.cachedRead(ctx, cmd, "gpio:"+pin, errors.CodeGpioReadFailed,
			func(ctx context.Context, _ string) (interface{}, error) {
				return e.moonraker.ReadGPIO(ctx, pin)
			})

	case models.CommandSensorRead:
		name := stringParam(p, "sensor", stringParam(p, "name", ""))
		if name == "" {
			return errorResponse(cmd, errors.CodeSensorReadFailed, "sensor name is required")
		}
		return e.cachedRead(ctx, cmd, "sensor:"+name, errors.CodeSensorReadFailed,
			func(ctx context.Context, _ string) (interface{}, error) {
				return e.moonraker.ReadSensor(ctx, name)
			})

	case models.CommandSensorReadAll:
		return e.cachedRead(ctx, cmd, "sensor:all", errors.CodeSensorReadFailed,
			func(ctx context.Context, _ string) (interface{}, error) {
				return e.moonraker.ReadSensor(ctx, "all")
			})

	case models.CommandFanSet:
		fan := stringParam(p, "fan", "fan")
		speed := normalizePWM(numParam(p, "speed", 0))
		data, err := e.moonraker.SetFan(ctx, fan, speed)
		if err != nil {
			return errorResponse(cmd, errors.CodeFanControlFailed, err.Error())
		}
		e.cache.Invalidate("fan:" + fan)
		e.mu.Lock()
		e.state.FanSpeed = speed
		e.mu.Unlock()
		return successResponse(cmd, data)

	case models.CommandPWMSet:
		pin := stringParam(p, "pin", "")
		if pin == "" {
			return errorResponse(cmd, errors.CodePwmControlFailed, "pin name is required")
		}
		data, err := e.moonraker.SetPWM(ctx, pin, numParam(p, "value", 0))
		if err != nil {
			return errorResponse(cmd, errors.CodePwmControlFailed, err.Error())
		}
		e.cache.Invalidate("pwm:" + pin)
		return successResponse(cmd, data)

	case models.CommandPWMRamp:
		pin := stringParam(p, "pin", "")
		if pin == "" {
			return errorResponse(cmd, errors.CodePwmRampFailed, "pin name is required")
		}
		data, err := e.moonraker.RampPWM(ctx, pin,
			numParam(p, "start_value", 0),
			numParam(p, "end_value", 0),
			numParam(p, "duration", 1.0),
			int(numParam(p, "steps", 10)))
		if err != nil {
			return errorResponse(cmd, errors.CodePwmRampFailed, err.Error())
		}
		e.cache.Invalidate("pwm:" + pin)
		return successResponse(cmd, data)

	case models.CommandQueueStatus:
		info := e.executor.QueueStatus()
		return successResponse(cmd, map[string]interface{}{
			"size":     info.Size,
			"snapshot": info.Snapshot,
		})

	case models.CommandQueueClear:
		removed := e.executor.ClearQueue()
		return successResponse(cmd, map[string]interface{}{"removed": removed})

	case models.CommandCancel:
		e.executor.Cancel()
		return successResponse(cmd, map[string]interface{}{"state": e.executor.State()})

	case models.CommandPause:
		e.executor.Pause()
		return successResponse(cmd, map[string]interface{}{"state": e.executor.State()})

	case models.CommandResume:
		e.executor.Resume()
		return successResponse(cmd, map[string]interface{}{"state": e.executor.State()})

	case models.CommandReset:
		e.executor.Reset()
		e.ResetState()
		return successResponse(cmd, map[string]interface{}{"state": e.executor.State()})

	default:
		return errorResponse(cmd, errors.CodeNotImplemented,
			fmt.Sprintf("direct handler for %q is not implemented", cmd.Type))
	}
}

// cachedRead выполняет чтение через кэш с регистрацией функции
// обновления по требованию.
func (e *Engine) cachedRead(ctx context.Context, cmd models.Command, key, errorCode string, fn cache.RefreshFunc) models.Response {
	e.cache.RegisterRefreshFunc(key, fn)

	value, err := e.cache.Get(ctx, key)
	if err != nil {
		return errorResponse(cmd, errorCode, err.Error())
	}

	data, ok := value.(map[string]interface{})
	if !ok {
		data = map[string]interface{}{"value": value}
	}
	return successResponse(cmd, data)
}

// executeHybrid собирает ответ из нескольких источников данных.
func (e *Engine) executeHybrid(ctx context.Context, cmd models.Command) models.Response {
	switch cmd.Type {
	case models.CommandGetPosition:
		return e.getPosition(ctx, cmd)
	case models.CommandGetPrinterState:
		return e.getPrinterState(ctx, cmd)
	case models.CommandGetStatus:
		return e.getStatus(ctx, cmd)
	default:
		return errorResponse(cmd, errors.CodeHybridError,
			fmt.Sprintf("hybrid handler for %q is not implemented", cmd.Type))
	}
}

func (e *Engine) getPosition(ctx context.Context, cmd models.Command) models.Response {
	e.cache.RegisterRefreshFunc("position:toolhead", func(ctx context.Context, _ string) (interface{}, error) {
		return e.moonraker.QueryObjects(ctx, []string{"toolhead"})
	})

	value, err := e.cache.Get(ctx, "position:toolhead")
	if err != nil {
		return errorResponse(cmd, errors.CodeAPIError, err.Error())
	}

	e.mu.Lock()
	tracked := map[string]float64{}
	for axis, v := range e.state.Position {
		tracked[axis] = v
	}
	e.mu.Unlock()

	data := map[string]interface{}{"tracked_position": tracked}
	if reported, ok := value.(map[string]interface{}); ok {
		data["reported"] = reported
	}
	return successResponse(cmd, data)
}

func (e *Engine) getPrinterState(ctx context.Context, cmd models.Command) models.Response {
	e.cache.RegisterRefreshFunc("printer_state:print_stats", func(ctx context.Context, _ string) (interface{}, error) {
		return e.moonraker.QueryObjects(ctx, []string{"print_stats", "idle_timeout"})
	})

	value, err := e.cache.Get(ctx, "printer_state:print_stats")
	if err != nil {
		return errorResponse(cmd, errors.CodeAPIError, err.Error())
	}

	data, ok := value.(map[string]interface{})
	if !ok {
		data = map[string]interface{}{"value": value}
	}
	return successResponse(cmd, data)
}

func (e *Engine) getStatus(ctx context.Context, cmd models.Command) models.Response {
	data := map[string]interface{}{
		"execution": e.executor.Statistics(),
		"safety":    e.safety.CurrentState(),
		"device":    e.State(),
	}

	if connection, err := e.moonraker.Connection(ctx); err == nil {
		data["klippy_state"] = connection
	} else {
		data["klippy_state"] = "unreachable"
	}

	if objects, err := e.moonraker.QueryObjects(ctx, []string{"print_stats", "idle_timeout"}); err == nil {
		data["printer"] = objects
	}

	return successResponse(cmd, data)
}

func successResponse(cmd models.Command, data map[string]interface{}) models.Response {
	resp := models.NewResponse(models.StatusSuccess, cmd)
	resp.Data = data
	return resp
}

// ExecuteBatch выполняет команды последовательно. При stopOnError
// ответ отклоненной команды включается в результат и выполнение
// прерывается.
func (e *Engine) ExecuteBatch(ctx context.Context, cmds []models.Command, stopOnError bool) []models.Response {
	responses := make([]models.Response, 0, len(cmds))
	for _, cmd := range cmds {
		resp := e.Execute(ctx, cmd)
		responses = append(responses, resp)
		if stopOnError && resp.Status != models.StatusSuccess {
			e.logger.Warn("Batch stopped on error", "command", cmd.Type, "error_code", resp.ErrorCode)
			break
		}
	}
	return responses
}

// Enqueue транслирует команду и помещает ее инструкции в очередь.
// Проверки безопасности выполняются на этапе постановки.
func (e *Engine) Enqueue(ctx context.Context, cmd models.Command, priority int) (string, error) {
	if resp, ok := e.checkSafety(cmd); !ok {
		return "", &errors.SafetyViolationError{Violations: responseViolations(resp)}
	}

	script, err := e.renderInstruction(cmd)
	if err != nil {
		return "", err
	}
	return e.executor.Enqueue(script, priority, cmd.Metadata)
}

func responseViolations(resp models.Response) []string {
	raw, ok := resp.Data["violations"].([]string)
	if ok {
		return raw
	}
	return []string{resp.ErrorMessage}
}

// ProcessQueue выполняет очередь и преобразует результаты в ответы.
func (e *Engine) ProcessQueue(ctx context.Context, stopOnError bool) []models.Response {
	results := e.executor.ProcessQueue(ctx, stopOnError)

	responses := make([]models.Response, 0, len(results))
	for _, result := range results {
		resp := models.Response{
			Status:        models.StatusSuccess,
			Command:       "queued_instruction",
			CommandID:     result.ID,
			ExecutionTime: result.ExecutionTime,
			Timestamp:     time.Now(),
		}
		if result.Status == models.ExecutionCompleted {
			resp.Data = map[string]interface{}{
				"gcode":          result.Instruction,
				"execution_time": result.ExecutionTime,
			}
		} else {
			resp.Status = models.StatusError
			resp.ErrorCode = errors.CodeQueueExecutionFailed
			resp.ErrorMessage = result.ErrorMessage
		}
		responses = append(responses, resp)
	}
	return responses
}

// State возвращает копию отслеживаемого состояния устройства.
func (e *Engine) State() models.DeviceState {
	e.mu.Lock()
	defer e.mu.Unlock()

	position := make(map[string]float64, len(e.state.Position))
	for axis, v := range e.state.Position {
		position[axis] = v
	}
	actuators := make(map[string]interface{}, len(e.state.Actuators))
	for pin, v := range e.state.Actuators {
		actuators[pin] = v
	}
	homed := make([]string, len(e.state.HomedAxes))
	copy(homed, e.state.HomedAxes)

	return models.DeviceState{
		Position:      position,
		VacuumEnabled: e.state.VacuumEnabled,
		FanSpeed:      e.state.FanSpeed,
		Actuators:     actuators,
		HomedAxes:     homed,
	}
}

// ResetState сбрасывает отслеживаемое состояние устройства.
func (e *Engine) ResetState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = models.NewDeviceState()
}
