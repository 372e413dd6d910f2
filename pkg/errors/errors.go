package errors

import (
	"errors"
	"fmt"
	"time"
)

const (
	InternalServerError = "internal server error"
	BadRequest          = "bad request"
	NotFound            = "not_found"
	UnauthorizedError   = "unauthorized"

	UnauthorizedErrorCode   = 401
	InvalidDataCode         = 402
	ForbiddenErrorCode      = 403
	InternalServerErrorCode = 500
	NotFoundErrorCode       = 404
)

// Стабильные коды ошибок, возвращаемые в поле error_code ответа.
const (
	CodeUnknownCommand       = "UNKNOWN_COMMAND"
	CodeBoundsViolation      = "BOUNDS_VIOLATION"
	CodeEmergencyStopActive  = "EMERGENCY_STOP_ACTIVE"
	CodeExecutionTimeout     = "EXECUTION_TIMEOUT"
	CodeExecutionError       = "EXECUTION_ERROR"
	CodeExecutionCancelled   = "EXECUTION_CANCELLED"
	CodeGcodeExecutionFailed = "GCODE_EXECUTION_FAILED"
	CodeGcodeError           = "GCODE_ERROR"
	CodeAPIError             = "API_ERROR"
	CodeHybridError          = "HYBRID_ERROR"
	CodeNotImplemented       = "NOT_IMPLEMENTED"
	CodeQueueFull            = "QUEUE_FULL"
	CodeQueueExecutionFailed = "QUEUE_EXECUTION_FAILED"
	CodeQueueProcessError    = "QUEUE_PROCESS_ERROR"
	CodeGpioReadFailed       = "GPIO_READ_FAILED"
	CodeSensorReadFailed     = "SENSOR_READ_FAILED"
	CodeFanControlFailed     = "FAN_CONTROL_FAILED"
	CodePwmControlFailed     = "PWM_CONTROL_FAILED"
	CodePwmRampFailed        = "PWM_RAMP_FAILED"
)

// AppError представляет собой стандартизированную структуру ошибки для API.
type AppError struct {
	Code         int    `json:"code"`    // HTTP статус код
	Message      string `json:"message"` // Сообщение для клиента
	Err          error  `json:"-"`       // Внутренняя ошибка, не для клиента
	IsUserFacing bool   `json:"-"`       // Флаг, указывающий, можно ли показывать `Err`
}

func (a *AppError) Error() string {
	if a == nil {
		return ""
	}
	if a.Err != nil {
		return fmt.Sprintf("%s (code: %d): %v", a.Message, a.Code, a.Err)
	}
	return fmt.Sprintf("%s (code: %d)", a.Message, a.Code)
}

// NewAppError создает новый экземпляр AppError.
func NewAppError(httpCode int, message string, err error, isUserFacing bool) *AppError {
	return &AppError{
		Code:         httpCode,
		Message:      message,
		Err:          err,
		IsUserFacing: isUserFacing,
	}
}

// ValidationError возникает при некорректных входных параметрах команды.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// SafetyViolationError возникает при нарушении физических лимитов безопасности.
// Команда с такой ошибкой никогда не достигает прошивки.
type SafetyViolationError struct {
	Violations []string
}

func (e *SafetyViolationError) Error() string {
	if len(e.Violations) == 0 {
		return "safety violation"
	}
	msg := e.Violations[0]
	for _, v := range e.Violations[1:] {
		msg += ", " + v
	}
	return "safety violation: " + msg
}

// DownstreamError возникает при ошибке взаимодействия с Moonraker.
type DownstreamError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *DownstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("downstream request %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("downstream request %s failed with status %d", e.Endpoint, e.StatusCode)
}

func (e *DownstreamError) Unwrap() error { return e.Err }

// TimeoutError возникает при превышении таймаута выполнения команды.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command execution timed out after %s", e.Timeout)
}

// CancellationError возникает при отмене выполнения очереди или пакета команд.
type CancellationError struct {
	Stage string
}

func (e *CancellationError) Error() string {
	if e.Stage != "" {
		return e.Stage + " cancelled"
	}
	return "execution cancelled"
}

// QueueFullError возникает при попытке добавить команду в заполненную очередь.
type QueueFullError struct {
	MaxSize int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("queue is full (max size: %d)", e.MaxSize)
}

// IsTimeout проверяет, является ли ошибка таймаутом выполнения.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsCancellation проверяет, является ли ошибка отменой выполнения.
func IsCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce)
}

// IsQueueFull проверяет, является ли ошибка переполнением очереди.
func IsQueueFull(err error) bool {
	var qe *QueueFullError
	return errors.As(err, &qe)
}

// IsSafetyViolation проверяет, является ли ошибка нарушением лимитов.
func IsSafetyViolation(err error) bool {
	var se *SafetyViolationError
	return errors.As(err, &se)
}

var (
	ErrDataNotFound = errors.New("data not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInternal     = errors.New("internal error")
)
