package models

import "time"

// ExecutionStatus определяет статус выполнения низкоуровневой инструкции.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// ExecutionState определяет состояние конечного автомата обработчика выполнения.
type ExecutionState string

const (
	StateIdle      ExecutionState = "idle"
	StateExecuting ExecutionState = "executing"
	StatePaused    ExecutionState = "paused"
	StateStopped   ExecutionState = "stopped"
	StateError     ExecutionState = "error"
)

// ExecutionResult представляет результат выполнения одной инструкции.
type ExecutionResult struct {
	ID            string                 `json:"id"`
	Status        ExecutionStatus        `json:"status"`
	Instruction   string                 `json:"gcode"`
	Response      map[string]interface{} `json:"response,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	ExecutionTime float64                `json:"execution_time"`
}

// QueuedCommand представляет инструкцию, ожидающую выполнения в очереди.
type QueuedCommand struct {
	ID          string                 `json:"id"`
	Instruction string                 `json:"command"`
	Priority    int                    `json:"priority"`
	CreatedAt   time.Time              `json:"created_at"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HistoryEntry представляет запись в истории выполнения.
type HistoryEntry struct {
	ID            string                 `json:"id"`
	Instruction   string                 `json:"gcode"`
	Status        ExecutionStatus        `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	ExecutionTime float64                `json:"execution_time"`
	Response      map[string]interface{} `json:"response,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ExecutionStatistics содержит сводную статистику по истории выполнения.
type ExecutionStatistics struct {
	Total            int     `json:"total"`
	Completed        int     `json:"completed"`
	Failed           int     `json:"failed"`
	Cancelled        int     `json:"cancelled"`
	SuccessRate      float64 `json:"success_rate"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
}

// QueueInfo содержит состояние очереди команд.
type QueueInfo struct {
	Size     int             `json:"size"`
	Snapshot []QueuedCommand `json:"snapshot"`
}
