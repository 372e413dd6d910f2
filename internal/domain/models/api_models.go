package models

// CommandRequest определяет структуру запроса на выполнение команды.
type CommandRequest struct {
	Command    string                 `json:"command" binding:"required"` // "move", "pick", "fan_set", ...
	Parameters map[string]interface{} `json:"parameters"`
	Metadata   map[string]interface{} `json:"metadata"`
	Priority   int                    `json:"priority"`
	ID         string                 `json:"id"`
}

// BatchRequest определяет структуру запроса на пакетное выполнение команд.
type BatchRequest struct {
	Commands    []CommandRequest `json:"commands" binding:"required,min=1"`
	StopOnError *bool            `json:"stop_on_error"` // по умолчанию true
}

// EnqueueRequest определяет структуру запроса на постановку команды в очередь.
type EnqueueRequest struct {
	Command    string                 `json:"command" binding:"required"`
	Parameters map[string]interface{} `json:"parameters"`
	Metadata   map[string]interface{} `json:"metadata"`
	Priority   int                    `json:"priority"`
}

// ProcessQueueRequest определяет структуру запроса на обработку очереди.
type ProcessQueueRequest struct {
	StopOnError *bool `json:"stop_on_error"`
}

// EmergencyStopRequest определяет структуру запроса аварийной остановки.
type EmergencyStopRequest struct {
	Reason string `json:"reason"`
}

// UpdateLimitsRequest определяет структуру запроса на обновление лимитов.
type UpdateLimitsRequest struct {
	Limits map[string]float64 `json:"limits" binding:"required"`
}

// ResolveEventRequest определяет структуру запроса на разрешение события.
type ResolveEventRequest struct {
	Index int `json:"index" binding:"min=0"`
}

// CacheInvalidateRequest определяет структуру запроса на инвалидацию кэша.
type CacheInvalidateRequest struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Pattern  string `json:"pattern"`
}
