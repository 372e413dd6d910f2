package models

// ErrorResponse представляет стандартный ответ с ошибкой.
type ErrorResponse struct {
	Status string `json:"status" example:"error"`
	Error  struct {
		Code    int    `json:"code" example:"400"`
		Message string `json:"message" example:"Неверный формат запроса"`
	} `json:"error"`
}

// MessageResponse представляет стандартный успешный ответ с сообщением.
type MessageResponse struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message" example:"Queue cleared"`
}

// CommandResponse представляет ответ на выполнение одной команды.
type CommandResponse struct {
	Status   string    `json:"status" example:"ok"`
	Response *Response `json:"response"`
}

// BatchResponse представляет ответ на пакетное выполнение команд.
type BatchResponse struct {
	Status    string     `json:"status" example:"ok"`
	Count     int        `json:"count" example:"3"`
	Responses []Response `json:"responses"`
}

// EnqueueResponse представляет ответ при успешной постановке в очередь.
type EnqueueResponse struct {
	Status    string `json:"status" example:"ok"`
	CommandID string `json:"command_id" example:"7f9f64be-7a3b-4a36-9c3e-1be72b2a7e10"`
}

// QueueInfoResponse представляет ответ с состоянием очереди.
type QueueInfoResponse struct {
	Status string    `json:"status" example:"ok"`
	Queue  QueueInfo `json:"queue"`
}

// HistoryResponse представляет ответ с историей выполнения.
type HistoryResponse struct {
	Status  string         `json:"status" example:"ok"`
	Count   int            `json:"count" example:"10"`
	Entries []HistoryEntry `json:"entries"`
}

// SafetyEventsResponse представляет ответ с историей событий безопасности.
type SafetyEventsResponse struct {
	Status string        `json:"status" example:"ok"`
	Count  int           `json:"count" example:"5"`
	Events []SafetyEvent `json:"events"`
}

// LimitsResponse представляет ответ с текущими лимитами безопасности.
type LimitsResponse struct {
	Status string       `json:"status" example:"ok"`
	Limits SafetyLimits `json:"limits"`
}

// CacheStatsResponse представляет ответ со статистикой кэша.
type CacheStatsResponse struct {
	Status     string          `json:"status" example:"ok"`
	Statistics CacheStatistics `json:"statistics"`
}
