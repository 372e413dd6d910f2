package models

import "time"

// CacheCategory определяет категорию кэшируемых данных оборудования.
type CacheCategory string

const (
	CategoryGPIO         CacheCategory = "gpio"
	CategorySensor       CacheCategory = "sensor"
	CategoryPosition     CacheCategory = "position"
	CategoryFan          CacheCategory = "fan"
	CategoryPWM          CacheCategory = "pwm"
	CategoryPrinterState CacheCategory = "printer_state"
	CategoryActuator     CacheCategory = "actuator"
	CategoryCustom       CacheCategory = "custom"
)

// DefaultCategoryTTLs возвращает TTL по умолчанию для каждой категории.
// Интервалы отражают допустимую устарелость данных каждой категории.
func DefaultCategoryTTLs() map[CacheCategory]time.Duration {
	return map[CacheCategory]time.Duration{
		CategoryGPIO:         1 * time.Second,
		CategorySensor:       500 * time.Millisecond,
		CategoryPosition:     100 * time.Millisecond,
		CategoryFan:          1 * time.Second,
		CategoryPWM:          1 * time.Second,
		CategoryPrinterState: 2 * time.Second,
		CategoryActuator:     1 * time.Second,
		CategoryCustom:       5 * time.Second,
	}
}

// CacheEntryStatus определяет состояние записи кэша.
type CacheEntryStatus string

const (
	EntryValid       CacheEntryStatus = "valid"
	EntryExpired     CacheEntryStatus = "expired"
	EntryInvalidated CacheEntryStatus = "invalidated"
)

// CacheStatistics содержит статистику работы кэша состояний.
type CacheStatistics struct {
	Hits           int     `json:"hits"`
	Misses         int     `json:"misses"`
	Invalidations  int     `json:"invalidations"`
	Refreshes      int     `json:"refreshes"`
	TotalEntries   int     `json:"total_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	TotalRequests  int     `json:"total_requests"`
	HitRate        float64 `json:"hit_rate"`
	MissRate       float64 `json:"miss_rate"`
}
