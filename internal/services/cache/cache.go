package cache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
)

// RefreshFunc загружает актуальное значение ключа из оборудования.
type RefreshFunc func(ctx context.Context, key string) (interface{}, error)

// entry - одна запись кэша. Доступ только под мьютексом менеджера.
type entry struct {
	value       interface{}
	category    models.CacheCategory
	status      models.CacheEntryStatus
	ttl         time.Duration
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
}

func (e *entry) fresh(now time.Time) bool {
	return e.status == models.EntryValid && now.Sub(e.createdAt) <= e.ttl
}

// Manager хранит последние известные состояния оборудования с TTL
// по категориям. Промах кэша вызывает зарегистрированную функцию
// обновления; при ее ошибке возвращается последнее известное значение.
type Manager struct {
	mu           sync.Mutex
	entries      map[string]*entry
	refreshFuncs map[string]RefreshFunc
	ttls         map[models.CacheCategory]time.Duration

	defaultTTL  time.Duration
	maxSize     int
	sweepEvery  time.Duration
	autoRefresh bool

	hits          int
	misses        int
	invalidations int
	refreshes     int
	expired       int

	done   chan struct{}
	once   sync.Once
	logger *logging.Logger
}

// NewManager создает новый менеджер кэша состояний
func NewManager(cfg *config.AppConfig, logger *logging.Logger) *Manager {
	return &Manager{
		entries:      make(map[string]*entry),
		refreshFuncs: make(map[string]RefreshFunc),
		ttls:         models.DefaultCategoryTTLs(),
		defaultTTL:   time.Duration(cfg.Cache.DefaultTTLMs) * time.Millisecond,
		maxSize:      cfg.Cache.MaxSize,
		sweepEvery:   time.Duration(cfg.Cache.CleanupIntervalMs) * time.Millisecond,
		autoRefresh:  cfg.Cache.AutoRefresh,
		done:         make(chan struct{}),
		logger:       logger.WithPrefix("CACHE"),
	}
}

// RegisterRefreshFunc привязывает функцию обновления к ключу кэша.
func (m *Manager) RegisterRefreshFunc(key string, fn RefreshFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshFuncs[key] = fn
}

func (m *Manager) ttlFor(category models.CacheCategory) time.Duration {
	if ttl, ok := m.ttls[category]; ok {
		return ttl
	}
	return m.defaultTTL
}

// Get возвращает значение ключа. Свежая запись считается попаданием и
// возвращается сразу. Иначе фиксируется промах и вызывается функция
// обновления; при ее ошибке возвращается устаревшее значение, если оно
// есть, и nil в противном случае.
func (m *Manager) Get(ctx context.Context, key string) (interface{}, error) {
	now := time.Now()

	m.mu.Lock()
	if e, ok := m.entries[key]; ok && e.fresh(now) {
		e.lastAccess = now
		e.accessCount++
		m.hits++
		value := e.value
		m.mu.Unlock()
		return value, nil
	}

	m.misses++
	var stale interface{}
	hasStale := false
	if e, ok := m.entries[key]; ok {
		e.lastAccess = now
		e.accessCount++
		stale = e.value
		hasStale = true
	}
	fn := m.refreshFuncs[key]
	m.mu.Unlock()

	if fn == nil {
		if hasStale {
			return stale, nil
		}
		return nil, nil
	}

	value, err := fn(ctx, key)
	if err != nil {
		m.logger.Warn("Refresh failed, serving last known value", "key", key, "error", err)
		if hasStale {
			return stale, nil
		}
		return nil, err
	}

	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	m.Set(key, value, categoryOf(key))
	return value, nil
}

// Set сохраняет значение ключа с TTL его категории.
func (m *Manager) Set(key string, value interface{}, category models.CacheCategory) {
	m.SetWithTTL(key, value, category, 0)
}

// SetWithTTL сохраняет значение ключа с индивидуальным TTL.
// Неположительный ttl означает TTL категории.
func (m *Manager) SetWithTTL(key string, value interface{}, category models.CacheCategory, ttl time.Duration) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		ttl = m.ttlFor(category)
	}

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		m.evictOldestLocked()
	}

	m.entries[key] = &entry{
		value:      value,
		category:   category,
		status:     models.EntryValid,
		ttl:        ttl,
		createdAt:  now,
		lastAccess: now,
	}
}

// evictOldestLocked удаляет запись с самым давним обращением.
func (m *Manager) evictOldestLocked() {
	var oldestKey string
	var oldestAccess time.Time
	first := true
	for key, e := range m.entries {
		if first || e.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = e.lastAccess
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}

// Invalidate помечает запись недействительной. Возвращает true, если
// запись существовала.
func (m *Manager) Invalidate(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	e.status = models.EntryInvalidated
	m.invalidations++
	return true
}

// InvalidateCategory помечает недействительными все записи категории.
func (m *Manager) InvalidateCategory(category models.CacheCategory) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, e := range m.entries {
		if e.category == category && e.status == models.EntryValid {
			e.status = models.EntryInvalidated
			count++
		}
	}
	m.invalidations += count
	return count
}

// InvalidatePattern помечает недействительными записи, ключи которых
// соответствуют регулярному выражению. Некорректное выражение не
// инвалидирует ничего.
func (m *Manager) InvalidatePattern(pattern string) int {
	re, err := regexp.Compile(pattern)
	if err != nil {
		m.logger.Warn("Invalid invalidation pattern", "pattern", pattern, "error", err)
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for key, e := range m.entries {
		if re.MatchString(key) && e.status == models.EntryValid {
			e.status = models.EntryInvalidated
			count++
		}
	}
	m.invalidations += count
	return count
}

// Refresh принудительно обновляет ключ, минуя TTL.
func (m *Manager) Refresh(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	fn := m.refreshFuncs[key]
	m.mu.Unlock()

	if fn == nil {
		return nil, nil
	}

	value, err := fn(ctx, key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	m.Set(key, value, categoryOf(key))
	return value, nil
}

// WarmCache предзагружает все ключи с зарегистрированными функциями
// обновления. Ошибки отдельных ключей не прерывают прогрев.
func (m *Manager) WarmCache(ctx context.Context) int {
	m.mu.Lock()
	keys := make([]string, 0, len(m.refreshFuncs))
	for key := range m.refreshFuncs {
		keys = append(keys, key)
	}
	m.mu.Unlock()

	warmed := 0
	for _, key := range keys {
		if _, err := m.Refresh(ctx, key); err != nil {
			m.logger.Warn("Cache warmup failed for key", "key", key, "error", err)
			continue
		}
		warmed++
	}
	return warmed
}

// Clear удаляет все записи кэша.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
}

// CategoryKeys возвращает ключи записей заданной категории.
func (m *Manager) CategoryKeys(category models.CacheCategory) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0)
	for key, e := range m.entries {
		if e.category == category {
			keys = append(keys, key)
		}
	}
	return keys
}

// AllKeys возвращает все ключи кэша.
func (m *Manager) AllKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	return keys
}

// Statistics возвращает текущую статистику кэша.
func (m *Manager) Statistics() models.CacheStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.hits + m.misses
	stats := models.CacheStatistics{
		Hits:           m.hits,
		Misses:         m.misses,
		Invalidations:  m.invalidations,
		Refreshes:      m.refreshes,
		TotalEntries:   len(m.entries),
		ExpiredEntries: m.expired,
		TotalRequests:  total,
	}
	if total > 0 {
		stats.HitRate = float64(m.hits) / float64(total)
		stats.MissRate = float64(m.misses) / float64(total)
	}
	return stats
}

// HandleStatusUpdate инвалидирует категории кэша по дельте состояния
// из потока событий Moonraker.
func (m *Manager) HandleStatusUpdate(status map[string]interface{}) {
	for object := range status {
		name := object
		if idx := strings.IndexByte(object, ' '); idx > 0 {
			name = object[:idx]
		}

		switch name {
		case "output_pin":
			m.InvalidateCategory(models.CategoryGPIO)
			m.InvalidateCategory(models.CategoryPWM)
		case "fan":
			m.InvalidateCategory(models.CategoryFan)
		case "toolhead":
			m.InvalidateCategory(models.CategoryPosition)
		case "temperature_sensor", "heaters":
			m.InvalidateCategory(models.CategorySensor)
		case "print_stats":
			m.InvalidateCategory(models.CategoryPrinterState)
		}
	}
}

// StartSweeper запускает фоновую очистку просроченных записей.
func (m *Manager) StartSweeper() {
	go func() {
		ticker := time.NewTicker(m.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// StopSweeper останавливает фоновую очистку.
func (m *Manager) StopSweeper() {
	m.once.Do(func() { close(m.done) })
}

// sweep удаляет просроченные записи. При включенном автообновлении
// записи с зарегистрированной функцией обновления перечитываются
// вместо удаления.
func (m *Manager) sweep() {
	now := time.Now()

	m.mu.Lock()
	removed := 0
	refresh := make([]string, 0)
	for key, e := range m.entries {
		if e.fresh(now) {
			continue
		}
		if m.autoRefresh && m.refreshFuncs[key] != nil {
			refresh = append(refresh, key)
			continue
		}
		delete(m.entries, key)
		removed++
	}
	m.expired += removed
	m.mu.Unlock()

	for _, key := range refresh {
		if _, err := m.Refresh(context.Background(), key); err != nil {
			m.logger.Warn("Background refresh failed", "key", key, "error", err)
		}
	}
	if removed > 0 {
		m.logger.Debug("Swept expired cache entries", "removed", removed)
	}
}

// categoryOf выводит категорию из префикса ключа "category:rest".
func categoryOf(key string) models.CacheCategory {
	idx := strings.IndexByte(key, ':')
	if idx <= 0 {
		return models.CategoryCustom
	}

	switch models.CacheCategory(key[:idx]) {
	case models.CategoryGPIO:
		return models.CategoryGPIO
	case models.CategorySensor:
		return models.CategorySensor
	case models.CategoryPosition:
		return models.CategoryPosition
	case models.CategoryFan:
		return models.CategoryFan
	case models.CategoryPWM:
		return models.CategoryPWM
	case models.CategoryPrinterState:
		return models.CategoryPrinterState
	case models.CategoryActuator:
		return models.CategoryActuator
	default:
		return models.CategoryCustom
	}
}
