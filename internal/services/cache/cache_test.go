package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
)

func newTestManager(maxSize int) *Manager {
	cfg := &config.AppConfig{
		Cache: config.CacheConfig{
			DefaultTTLMs:      1000,
			MaxSize:           maxSize,
			CleanupIntervalMs: 60000,
		},
	}
	return NewManager(cfg, logging.NewLogger(&logging.Config{Enabled: false}, "TEST"))
}

func TestGetHitWithinTTL(t *testing.T) {
	m := newTestManager(100)

	calls := 0
	m.RegisterRefreshFunc("gpio:p1", func(ctx context.Context, key string) (interface{}, error) {
		calls++
		return map[string]interface{}{"value": calls}, nil
	})

	value, err := m.Get(context.Background(), "gpio:p1")
	require.NoError(t, err)
	require.NotNil(t, value)
	require.Equal(t, 1, calls, "Первое чтение обновляет значение")

	value, err = m.Get(context.Background(), "gpio:p1")
	require.NoError(t, err)
	require.Equal(t, 1, calls, "Чтение в пределах TTL не вызывает обновление")
	require.Equal(t, map[string]interface{}{"value": 1}, value)

	stats := m.Statistics()
	require.Equal(t, 1, stats.Hits)
	require.Equal(t, 1, stats.Misses)
}

func TestStaleValueServedOnRefreshFailure(t *testing.T) {
	m := newTestManager(100)

	healthy := true
	m.RegisterRefreshFunc("sensor:t1", func(ctx context.Context, key string) (interface{}, error) {
		if !healthy {
			return nil, errors.New("sensor offline")
		}
		return map[string]interface{}{"temperature": 25.0}, nil
	})

	_, err := m.Get(context.Background(), "sensor:t1")
	require.NoError(t, err)

	// Запись инвалидирована, источник недоступен: возвращается
	// последнее известное значение.
	healthy = false
	m.Invalidate("sensor:t1")

	value, err := m.Get(context.Background(), "sensor:t1")
	require.NoError(t, err, "Устаревшее значение возвращается без ошибки")
	require.Equal(t, map[string]interface{}{"temperature": 25.0}, value)

	stats := m.Statistics()
	require.Equal(t, 2, stats.Misses, "Обращение к устаревшей записи считается промахом")
}

func TestGetReturnsErrorWhenNothingKnown(t *testing.T) {
	m := newTestManager(100)

	m.RegisterRefreshFunc("gpio:p9", func(ctx context.Context, key string) (interface{}, error) {
		return nil, errors.New("offline")
	})

	value, err := m.Get(context.Background(), "gpio:p9")
	require.Error(t, err)
	require.Nil(t, value)
}

func TestInvalidateCategoryAndPattern(t *testing.T) {
	m := newTestManager(100)

	m.Set("gpio:p1", 1, models.CategoryGPIO)
	m.Set("gpio:p2", 2, models.CategoryGPIO)
	m.Set("fan:main", 3, models.CategoryFan)

	require.Equal(t, 2, m.InvalidateCategory(models.CategoryGPIO))
	require.Equal(t, 1, m.InvalidatePattern("main"))
	require.False(t, m.Invalidate("missing"))

	stats := m.Statistics()
	require.Equal(t, 3, stats.Invalidations)
}

func TestInvalidatePatternRegex(t *testing.T) {
	m := newTestManager(100)

	m.Set("gpio:p1", 1, models.CategoryGPIO)
	m.Set("gpio:p2", 2, models.CategoryGPIO)
	m.Set("pwm:p1", 3, models.CategoryPWM)

	require.Equal(t, 2, m.InvalidatePattern("^gpio:"))
	require.Equal(t, 0, m.InvalidatePattern("["), "Некорректное выражение не инвалидирует ничего")
}

func TestSetWithTTLOverridesCategoryTTL(t *testing.T) {
	m := newTestManager(100)

	m.SetWithTTL("custom:short", 1, models.CategoryCustom, time.Millisecond)
	m.Set("custom:long", 2, models.CategoryCustom)

	time.Sleep(5 * time.Millisecond)
	m.sweep()

	require.NotContains(t, m.AllKeys(), "custom:short")
	require.Contains(t, m.AllKeys(), "custom:long")
}

func TestEvictionRemovesLeastRecentlyUsed(t *testing.T) {
	m := newTestManager(2)

	m.Set("gpio:a", 1, models.CategoryGPIO)
	m.Set("gpio:b", 2, models.CategoryGPIO)

	// Обращение к a делает b самой старой записью.
	_, err := m.Get(context.Background(), "gpio:a")
	require.NoError(t, err)

	m.Set("gpio:c", 3, models.CategoryGPIO)

	keys := m.AllKeys()
	require.Len(t, keys, 2)
	require.NotContains(t, keys, "gpio:b", "Вытесняется запись с самым давним обращением")
}

func TestHandleStatusUpdateInvalidatesCategories(t *testing.T) {
	m := newTestManager(100)

	m.Set("gpio:p1", 1, models.CategoryGPIO)
	m.Set("pwm:p1", 0.5, models.CategoryPWM)
	m.Set("fan:main", 0.8, models.CategoryFan)
	m.Set("position:toolhead", nil, models.CategoryPosition)
	m.Set("sensor:t1", 25.0, models.CategorySensor)
	m.Set("printer_state:print_stats", "ready", models.CategoryPrinterState)

	m.HandleStatusUpdate(map[string]interface{}{
		"output_pin nozzle_valve": map[string]interface{}{"value": 1.0},
		"toolhead":                map[string]interface{}{"position": []float64{1, 2, 3}},
	})

	stats := m.Statistics()
	// output_pin затрагивает GPIO и PWM, toolhead затрагивает позицию.
	require.Equal(t, 3, stats.Invalidations)

	m.HandleStatusUpdate(map[string]interface{}{
		"heaters":     map[string]interface{}{},
		"print_stats": map[string]interface{}{"state": "printing"},
		"fan":         map[string]interface{}{"speed": 0.5},
	})
	require.Equal(t, 6, m.Statistics().Invalidations)
}

func TestRefreshBypassesTTL(t *testing.T) {
	m := newTestManager(100)

	calls := 0
	m.RegisterRefreshFunc("custom:x", func(ctx context.Context, key string) (interface{}, error) {
		calls++
		return calls, nil
	})

	_, err := m.Get(context.Background(), "custom:x")
	require.NoError(t, err)

	value, err := m.Refresh(context.Background(), "custom:x")
	require.NoError(t, err)
	require.Equal(t, 2, value, "Принудительное обновление игнорирует TTL")
	require.Equal(t, 2, m.Statistics().Refreshes)
}

func TestWarmCache(t *testing.T) {
	m := newTestManager(100)

	m.RegisterRefreshFunc("gpio:p1", func(ctx context.Context, key string) (interface{}, error) {
		return 1, nil
	})
	m.RegisterRefreshFunc("gpio:p2", func(ctx context.Context, key string) (interface{}, error) {
		return nil, errors.New("offline")
	})

	warmed := m.WarmCache(context.Background())
	require.Equal(t, 1, warmed, "Ошибки отдельных ключей не прерывают прогрев")
	require.Contains(t, m.AllKeys(), "gpio:p1")
}

func TestSweepAutoRefreshesRegisteredKeys(t *testing.T) {
	cfg := &config.AppConfig{
		Cache: config.CacheConfig{
			DefaultTTLMs:      1000,
			MaxSize:           100,
			CleanupIntervalMs: 60000,
			AutoRefresh:       true,
		},
	}
	m := NewManager(cfg, logging.NewLogger(&logging.Config{Enabled: false}, "TEST"))
	m.ttls[models.CategoryGPIO] = time.Millisecond

	calls := 0
	m.RegisterRefreshFunc("gpio:p1", func(ctx context.Context, key string) (interface{}, error) {
		calls++
		return calls, nil
	})

	m.Set("gpio:p1", 0, models.CategoryGPIO)
	m.Set("gpio:p2", 0, models.CategoryGPIO)
	time.Sleep(5 * time.Millisecond)
	m.sweep()

	require.Contains(t, m.AllKeys(), "gpio:p1", "Просроченный ключ с функцией обновления перечитывается")
	require.Equal(t, 1, calls)
	require.NotContains(t, m.AllKeys(), "gpio:p2", "Ключ без функции обновления удаляется")
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	m := newTestManager(100)
	m.ttls[models.CategoryGPIO] = time.Millisecond

	m.Set("gpio:p1", 1, models.CategoryGPIO)
	time.Sleep(5 * time.Millisecond)
	m.sweep()

	require.Empty(t, m.AllKeys())
	require.Equal(t, 1, m.Statistics().ExpiredEntries)
}
