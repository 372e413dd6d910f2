package executor

import (
	"sync"
	"time"

	"github.com/klipperplace/pnpService/internal/domain/models"
)

// history - кольцевой журнал выполненных инструкций.
type history struct {
	mu         sync.Mutex
	entries    []models.HistoryEntry
	maxEntries int
}

func newHistory(maxEntries int) *history {
	return &history{
		entries:    make([]models.HistoryEntry, 0),
		maxEntries: maxEntries,
	}
}

func (h *history) add(entry models.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > h.maxEntries {
		h.entries = h.entries[len(h.entries)-h.maxEntries:]
	}
}

// list возвращает записи журнала с фильтрами. Нулевые значения
// фильтров отключают их; limit <= 0 возвращает все записи.
func (h *history) list(limit int, status models.ExecutionStatus, since time.Time) []models.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	filtered := make([]models.HistoryEntry, 0, len(h.entries))
	for _, entry := range h.entries {
		if status != "" && entry.Status != status {
			continue
		}
		if !since.IsZero() && entry.Timestamp.Before(since) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// entry возвращает запись журнала по идентификатору.
func (h *history) entry(id string) (models.HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.HistoryEntry{}, false
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}

// statistics вычисляет сводную статистику по журналу. Среднее время
// выполнения учитывает только успешные записи.
func (h *history) statistics() models.ExecutionStatistics {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := models.ExecutionStatistics{Total: len(h.entries)}
	var completedTime float64
	for _, entry := range h.entries {
		switch entry.Status {
		case models.ExecutionCompleted:
			stats.Completed++
			completedTime += entry.ExecutionTime
		case models.ExecutionFailed:
			stats.Failed++
		case models.ExecutionCancelled:
			stats.Cancelled++
		}
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	if stats.Completed > 0 {
		stats.AvgExecutionTime = completedTime / float64(stats.Completed)
	}
	return stats
}
