package executor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/pkg/errors"
)

// queue - приоритетная очередь инструкций. Команда вставляется перед
// первой командой со строго меньшим приоритетом, поэтому равные
// приоритеты сохраняют порядок поступления.
type queue struct {
	mu      sync.Mutex
	items   []models.QueuedCommand
	maxSize int
}

func newQueue(maxSize int) *queue {
	return &queue{
		items:   make([]models.QueuedCommand, 0),
		maxSize: maxSize,
	}
}

// push добавляет инструкцию в очередь и возвращает ее идентификатор.
func (q *queue) push(instruction string, priority int, metadata map[string]interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.maxSize {
		return "", &errors.QueueFullError{MaxSize: q.maxSize}
	}

	cmd := models.QueuedCommand{
		ID:          uuid.New().String(),
		Instruction: instruction,
		Priority:    priority,
		CreatedAt:   time.Now(),
		Metadata:    metadata,
	}

	pos := len(q.items)
	for i, item := range q.items {
		if item.Priority < priority {
			pos = i
			break
		}
	}

	q.items = append(q.items, models.QueuedCommand{})
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = cmd

	return cmd.ID, nil
}

// peek возвращает команду в голове очереди, не извлекая ее.
func (q *queue) peek() (models.QueuedCommand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.QueuedCommand{}, false
	}
	return q.items[0], true
}

// remove удаляет ожидающую команду по идентификатору.
func (q *queue) remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// pop извлекает команду из головы очереди.
func (q *queue) pop() (models.QueuedCommand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.QueuedCommand{}, false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, true
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// snapshot возвращает копию содержимого очереди в порядке выполнения.
func (q *queue) snapshot() []models.QueuedCommand {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]models.QueuedCommand, len(q.items))
	copy(items, q.items)
	return items
}

func (q *queue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := len(q.items)
	q.items = q.items[:0]
	return removed
}
