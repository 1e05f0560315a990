package orchestrator

import (
	"sync"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
)

// History keeps the rolling conversation buffer per tenant+user,
// bounded to the last maxTurns exchanges. Buffers are shared across
// concurrent requests from the same user, so each one carries its own
// lock; append and trim happen under it to avoid lost updates.
type History struct {
	mu       sync.Mutex
	buffers  map[string]*historyBuffer
	maxTurns int
}

type historyBuffer struct {
	mu       sync.Mutex
	messages []domain.Message
}

// NewHistory creates a History bounded to maxTurns exchanges
// (a user message plus the reply counts as one turn).
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &History{buffers: make(map[string]*historyBuffer), maxTurns: maxTurns}
}

func historyKey(tenantID, userID string) string {
	return tenantID + "\x00" + userID
}

func (h *History) buffer(tenantID, userID string) *historyBuffer {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := historyKey(tenantID, userID)
	b, ok := h.buffers[key]
	if !ok {
		b = &historyBuffer{}
		h.buffers[key] = b
	}
	return b
}

// Append records one exchange and trims the buffer to the bound.
func (h *History) Append(tenantID, userID string, messages ...domain.Message) {
	b := h.buffer(tenantID, userID)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = append(b.messages, messages...)
	limit := h.maxTurns * 2
	if len(b.messages) > limit {
		b.messages = append([]domain.Message(nil), b.messages[len(b.messages)-limit:]...)
	}
}

// Recent returns a copy of the buffered conversation.
func (h *History) Recent(tenantID, userID string) []domain.Message {
	b := h.buffer(tenantID, userID)

	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]domain.Message(nil), b.messages...)
}
