package events

import (
	"strings"
	"sync"

	"finvoice/core/types"
)

// payloadCarrier is implemented by emitted events that wrap a typed payload.
type payloadCarrier interface {
	Event() *types.Event
}

// Entry pairs an emitted event payload with its assigned sequence number.
type Entry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Memory retains emitted events in order so RPC consumers can page through
// recent ledger activity. The buffer is bounded; the oldest entries are
// dropped once the capacity is exceeded.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	nextSeq uint64
	limit   int
}

// NewMemory builds a bounded in-memory emitter. A non-positive capacity
// falls back to a sensible default.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{limit: capacity, nextSeq: 1}
}

// Emit implements the Emitter interface.
func (m *Memory) Emit(evt Event) {
	if m == nil || evt == nil {
		return
	}
	entry := Entry{Type: evt.EventType(), Attributes: map[string]string{}}
	if carrier, ok := evt.(payloadCarrier); ok {
		if payload := carrier.Event(); payload != nil {
			entry.Type = payload.Type
			for k, v := range payload.Attributes {
				entry.Attributes[k] = v
			}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Sequence = m.nextSeq
	m.nextSeq++
	m.entries = append(m.entries, entry)
	if len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
}

// List returns the most recent entries whose type matches the supplied
// prefix, oldest first. A zero or negative limit returns all buffered
// matches.
func (m *Memory) List(prefix string, limit int) []Entry {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		if prefix != "" && !strings.HasPrefix(entry.Type, prefix) {
			continue
		}
		matched = append(matched, entry)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}
