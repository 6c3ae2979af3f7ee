package engine

import (
	"sync"
	"time"
)

// AuditEntry records one engine operation: what was asked, what happened,
// and a snapshot of state plus validation before the operation ran.
// Entries are append-only and purely diagnostic.
type AuditEntry struct {
	Action           string                 `json:"action"`
	Input            map[string]interface{} `json:"input,omitempty"`
	Result           string                 `json:"result"`
	StateBefore      StateSnapshot          `json:"state_before"`
	ValidationAtTime Report                 `json:"validation_at_time"`
	Timestamp        string                 `json:"ts"`
}

// auditLog is a fixed-size ring of audit entries. Bounding the ring is the
// retention policy; the full history lives in the durable event sink when one
// is attached.
type auditLog struct {
	mu      sync.RWMutex
	size    int
	entries []AuditEntry
	index   int
	full    bool
}

func newAuditLog(size int) *auditLog {
	return &auditLog{
		size:    size,
		entries: make([]AuditEntry, size),
	}
}

func (a *auditLog) add(entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[a.index] = entry
	a.index = (a.index + 1) % a.size
	if a.index == 0 {
		a.full = true
	}
}

func (a *auditLog) snapshot() []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.full {
		return append([]AuditEntry{}, a.entries[:a.index]...)
	}

	out := make([]AuditEntry, 0, a.size)
	out = append(out, a.entries[a.index:]...)
	out = append(out, a.entries[:a.index]...)
	return out
}

// beginAudit captures state and validation before an operation and returns a
// closure that appends the finished entry with its result.
func (e *Engine) beginAudit(action string, input map[string]interface{}) func(result string) {
	entry := AuditEntry{
		Action:           action,
		Input:            input,
		StateBefore:      e.State(),
		ValidationAtTime: e.Validate(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
	}
	return func(result string) {
		entry.Result = result
		e.audit.add(entry)
	}
}

// AuditLog returns a copy of the retained audit entries, oldest first.
func (e *Engine) AuditLog() []AuditEntry {
	return e.audit.snapshot()
}
