package remediation

import (
	"sync"
	"time"
)

// DefaultAuditCapacity bounds the in-memory audit trail.
const DefaultAuditCapacity = 1000

// AuditEntry summarises one remediation attempt.
type AuditEntry struct {
	Strategy        Strategy  `json:"strategy"`
	IncidentID      *int64    `json:"incident_id"`
	Success         bool      `json:"success"`
	DryRun          bool      `json:"dry_run"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`
	Error           string    `json:"error,omitempty"`
}

// AuditLog is a fixed-capacity ring of attempts. Once full, the oldest entry
// is overwritten.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	start   int
	size    int
}

// NewAuditLog creates a log holding at most capacity entries.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{entries: make([]AuditEntry, capacity)}
}

// Append records an entry, evicting the oldest when full.
func (l *AuditLog) Append(e AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = e
		l.size++
		return
	}
	l.entries[l.start] = e
	l.start = (l.start + 1) % capacity
}

// Recent returns up to n of the newest entries, oldest first.
func (l *AuditLog) Recent(n int) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]AuditEntry, n)
	capacity := len(l.entries)
	offset := l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.entries[(l.start+offset+i)%capacity]
	}
	return out
}

// Len returns the number of retained entries.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Cap returns the maximum number of retained entries.
func (l *AuditLog) Cap() int {
	return len(l.entries)
}
