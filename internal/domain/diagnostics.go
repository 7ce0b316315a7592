package domain

import (
	"sync"
	"time"
)

// DiagnosticEntry is one failure observed while resolving an account.
type DiagnosticEntry struct {
	At      time.Time `json:"at"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

// Diagnostics is an append-only log scoped to one resolved account.
// It is observability only and never drives control flow.
type Diagnostics struct {
	mu      sync.Mutex
	entries []DiagnosticEntry
	now     func() time.Time
}

// NewDiagnostics creates an empty log using now as its clock.
func NewDiagnostics(now func() time.Time) *Diagnostics {
	if now == nil {
		now = time.Now
	}
	return &Diagnostics{now: now}
}

// Push appends err under source. A nil err is ignored.
func (d *Diagnostics) Push(source string, err error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, DiagnosticEntry{At: d.now(), Source: source, Message: err.Error()})
}

// Entries returns a copy of the log.
func (d *Diagnostics) Entries() []DiagnosticEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DiagnosticEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of entries.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
