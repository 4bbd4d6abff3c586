package scp

import "sync"

// ErrorLog is an append-only, ordered record of peer-signalled warnings and
// errors. It is never cleared: an engine reused across multiple transfers
// accumulates history across all of them.
type ErrorLog struct {
	mu      sync.Mutex
	records []errorRecord
}

type errorRecord struct {
	severity byte
	message  string
}

// Record appends a peer-signalled message with its severity status byte.
func (l *ErrorLog) Record(severity byte, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, errorRecord{severity: severity, message: message})
}

// Last returns the most recent recorded message, or "" if none.
func (l *ErrorLog) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) == 0 {
		return ""
	}
	return l.records[len(l.records)-1].message
}

// All returns a snapshot of all recorded messages in insertion order.
// The returned slice is a copy; mutating it does not affect the log.
func (l *ErrorLog) All() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.records))
	for i, r := range l.records {
		out[i] = r.message
	}
	return out
}

// Len returns the number of recorded messages.
func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
