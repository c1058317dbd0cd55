package service

import (
	"sync"
	"time"
)

// RecentFile is one entry of the recent-uploads log.
type RecentFile struct {
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// RecentLog keeps the most recently uploaded file paths, newest first,
// deduplicated by path. In-memory and process-lifetime, like the share
// registry.
type RecentLog struct {
	mu      sync.Mutex
	entries []RecentFile
	cap     int
}

// NewRecentLog creates a log holding at most capacity entries.
func NewRecentLog(capacity int) *RecentLog {
	return &RecentLog{cap: capacity}
}

// Add records a path at the head of the log, removing any older occurrence.
func (l *RecentLog) Add(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.Path == path {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}

	l.entries = append([]RecentFile{{Path: path, UploadedAt: time.Now()}}, l.entries...)
	if len(l.entries) > l.cap {
		l.entries = l.entries[:l.cap]
	}
}

// Entries returns a copy of the log, newest first.
func (l *RecentLog) Entries() []RecentFile {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]RecentFile, len(l.entries))
	copy(out, l.entries)
	return out
}
