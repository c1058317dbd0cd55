// Package share implements the in-memory registry of shareable links.
// Records live for the process lifetime only; a restart drops all shares,
// which is a stated limitation rather than a bug.
package share

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"
)

var ErrShareNotFound = errors.New("share not found")

// Record is a token-addressable reference to a fixed set of entries under a
// single path in the storage tree. The referenced files are not validated to
// still exist until download time.
type Record struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Names     []string  `json:"names"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`

	nameSet map[string]bool
}

// Contains reports whether name is part of the shared set.
func (r *Record) Contains(name string) bool {
	return r.nameSet[name]
}

// Registry holds share records behind a mutex; constructed once at process
// start and passed to handlers by reference.
type Registry struct {
	mu     sync.RWMutex
	shares map[string]*Record
}

// NewRegistry creates an empty share registry.
func NewRegistry() *Registry {
	return &Registry{shares: make(map[string]*Record)}
}

// Create registers a new share over the given names and returns its ID.
func (reg *Registry) Create(owner, path string, names []string) (*Record, error) {
	if len(names) == 0 {
		return nil, errors.New("no files selected to share")
	}

	id, err := generateShareID(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate share id: %w", err)
	}

	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[n] = true
	}

	rec := &Record{
		ID:        id,
		Path:      path,
		Names:     append([]string(nil), names...),
		Owner:     owner,
		CreatedAt: time.Now(),
		nameSet:   nameSet,
	}

	reg.mu.Lock()
	reg.shares[id] = rec
	reg.mu.Unlock()
	return rec, nil
}

// Resolve looks up a share by ID.
func (reg *Registry) Resolve(id string) (*Record, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rec, ok := reg.shares[id]
	if !ok {
		return nil, ErrShareNotFound
	}
	return rec, nil
}

// Revoke removes a share by ID.
func (reg *Registry) Revoke(id string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.shares[id]; !ok {
		return ErrShareNotFound
	}
	delete(reg.shares, id)
	return nil
}

// ListAll returns every live share, newest first.
func (reg *Registry) ListAll() []*Record {
	reg.mu.RLock()
	records := make([]*Record, 0, len(reg.shares))
	for _, rec := range reg.shares {
		records = append(records, rec)
	}
	reg.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}

// generateShareID produces a cryptographically secure, URL-safe random
// string. 32 characters over a 62-character alphabet carries well over 128
// bits of entropy, enough to make token enumeration infeasible.
func generateShareID(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
