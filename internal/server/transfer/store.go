// Package transfer implements the quick-transfer drop box: a namespace of
// anonymous, time-limited file drops separate from the main storage tree.
package transfer

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cove/internal/server/vault"
)

// Item is a single quick-transfer drop. RelPath is the directory of the drop
// under the transfer root, empty for top-level drops. RemainingTTL is
// computed at listing time from the file's mtime.
type Item struct {
	Name         string        `json:"name"`
	RelPath      string        `json:"relative_path,omitempty"`
	Size         int64         `json:"size"`
	UploadedAt   time.Time     `json:"uploaded_at"`
	Uploader     string        `json:"uploader"`
	RemainingTTL time.Duration `json:"remaining_ttl"`
}

// Store holds quick-transfer drops on disk with a fixed per-item TTL.
// Expiry is lazy: every List and Open sweeps first, so the TTL bound holds
// for any access path even without the background sweeper running.
//
// Uploader labels ride in the file name as "label__name"; the filesystem's
// own mtime is the upload timestamp. No other metadata is persisted.
type Store struct {
	resolver *vault.Resolver
	ttl      time.Duration
	quota    *vault.Quota
}

const labelSeparator = "__"

// NewStore creates a Store rooted at dir with the given TTL.
func NewStore(dir string, ttl time.Duration) (*Store, error) {
	resolver, err := vault.NewResolver(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transfer root: %w", err)
	}
	return &Store{resolver: resolver, ttl: ttl}, nil
}

// Root returns the canonical transfer directory.
func (s *Store) Root() string {
	return s.resolver.Root()
}

// UseQuota makes the store count drops against q before every write. Drops
// share the cap with the main storage tree, so an anonymous drop cannot blow
// past the budget that authenticated uploads respect.
func (s *Store) UseQuota(q *vault.Quota) {
	s.quota = q
}

// Put stores a drop under rel/name, replacing any previous drop with the
// same display name in that directory no matter which uploader dropped it.
// An overwrite restarts the TTL. size is the declared byte count used for
// the quota check before anything is written.
func (s *Store) Put(name, rel, uploader string, size int64, data io.Reader) (Item, error) {
	clean, err := vault.SanitizeName(name)
	if err != nil {
		return Item{}, err
	}

	var sub string
	if rel != "" {
		sub, err = vault.SanitizeRelPath(rel)
		if err != nil {
			return Item{}, err
		}
	}

	if s.quota != nil && size > 0 && s.quota.WouldExceed(size) {
		return Item{}, fmt.Errorf("%w: need %d bytes, %d available", vault.ErrQuotaExceeded, size, s.quota.Available())
	}

	stored := clean
	if uploader != "" {
		label, err := vault.SanitizeName(uploader)
		if err == nil {
			stored = label + labelSeparator + clean
		}
	}

	dest, err := s.resolver.Resolve(path.Join(sub, stored))
	if err != nil {
		return Item{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Item{}, fmt.Errorf("failed to create transfer directories: %w", err)
	}

	// An overwrite destroys the previous drop even when a different uploader
	// label gave it a different stored name.
	removeSameDisplayName(filepath.Dir(dest), clean)

	f, err := os.Create(dest)
	if err != nil {
		return Item{}, fmt.Errorf("failed to create transfer file: %w", err)
	}
	n, err := io.Copy(f, data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return Item{}, fmt.Errorf("failed to write transfer file: %w", err)
	}

	return Item{
		Name:         clean,
		RelPath:      sub,
		Size:         n,
		UploadedAt:   time.Now(),
		Uploader:     uploader,
		RemainingTTL: s.ttl,
	}, nil
}

// List sweeps expired drops, then returns the surviving items newest first,
// walking the whole namespace so folder-structured drops are included.
func (s *Store) List() ([]Item, error) {
	s.Sweep()

	root := s.resolver.Root()
	now := time.Now()
	var items []Item
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		relDir, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil || relDir == "." {
			relDir = ""
		}
		uploader, name := splitStoredName(d.Name())
		items = append(items, Item{
			Name:         name,
			RelPath:      filepath.ToSlash(relDir),
			Size:         info.Size(),
			UploadedAt:   info.ModTime(),
			Uploader:     uploader,
			RemainingTTL: s.ttl - now.Sub(info.ModTime()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk transfer directory: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].UploadedAt.After(items[j].UploadedAt)
	})
	return items, nil
}

// Open sweeps, then opens the drop named name in the directory rel for
// reading. A drop that expired (and was therefore just removed) reports
// vault.ErrNotFound like one that never existed.
func (s *Store) Open(rel, name string) (*os.File, Item, error) {
	s.Sweep()

	clean, err := vault.SanitizeName(name)
	if err != nil {
		return nil, Item{}, err
	}

	var sub string
	if rel != "" {
		sub, err = vault.SanitizeRelPath(rel)
		if err != nil {
			return nil, Item{}, err
		}
	}

	dir, err := s.resolver.Resolve(sub)
	if err != nil {
		return nil, Item{}, err
	}

	stored, info, err := findInDir(dir, clean)
	if err != nil {
		return nil, Item{}, err
	}

	f, err := os.Open(filepath.Join(dir, stored))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Item{}, fmt.Errorf("%w: %s", vault.ErrNotFound, clean)
		}
		return nil, Item{}, fmt.Errorf("failed to open transfer file: %w", err)
	}

	uploader, display := splitStoredName(stored)
	return f, Item{
		Name:         display,
		RelPath:      sub,
		Size:         info.Size(),
		UploadedAt:   info.ModTime(),
		Uploader:     uploader,
		RemainingTTL: s.ttl - time.Since(info.ModTime()),
	}, nil
}

// Sweep removes every drop older than the TTL anywhere in the namespace and
// prunes directories left empty. Entries that vanish between discovery and
// removal are ignored; a sweep never fails as a whole because of a single
// bad entry.
func (s *Store) Sweep() {
	root := s.resolver.Root()
	cutoff := time.Now().Add(-s.ttl)

	var dirs []string
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root {
				dirs = append(dirs, p)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove expired transfer item", "name", d.Name(), "error", err)
			return nil
		}
		slog.Info("expired transfer item removed", "name", d.Name(), "age", time.Since(info.ModTime()))
		return nil
	})

	// Deepest first, so a chain of emptied directories collapses in one
	// pass. Removing a non-empty directory fails and is ignored.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		os.Remove(dir)
	}
}

// findInDir locates the stored file backing a display name within one
// directory, whether or not it carries an uploader label prefix.
func findInDir(dir, clean string) (string, os.FileInfo, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%w: %s", vault.ErrNotFound, clean)
		}
		return "", nil, fmt.Errorf("failed to read transfer directory: %w", err)
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		_, display := splitStoredName(de.Name())
		if display != clean && de.Name() != clean {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		return de.Name(), info, nil
	}
	return "", nil, fmt.Errorf("%w: %s", vault.ErrNotFound, clean)
}

// removeSameDisplayName deletes every file in dir whose display name matches
// clean, regardless of uploader label.
func removeSameDisplayName(dir, clean string) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		_, display := splitStoredName(de.Name())
		if display == clean || de.Name() == clean {
			os.Remove(filepath.Join(dir, de.Name()))
		}
	}
}

func splitStoredName(stored string) (uploader, name string) {
	if i := strings.Index(stored, labelSeparator); i >= 0 {
		return stored[:i], stored[i+len(labelSeparator):]
	}
	return "", stored
}
