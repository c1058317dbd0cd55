package vault

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry describes a single file or directory as observed on disk. Entries are
// derived live from the filesystem on every listing; nothing is cached.
type Entry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	IsDir    bool      `json:"is_dir"`
}

// Tree provides listing, renaming and deletion over the sandboxed storage
// tree. All relative paths go through the Resolver before touching disk.
type Tree struct {
	resolver *Resolver
}

// NewTree creates a Tree over the given resolver's root.
func NewTree(resolver *Resolver) *Tree {
	return &Tree{resolver: resolver}
}

// List returns the immediate children of rel, creating the directory first if
// it does not exist (navigating to a folder implicitly creates it). Entries
// whose stat fails are skipped rather than failing the whole listing.
// Directories sort before files, then case-insensitive by name.
func (t *Tree) List(rel string) ([]Entry, error) {
	dir, err := t.resolver.Resolve(rel)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			slog.Warn("skipping unreadable entry", "dir", rel, "name", de.Name(), "error", err)
			continue
		}
		size := info.Size()
		if de.IsDir() {
			size = 0
		}
		entries = append(entries, Entry{
			Name:     de.Name(),
			Size:     size,
			Modified: info.ModTime(),
			IsDir:    de.IsDir(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	return entries, nil
}

// StatDir verifies that rel resolves to an existing directory without
// creating anything on disk.
func (t *Tree) StatDir(rel string) error {
	dir, err := t.resolver.Resolve(rel)
	if err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNotFound, rel)
	}
	return nil
}

// Stat returns the entry for name under rel, or ErrNotFound.
func (t *Tree) Stat(rel, name string) (Entry, string, error) {
	abs, err := t.resolver.Resolve(filepath.Join(rel, name))
	if err != nil {
		return Entry{}, "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Entry{}, "", fmt.Errorf("failed to stat %s: %w", name, err)
	}

	size := info.Size()
	if info.IsDir() {
		size = 0
	}
	return Entry{
		Name:     info.Name(),
		Size:     size,
		Modified: info.ModTime(),
		IsDir:    info.IsDir(),
	}, abs, nil
}

// Rename renames an entry within rel. The target name is sanitized, both
// composed paths are resolved, and an existing target is never overwritten.
func (t *Tree) Rename(rel, oldName, newName string) error {
	clean, err := SanitizeName(newName)
	if err != nil {
		return err
	}

	src, err := t.resolver.Resolve(filepath.Join(rel, oldName))
	if err != nil {
		return err
	}
	dst, err := t.resolver.Resolve(filepath.Join(rel, clean))
	if err != nil {
		return err
	}

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, oldName)
		}
		return fmt.Errorf("failed to stat %s: %w", oldName, err)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrNameConflict, clean)
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", oldName, clean, err)
	}
	return nil
}

// Delete removes the named entry under rel. Directories are removed
// recursively.
func (t *Tree) Delete(rel, name string) error {
	abs, err := t.resolver.Resolve(filepath.Join(rel, name))
	if err != nil {
		return err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}

	if info.IsDir() {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// RecursiveSize walks the subtree rooted at abs and sums file sizes.
// Unreadable entries are skipped so a single bad permission bit cannot make
// quota accounting fail.
func RecursiveSize(abs string) int64 {
	var total int64
	filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
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
		total += info.Size()
		return nil
	})
	return total
}
