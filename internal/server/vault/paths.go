package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for the vault core.
var (
	ErrPathViolation = errors.New("path escapes storage root")
	ErrNotFound      = errors.New("entry not found")
	ErrNameConflict  = errors.New("an entry with that name already exists")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrNoFiles       = errors.New("no files provided")
	ErrInvalidName   = errors.New("invalid file name")
)

// Resolver sandboxes untrusted, client-supplied paths against a single
// trusted root directory.
type Resolver struct {
	root string
}

// NewResolver canonicalizes root (creating it if needed, resolving symlinks)
// so that later containment checks compare against the real path.
func NewResolver(root string) (*Resolver, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to absolutize root %s: %w", root, err)
	}
	return &Resolver{root: abs}, nil
}

// Root returns the canonical absolute root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve joins an untrusted slash-separated path onto the root and verifies
// the result stays inside it. A bare prefix comparison is not enough: with
// root /data/uploads, the sibling /data/uploads2 shares the string prefix but
// is outside the sandbox, so containment requires either exact equality or a
// root-plus-separator boundary.
func (r *Resolver) Resolve(userPath string) (string, error) {
	// Normalize Windows-style separators before cleaning, as uploaded
	// relative paths may carry either.
	cleaned := filepath.Clean(filepath.Join(r.root, filepath.FromSlash(strings.ReplaceAll(userPath, "\\", "/"))))

	if cleaned == r.root {
		return cleaned, nil
	}
	if strings.HasPrefix(cleaned, r.root+string(filepath.Separator)) {
		return cleaned, nil
	}
	return "", fmt.Errorf("%w: %q", ErrPathViolation, userPath)
}

// unsafeNameChars are characters rejected from individual file names because
// at least one common target filesystem cannot store them.
const unsafeNameChars = "<>:\"/\\|?*"

// SanitizeName reduces an arbitrary client-supplied file name to a single
// safe path segment. Directory components are dropped, unsafe and control
// characters removed, and the result is length-capped preserving the
// extension. Returns ErrInvalidName when nothing usable remains.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var b strings.Builder
	for _, c := range name {
		if c < 0x20 || c == 0x7f || strings.ContainsRune(unsafeNameChars, c) {
			continue
		}
		b.WriteRune(c)
	}
	name = strings.Trim(b.String(), " .")

	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) >= 255 {
			ext = ""
		}
		name = name[:255-len(ext)] + ext
	}

	return name, nil
}

// SanitizeRelPath sanitizes every segment of a client-supplied relative path
// (as sent by folder uploads), dropping empty, dot and dot-dot segments.
// Returns ErrInvalidName when no usable segments remain.
func SanitizeRelPath(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")

	var parts []string
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		clean, err := SanitizeName(seg)
		if err != nil {
			continue
		}
		parts = append(parts, clean)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, rel)
	}
	return strings.Join(parts, "/"), nil
}
