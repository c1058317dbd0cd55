package vault

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UploadItem is a single file within an upload batch. RelPath, when set,
// carries the client-side folder structure to preserve (folder-select
// uploads); otherwise the sanitized Name alone decides the destination.
type UploadItem struct {
	Name    string
	RelPath string
	Size    int64
	Data    io.Reader
}

// IngestResult reports per-item outcomes of a batch upload.
type IngestResult struct {
	Saved   []string
	Skipped []string
}

// Ingestor writes upload batches into the storage tree.
type Ingestor struct {
	resolver *Resolver
	quota    *Quota
}

// NewIngestor creates an Ingestor bound to a resolver and quota tracker.
func NewIngestor(resolver *Resolver, quota *Quota) *Ingestor {
	return &Ingestor{resolver: resolver, quota: quota}
}

// Ingest writes a batch of items under the target directory rel.
//
// The whole batch is rejected up front when it is empty or when the declared
// total size would exceed the quota; in both cases nothing is written. After
// that, items are independent: an item with an unusable name is skipped and
// the rest of the batch continues. Each file is written to a temporary name
// in its destination directory and renamed into place, so a crash mid-item
// never leaves a half-written file under its final name. A crash mid-batch
// can still leave earlier items written, which is accepted.
func (ing *Ingestor) Ingest(rel string, items []UploadItem) (IngestResult, error) {
	if len(items) == 0 {
		return IngestResult{}, ErrNoFiles
	}

	var declared int64
	for _, item := range items {
		if item.Size > 0 {
			declared += item.Size
		}
	}
	if ing.quota.WouldExceed(declared) {
		return IngestResult{}, fmt.Errorf("%w: need %d bytes, %d available", ErrQuotaExceeded, declared, ing.quota.Available())
	}

	var result IngestResult
	for _, item := range items {
		dest, err := ing.itemDestination(rel, item)
		if err != nil {
			slog.Warn("skipping upload item", "name", item.Name, "error", err)
			result.Skipped = append(result.Skipped, item.Name)
			continue
		}

		if err := writeAtomic(dest, item.Data); err != nil {
			slog.Error("failed to write upload item", "name", item.Name, "error", err)
			result.Skipped = append(result.Skipped, item.Name)
			continue
		}
		result.Saved = append(result.Saved, filepath.Base(dest))
	}

	if len(result.Saved) == 0 {
		return result, fmt.Errorf("%w: all %d items were skipped", ErrNoFiles, len(items))
	}
	return result, nil
}

// itemDestination composes and validates the absolute destination for one
// item, creating intermediate directories.
func (ing *Ingestor) itemDestination(rel string, item UploadItem) (string, error) {
	var sub string
	if item.RelPath != "" {
		clean, err := SanitizeRelPath(item.RelPath)
		if err != nil {
			return "", err
		}
		sub = clean
	} else {
		clean, err := SanitizeName(item.Name)
		if err != nil {
			return "", err
		}
		sub = clean
	}

	dest, err := ing.resolver.Resolve(filepath.Join(rel, filepath.FromSlash(sub)))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}
	return dest, nil
}

// writeAtomic streams data to a temporary sibling of dest and renames it into
// place. The temporary file is removed on any failure.
func writeAtomic(dest string, data io.Reader) error {
	tmp := filepath.Join(filepath.Dir(dest), ".part-"+uuid.NewString())

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
