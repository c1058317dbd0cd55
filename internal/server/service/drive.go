package service

import (
	"fmt"
	"log/slog"
	"path"

	"cove/internal/server/vault"
)

// Download is the outcome of a download request. Path points at the file to
// stream back; for directories it is a temporary zip archive and Cleanup must
// be deferred by the caller so the archive is removed on every exit path.
type Download struct {
	Path     string
	Filename string
	Archive  bool
	Cleanup  func()
}

// StorageInfo is the quota snapshot returned to clients.
type StorageInfo struct {
	UsedBytes      int64        `json:"used_bytes"`
	TotalBytes     int64        `json:"total_bytes"`
	AvailableBytes int64        `json:"available_bytes"`
	Recent         []RecentFile `json:"recent"`
}

// DriveService orchestrates the vault components behind the main storage
// endpoints.
type DriveService struct {
	resolver *vault.Resolver
	tree     *vault.Tree
	quota    *vault.Quota
	ingestor *vault.Ingestor
	recent   *RecentLog
}

// NewDriveService wires the vault components together.
func NewDriveService(resolver *vault.Resolver, quota *vault.Quota, recent *RecentLog) *DriveService {
	return &DriveService{
		resolver: resolver,
		tree:     vault.NewTree(resolver),
		quota:    quota,
		ingestor: vault.NewIngestor(resolver, quota),
		recent:   recent,
	}
}

// List returns the entries under rel.
func (s *DriveService) List(rel string) ([]vault.Entry, error) {
	return s.tree.List(rel)
}

// Upload ingests a batch of items into rel and records the saved files in
// the recent log.
func (s *DriveService) Upload(rel string, items []vault.UploadItem) (vault.IngestResult, error) {
	result, err := s.ingestor.Ingest(rel, items)
	if err != nil {
		return result, err
	}

	for _, name := range result.Saved {
		s.recent.Add(path.Join(rel, name))
	}

	slog.Info("upload complete",
		"path", rel,
		"saved", len(result.Saved),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// PrepareDownload resolves a download target. A plain file streams as-is; a
// directory is packaged into a temporary zip first.
func (s *DriveService) PrepareDownload(rel, name string) (*Download, error) {
	entry, abs, err := s.tree.Stat(rel, name)
	if err != nil {
		return nil, err
	}

	if !entry.IsDir {
		return &Download{
			Path:     abs,
			Filename: entry.Name,
			Cleanup:  func() {},
		}, nil
	}

	tmpPath, cleanup, err := vault.PackageDirectory(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to package %s: %w", name, err)
	}
	return &Download{
		Path:     tmpPath,
		Filename: entry.Name + ".zip",
		Archive:  true,
		Cleanup:  cleanup,
	}, nil
}

// Rename renames an entry under rel.
func (s *DriveService) Rename(rel, oldName, newName string) error {
	return s.tree.Rename(rel, oldName, newName)
}

// Delete removes an entry under rel.
func (s *DriveService) Delete(rel, name string) error {
	return s.tree.Delete(rel, name)
}

// Info returns the current quota snapshot plus the recent-files log.
func (s *DriveService) Info() StorageInfo {
	used := s.quota.Used()
	total := s.quota.Total()
	avail := total - used
	if avail < 0 {
		avail = 0
	}
	return StorageInfo{
		UsedBytes:      used,
		TotalBytes:     total,
		AvailableBytes: avail,
		Recent:         s.recent.Entries(),
	}
}

// DirExists verifies that rel is an existing directory without creating it,
// unlike List which materializes the directory it navigates to. Share
// creation uses it so registering a share never mutates the storage tree.
func (s *DriveService) DirExists(rel string) error {
	return s.tree.StatDir(rel)
}

// EntryExists reports whether name still exists under rel, used by share
// downloads to validate weak references before streaming.
func (s *DriveService) EntryExists(rel, name string) bool {
	_, _, err := s.tree.Stat(rel, name)
	return err == nil
}
