package vault

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// PackageDirectory zips the directory at abs into a uniquely named temporary
// file and returns its path together with a cleanup function. The caller
// streams the archive back and must defer cleanup so the temporary file is
// removed on every exit path, including a failed or aborted send. cleanup is
// safe to call more than once.
//
// Arc-names are relative to abs so the archive unpacks to the folder's own
// structure. Files that cannot be opened are skipped, matching listing
// semantics.
func PackageDirectory(abs string) (tmpPath string, cleanup func(), err error) {
	tmpPath = filepath.Join(os.TempDir(), "cove-archive-"+uuid.NewString()+".zip")

	var once sync.Once
	cleanup = func() {
		once.Do(func() {
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				slog.Warn("failed to remove temporary archive", "path", tmpPath, "error", err)
			}
		})
	}

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary archive: %w", err)
	}

	zw := zip.NewWriter(f)
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		relName, err := filepath.Rel(abs, path)
		if err != nil {
			return fmt.Errorf("failed to compute archive name for %s: %w", path, err)
		}

		if err := addFileToZip(zw, path, filepath.ToSlash(relName)); err != nil {
			slog.Warn("skipping unreadable file during archive", "path", path, "error", err)
		}
		return nil
	})

	if walkErr == nil {
		walkErr = zw.Close()
	} else {
		zw.Close()
	}
	if closeErr := f.Close(); walkErr == nil {
		walkErr = closeErr
	}

	if walkErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to package directory %s: %w", abs, walkErr)
	}
	return tmpPath, cleanup, nil
}

func addFileToZip(zw *zip.Writer, srcPath, archivePath string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", srcPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header: %w", err)
	}
	header.Name = archivePath
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to write file to zip: %w", err)
	}

	return nil
}
