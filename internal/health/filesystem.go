// Package health checks local preconditions before a flow starts.
package health

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// CheckFolderAccessible verifies that a path exists and is a directory.
func CheckFolderAccessible(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("download folder does not exist: %s", path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("download folder is not accessible: %s", path)
	case err != nil:
		return fmt.Errorf("stat download folder: %w", err)
	case !info.IsDir():
		return fmt.Errorf("download path is not a directory: %s", path)
	}
	return nil
}

// CheckFolderWritable writes and removes a uniquely named probe file in path.
func CheckFolderWritable(path string) error {
	probe := filepath.Join(path, ".clipforge-probe-"+uuid.NewString())
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("download folder is read-only: %s", path)
		}
		os.Remove(probe)
		return fmt.Errorf("write probe file: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}
	return nil
}

// PrepareDownloadDir creates dir if needed and checks it can take files.
func PrepareDownloadDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create download folder: %w", err)
	}
	if err := CheckFolderAccessible(dir); err != nil {
		return err
	}
	return CheckFolderWritable(dir)
}
