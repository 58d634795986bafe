package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// CreateFolder creates every given directory if it does not exist yet.
func CreateFolder(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(p, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", p, err)
		}
	}
	return nil
}

// TempArchivePath returns the path for a bulk-download archive.
func TempArchivePath(tempDir, name string) string {
	_ = os.MkdirAll(tempDir, 0755)
	return filepath.Join(tempDir, name+".zip")
}
