// Package utils holds small filesystem helpers of the CLI
package utils

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindModelFiles recursively finds the files under dir whose extension is one of
// extensions (without the dot, compared case-insensitively). Paths are returned in
// lexical order.
func FindModelFiles(dir string, extensions []string) ([]string, error) {
	wanted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		wanted[strings.ToLower(ext)] = true
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip directories
		if d.IsDir() {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if wanted[strings.ToLower(ext)] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
