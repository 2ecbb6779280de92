package main

import (
	"os"
	"path/filepath"
)

var defaultDataDir = func() string {
	if dir := os.Getenv("MESHNODE_DATA_DIR"); dir != "" {
		return filepath.Join(dir, "data")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "data")
	}
	return filepath.Join(home, ".meshnode", "data")
}()
