package snapshot

import (
	"os"
	"path/filepath"
)

// writeFile creates path's parent directory as needed and writes content,
// overwriting any existing file.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
