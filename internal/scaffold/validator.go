package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/compass/internal/config"
)

// CheckExisting returns an error if dir already has a compass.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'compass init --force' to reinitialize (this will overwrite existing configuration)", config.DefaultFile)
	}
	return nil
}
