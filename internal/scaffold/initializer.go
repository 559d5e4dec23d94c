package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/compass/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// DataDir holds the local SQLite store.
const DataDir = ".compass"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string // Relative to the project directory
	Template    string
	Permissions os.FileMode
}

var files = []FileInfo{
	{Path: config.DefaultFile, Template: "templates/compass.yml.tmpl", Permissions: 0644},
	{Path: filepath.Join(DataDir, ".gitignore"), Template: "templates/gitignore.tmpl", Permissions: 0644},
}

// Initialize writes compass.yml and the local data directory into dir.
// If force is true, an existing compass.yml is overwritten; the data directory is never removed.
func Initialize(dir string, force bool) ([]string, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Join(dir, DataDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", DataDir, err)
	}

	created := make([]string, 0, len(files))
	for _, f := range files {
		content, err := templatesFS.ReadFile(f.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", f.Path, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.Path), content, f.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		created = append(created, f.Path)
	}

	// The written file must load cleanly, or every later command would fail.
	if _, err := config.Load(filepath.Join(dir, config.DefaultFile)); err != nil {
		return nil, fmt.Errorf("created %s is invalid: %w", config.DefaultFile, err)
	}

	return created, nil
}
