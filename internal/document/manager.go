// Package document provides the per-workspace document manager: it owns the
// ingestion input directory of one workspace and enumerates files eligible
// for indexing.
package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates a referenced document file does not exist.
var ErrNotFound = errors.New("document not found")

// defaultExtensions are the file types accepted for ingestion.
var defaultExtensions = []string{".txt", ".md", ".pdf", ".docx", ".pptx", ".xlsx", ".csv", ".json", ".html"}

// processedDir is the subdirectory finished files are moved into.
const processedDir = "__processed__"

// Params is the construction template for Manager. The lifecycle manager
// holds one Params and derives one Manager per workspace; each workspace gets
// its own subdirectory under InputRoot.
type Params struct {
	// InputRoot is the directory holding one subdirectory per workspace.
	InputRoot string

	// Extensions overrides the accepted file extensions. Empty = defaults.
	Extensions []string
}

// Manager handles document files for one workspace.
//
// Construction is pure: no directory is created or touched until the first
// operation that needs it. The lifecycle manager relies on this — duplicate
// construction under a race is harmless and last-write-wins.
type Manager struct {
	workspace  string
	inputDir   string
	extensions map[string]bool
}

// New constructs a Manager bound to the given workspace.
func New(params Params, workspace string) *Manager {
	exts := params.Extensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}

	return &Manager{
		workspace:  workspace,
		inputDir:   filepath.Join(params.InputRoot, workspace),
		extensions: extSet,
	}
}

// Workspace returns the workspace key this manager is bound to.
func (m *Manager) Workspace() string {
	return m.workspace
}

// InputDir returns this workspace's ingestion directory, creating it on
// first use.
func (m *Manager) InputDir() (string, error) {
	if err := os.MkdirAll(m.inputDir, 0o750); err != nil {
		return "", fmt.Errorf("creating input directory: %w", err)
	}
	return m.inputDir, nil
}

// Supported reports whether a filename has an accepted extension.
func (m *Manager) Supported(name string) bool {
	return m.extensions[strings.ToLower(filepath.Ext(name))]
}

// Scan returns the paths of ingestable files currently in the input
// directory, skipping unsupported extensions and the processed subdirectory.
func (m *Manager) Scan() ([]string, error) {
	dir, err := m.InputDir()
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == processedDir {
				return filepath.SkipDir
			}
			return nil
		}
		if m.Supported(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning input directory: %w", err)
	}
	return files, nil
}

// filePath joins name onto the workspace's input directory, rejecting names
// that would escape it. Every entry point taking a caller-supplied name goes
// through here.
func (m *Manager) filePath(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return filepath.Join(m.inputDir, name), nil
}

// Exists reports whether the named file is present in the input directory.
func (m *Manager) Exists(name string) bool {
	path, err := m.filePath(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Read returns the content of the named input file.
func (m *Manager) Read(name string) ([]byte, error) {
	path, err := m.filePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("reading document %s: %w", name, err)
	}
	return data, nil
}

// Store writes an uploaded file into the input directory.
func (m *Manager) Store(name string, content []byte) error {
	path, err := m.filePath(name)
	if err != nil {
		return err
	}
	if _, err := m.InputDir(); err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0o640); err != nil {
		return fmt.Errorf("storing document %s: %w", name, err)
	}
	return nil
}

// MarkProcessed moves a finished file into the processed subdirectory.
func (m *Manager) MarkProcessed(name string) error {
	src, err := m.filePath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("checking document %s: %w", name, err)
	}

	doneDir := filepath.Join(m.inputDir, processedDir)
	if err := os.MkdirAll(doneDir, 0o750); err != nil {
		return fmt.Errorf("creating processed directory: %w", err)
	}
	if err := os.Rename(src, filepath.Join(doneDir, name)); err != nil {
		return fmt.Errorf("moving document %s: %w", name, err)
	}
	return nil
}
