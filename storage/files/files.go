// Package filestore persists generated roll slips and uploaded fee slips.
package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/admission"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// cleanRef validates name and returns it as a slash-separated relative path.
func cleanRef(name string) (string, error) {
	ref := filepath.ToSlash(filepath.Clean(name))
	if name == "" || ref == "." || filepath.IsAbs(name) || ref == ".." || strings.HasPrefix(ref, "../") {
		return "", ErrInvalidName
	}
	return ref, nil
}

// Disk stores files under a root directory. A ref is the file's path relative to the root.
type Disk struct {
	root string
}

var _ admission.FileStore = (*Disk)(nil)

func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", root)
	}
	return &Disk{root: root}, nil
}

// Save writes content atomically, replacing any file with the same name.
func (d *Disk) Save(_ context.Context, name string, content []byte) (string, error) {
	ref, err := cleanRef(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(d.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.Wrap(err, "creating directory")
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0644); err != nil {
		return "", errors.Wrap(err, "writing file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.Wrap(err, "renaming file")
	}
	return ref, nil
}

func (d *Disk) Open(_ context.Context, ref string) ([]byte, error) {
	ref, err := cleanRef(ref)
	if err != nil {
		return nil, ErrNotFound
	}
	content, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(ref)))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return content, errors.Wrap(err, "reading file")
}

// Memory is an in-memory store, used in tests.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
	fail  bool
}

var _ admission.FileStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// FailSaves makes every following Save fail.
func (m *Memory) FailSaves(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *Memory) Save(_ context.Context, name string, content []byte) (string, error) {
	ref, err := cleanRef(name)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("storage unavailable")
	}
	m.files[ref] = append([]byte(nil), content...)
	return ref, nil
}

func (m *Memory) Open(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.files[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), content...), nil
}

// Delete removes ref, simulating a lost file.
func (m *Memory) Delete(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, ref)
}

// Len returns the number of stored files.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
