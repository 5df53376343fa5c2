package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type FileState struct {
	FilePath string
}

func NewFileState(filePath string) *FileState {
	return &FileState{FilePath: filePath}
}

func (f *FileState) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.FilePath)
}

// FileObjects writes objects below a root directory.
type FileObjects struct {
	Root string
}

func NewFileObjects(root string) *FileObjects {
	return &FileObjects{Root: root}
}

func (f *FileObjects) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path := filepath.Join(f.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return path, nil
}
