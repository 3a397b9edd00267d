package directory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML directory fixture.
func LoadFile(path string) (Snapshot, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read directory file: %w", err)
	}
	var snapshot Snapshot
	if err := yaml.Unmarshal(content, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode directory file: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("validate directory file: %w", err)
	}
	return snapshot, nil
}

// FileProvider serves a fixture file and keeps the last good snapshot when a
// reload fails.
type FileProvider struct {
	*Static
	path string
}

func NewFileProvider(path string) (*FileProvider, error) {
	snapshot, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &FileProvider{Static: NewStatic(snapshot), path: path}, nil
}

func (p *FileProvider) Path() string {
	return p.path
}

func (p *FileProvider) Reload(ctx context.Context) error {
	snapshot, err := LoadFile(p.path)
	if err != nil {
		return err
	}
	p.Replace(snapshot)
	return nil
}
