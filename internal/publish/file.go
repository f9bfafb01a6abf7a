package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FilePublisher writes the artifact to a local path, typically the directory a
// static host serves (docs/index.html).
type FilePublisher struct {
	Path string
}

func (p *FilePublisher) Name() string { return TargetFile }

// Publish replaces Path atomically.
func (p *FilePublisher) Publish(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(a.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", p.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", p.Path, err)
	}
	if err := os.Rename(tmp.Name(), p.Path); err != nil {
		return fmt.Errorf("replace %s: %w", p.Path, err)
	}
	return nil
}
