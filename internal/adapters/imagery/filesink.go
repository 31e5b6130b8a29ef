package imagery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// FileSink writes tiles as tile_<index>.tiff under a directory.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: output dir %q: %v", domain.ErrConfiguration, dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Store writes via a temp file and rename so partial tiles are never visible.
func (s *FileSink) Store(_ context.Context, index int, _ domain.Tile, data []byte) (string, error) {
	name := filepath.Join(s.dir, fmt.Sprintf("tile_%04d.tiff", index))
	tmp, err := os.CreateTemp(s.dir, ".tile-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAcquisition, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: write %s: %v", domain.ErrAcquisition, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", domain.ErrAcquisition, err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", domain.ErrAcquisition, err)
	}
	return name, nil
}
