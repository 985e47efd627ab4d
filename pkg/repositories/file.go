package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/klauspost/compress/zstd"
)

// FileRepository stores the save as a JSON document. Paths ending in .zst
// are zstd compressed.
type FileRepository struct {
	path     string
	compress bool
	mu       sync.Mutex
}

func NewFileRepository(path string) (Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("file path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create save directory: %v", err)
		}
	}
	return &FileRepository{
		path:     path,
		compress: strings.HasSuffix(path, ".zst"),
	}, nil
}

func (r *FileRepository) Close(ctx context.Context) error {
	return nil
}

func (r *FileRepository) LoadSaveData(ctx context.Context) (*history.SaveData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to read save file: %v", err)
	}

	if r.compress {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %v", err)
		}
		defer decoder.Close()
		if b, err = decoder.DecodeAll(b, nil); err != nil {
			return nil, &ErrCorrupt{Err: fmt.Errorf("failed to decompress save file: %v", err)}
		}
	}

	data := history.NewSaveData(0)
	if err := json.Unmarshal(b, data); err != nil {
		return nil, &ErrCorrupt{Err: fmt.Errorf("failed to unmarshal save file: %v", err)}
	}
	return data, nil
}

// SaveGameData replaces the file atomically.
func (r *FileRepository) SaveGameData(ctx context.Context, data *history.SaveData) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal save data: %v", err)
	}

	if r.compress {
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %v", err)
		}
		b = encoder.EncodeAll(b, nil)
		encoder.Close()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write save file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close save file: %v", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace save file: %v", err)
	}
	return nil
}
