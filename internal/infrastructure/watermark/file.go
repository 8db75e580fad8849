package watermark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"
)

type fileDocument struct {
	LastTradeID trades.TradeID `json:"last_trade_id"`
}

// FileStore keeps the watermark in a small JSON document on disk.
type FileStore struct {
	path string
}

var _ interfaces.WatermarkStore = (*FileStore)(nil)

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("watermark file path is required")
	}
	return &FileStore{path: filepath.Clean(path)}, nil
}

// Load treats a missing file as "no watermark".
func (s *FileStore) Load(ctx context.Context) (trades.TradeID, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", false, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if doc.LastTradeID.IsZero() {
		return "", false, nil
	}
	return doc.LastTradeID, true, nil
}

// Save replaces the document atomically through a temp file in the same directory.
func (s *FileStore) Save(ctx context.Context, id trades.TradeID) error {
	body, err := json.Marshal(fileDocument{LastTradeID: id})
	if err != nil {
		return fmt.Errorf("marshal watermark: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
