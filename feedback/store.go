// Package feedback persists every scored submission to an append-only CSV file.
package feedback

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"churnform/ml"
	"churnform/schema"
)

var ErrStoreWrite = errors.New("feedback store write failed")

// CSVStore appends one row per submission. The header is written exactly once, when
// the file is created.
type CSVStore struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewCSVStore(path string, logger *zap.Logger) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("feedback path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVStore{path: path, logger: logger}, nil
}

func (s *CSVStore) Path() string {
	return s.path
}

// Append writes record and its predicted label. A missing file is created with a
// header of the record's keys followed by the churn column.
func (s *CSVStore) Append(ctx context.Context, record ml.Record, label int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	created := info.Size() == 0
	writer := csv.NewWriter(file)
	if created {
		header := append(record.Keys(), schema.ChurnColumn)
		if err := writer.Write(header); err != nil {
			file.Close()
			return fmt.Errorf("%w: %w", ErrStoreWrite, err)
		}
	}
	row := append(record.Strings(), strconv.Itoa(label))
	if err := writer.Write(row); err != nil {
		file.Close()
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	if created {
		s.logger.Info("feedback store created", zap.String("path", s.path), zap.Int("columns", record.Len()+1))
	}
	return nil
}

func (s *CSVStore) ensureDir() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}

// ReadAll returns the header and data rows. A missing store has neither.
func (s *CSVStore) ReadAll() ([]string, [][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}
