package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Table lists the labels of one categorical field in code order.
type Table struct {
	Field  string
	Labels []string
}

// LoadReference reads the reference dataset at path and collects, for each of the
// given columns, its distinct labels in first-seen row order. Columns absent from
// the header are returned as empty tables.
func LoadReference(path, charset string, columns []string) ([]Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference dataset: %w", err)
	}
	defer file.Close()

	reader, err := decodeCharset(file, charset)
	if err != nil {
		return nil, err
	}
	return ReadReference(reader, columns)
}

// ReadReference is LoadReference over an already decoded reader.
func ReadReference(r io.Reader, columns []string) ([]Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("reference dataset is empty")
		}
		return nil, fmt.Errorf("read reference header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}

	tables := make([]Table, len(columns))
	seen := make([]map[string]struct{}, len(columns))
	for i, col := range columns {
		tables[i] = Table{Field: col, Labels: make([]string, 0)}
		seen[i] = make(map[string]struct{})
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reference row: %w", err)
		}
		for i, col := range columns {
			pos, ok := index[col]
			if !ok || pos >= len(row) {
				continue
			}
			label := normalizeLabel(row[pos])
			if label == "" {
				continue
			}
			if _, dup := seen[i][label]; dup {
				continue
			}
			seen[i][label] = struct{}{}
			tables[i].Labels = append(tables[i].Labels, label)
		}
	}
	return tables, nil
}

func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	charset = strings.TrimSpace(charset)
	if charset == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported reference charset %q: %w", charset, err)
	}
	if enc == encoding.Nop {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func normalizeLabel(label string) string {
	return strings.TrimSpace(label)
}
