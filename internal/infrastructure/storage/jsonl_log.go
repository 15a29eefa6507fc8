package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

// JSONLResultLog appends one JSON document per line to a local file.
type JSONLResultLog struct {
	mu   sync.Mutex
	path string
}

var (
	_ ports.ResultLog    = (*JSONLResultLog)(nil)
	_ ports.ResultReader = (*JSONLResultLog)(nil)
)

// NewJSONLResultLog creates the parent directory of path.
func NewJSONLResultLog(path string) (*JSONLResultLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create result log dir: %w", err)
	}
	return &JSONLResultLog{path: path}, nil
}

func (l *JSONLResultLog) Append(_ context.Context, result domain.PublicationResult) error {
	line, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open result log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append result: %w", err)
	}
	return f.Close()
}

// Recent scans the whole file and returns the newest matching results first.
func (l *JSONLResultLog) Recent(ctx context.Context, platforms []string, limit int) ([]domain.PublicationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open result log: %w", err)
	}
	defer f.Close()

	var all []domain.PublicationResult
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var res domain.PublicationResult
		if err := json.Unmarshal(sc.Bytes(), &res); err != nil {
			return nil, fmt.Errorf("decode result line: %w", err)
		}
		if len(platforms) > 0 && !slices.Contains(platforms, res.Platform) {
			continue
		}
		all = append(all, res)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read result log: %w", err)
	}

	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
