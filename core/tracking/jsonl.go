package tracking

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLStore appends deliveries to a rotating JSONL file.
type JSONLStore struct {
	mu   sync.Mutex
	path string
	out  *lumberjack.Logger
	seen map[string]struct{}
}

// JSONLConfig configures a JSONLStore.
type JSONLConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// NewJSONLStore opens the store and loads already recorded keys so that
// retried deliveries are not written twice across restarts.
func NewJSONLStore(cfg JSONLConfig) (*JSONLStore, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 100
	}
	s := &JSONLStore{
		path: cfg.Path,
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
		seen: make(map[string]struct{}),
	}
	existing, err := s.read(Query{})
	if err != nil {
		return nil, err
	}
	for _, d := range existing {
		s.seen[d.Key()] = struct{}{}
	}
	return s, nil
}

func (s *JSONLStore) RecordDelivery(ctx context.Context, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[d.Key()]; ok {
		return nil
	}
	if err := json.NewEncoder(s.out).Encode(d); err != nil {
		return err
	}
	s.seen[d.Key()] = struct{}{}
	return nil
}

func (s *JSONLStore) Query(ctx context.Context, q Query) ([]Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(q)
}

// read scans the current file and its rotated backups.
func (s *JSONLStore) read(q Query) ([]Delivery, error) {
	files, err := filepath.Glob(s.path + "*")
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(s.path)
	base := s.path[:len(s.path)-len(ext)]
	backups, _ := filepath.Glob(base + "-*" + ext)
	files = append(files, backups...)

	var res []Delivery
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var d Delivery
			if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
				continue
			}
			if q.match(d) {
				res = append(res, d)
			}
		}
		serr := scanner.Err()
		_ = f.Close()
		if serr != nil {
			return nil, serr
		}
	}
	return res, nil
}

func (s *JSONLStore) Close() error { return s.out.Close() }

func itoa(i int64) string { return strconv.FormatInt(i, 10) }
