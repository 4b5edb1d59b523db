package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
)

// fileStore keeps one JSON file per lease:
//
//	<path>/<table>/<unique_hash>.json
//
// The claim is the O_CREATE|O_EXCL open of that file, which is atomic on
// local filesystems and on NFSv3+. Workers on different hosts must share the
// directory.
type fileStore struct {
	dir    string
	log    logx.Logger
	closed atomic.Bool
}

func openFile(cfg Config, log logx.Logger) (lease.Store, error) {
	base := strings.TrimSpace(cfg.Path)
	if base == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	return &fileStore{dir: filepath.Join(base, cfg.Table), log: log}, nil
}

func (s *fileStore) leasePath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\.`) {
		return "", fmt.Errorf("invalid lease key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *fileStore) Provision(context.Context) error {
	return os.MkdirAll(s.dir, 0o755)
}

func (s *fileStore) Probe(context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	fi, err := os.Stat(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: directory %s", lease.ErrTableMissing, s.dir)
	}
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *fileStore) InsertUnique(_ context.Context, rec lease.Record) (lease.Outcome, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	path, err := s.leasePath(rec.Key)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	switch {
	case errors.Is(err, fs.ErrExist):
		return lease.AlreadyHeld, nil
	case errors.Is(err, fs.ErrNotExist):
		return 0, fmt.Errorf("%w: directory %s", lease.ErrTableMissing, s.dir)
	case err != nil:
		return 0, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	encErr := json.NewEncoder(f).Encode(rec)
	closeErr := f.Close()
	if encErr != nil || closeErr != nil {
		// The file exists, so the lease is ours; the row content is best effort.
		s.log.Warn("lease file written partially", logx.String("path", path), logx.Err(errors.Join(encErr, closeErr)))
	}
	return lease.Claimed, nil
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	path, err := s.leasePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: directory %s", lease.ErrTableMissing, s.dir)
	}
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		created, ok := s.createdAt(path)
		if !ok || !created.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, err
		}
		n++
	}
	return n, nil
}

// createdAt reads date_created, falling back to the file's mtime for rows
// that were never fully written.
func (s *fileStore) createdAt(path string) (time.Time, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	var rec lease.Record
	if err := json.Unmarshal(b, &rec); err == nil && !rec.CreatedAt.IsZero() {
		return rec.CreatedAt, true
	}
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

func (s *fileStore) Close() error {
	s.closed.Store(true)
	return nil
}
