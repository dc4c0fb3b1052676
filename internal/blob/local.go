package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

type Local struct {
	Root string // например, "./data"
}

func NewLocal(root string) *Local { return &Local{Root: root} }

func (s *Local) Location() string { return s.Root }

func (s *Local) full(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, filepath.FromSlash(k)), nil
}

func (s *Local) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.full(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotExist)
	}
	return b, err
}

// Put пишет во временный файл рядом и переименовывает; sha256 считается на лету.
// При ошибке чтения на месте ключа ничего не остаётся.
func (s *Local) Put(_ context.Context, key string, r io.Reader, _ string) (Object, error) {
	p, err := s.full(key)
	if err != nil {
		return Object{}, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, err
	}
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(p)+"-*")
	if err != nil {
		return Object{}, err
	}
	defer os.Remove(f.Name())

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		f.Close()
		return Object{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return Object{}, err
	}
	if err := f.Close(); err != nil {
		return Object{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(f.Name(), p); err != nil {
		return Object{}, err
	}
	k, _ := cleanKey(key)
	return Object{Key: k, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func (s *Local) Delete(_ context.Context, key string) error {
	p, err := s.full(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotExist)
	} else if err != nil {
		return err
	}
	return nil
}

func (s *Local) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s *Local) Check(_ context.Context) error {
	st, err := os.Stat(s.Root)
	if err != nil {
		return fmt.Errorf("path does not exist: %s", s.Root)
	}
	if !st.IsDir() {
		return fmt.Errorf("path is not a directory: %s", s.Root)
	}
	return nil
}
