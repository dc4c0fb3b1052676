// Package blob — байтовое хранилище под файловыми источниками данных:
// локальный каталог или бакет GCS (basePath вида gs://bucket/prefix).
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrNotExist = errors.New("blob not found")
	// ErrInvalidKey — пустой ключ или ключ вне базы.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Object — результат Put.
type Object struct {
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
	// List возвращает имена файлов верхнего уровня (без рекурсии).
	List(ctx context.Context) ([]string, error)
	// Check проверяет, что база (каталог/бакет) существует.
	Check(ctx context.Context) error
	Location() string
}

// cleanKey нормализует ключ и не даёт выйти за пределы базы.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), `\`, "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	k := path.Clean(key)
	if k == "." || k == ".." || strings.HasPrefix(k, "../") || path.IsAbs(k) {
		return "", fmt.Errorf("%w: %s escapes base path", ErrInvalidKey, key)
	}
	return k, nil
}
