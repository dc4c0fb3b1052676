package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCS — файлы источника в бакете Google Cloud Storage под префиксом.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string // без ведущего и с завершающим "/" (или пустой)
}

func NewGCS(client *storage.Client, bucket, prefix string) *GCS {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix}
}

// ParseGCSPath разбирает gs://bucket/prefix.
func ParseGCSPath(p string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(strings.ToLower(p), "gs://") {
		return "", "", fmt.Errorf("not a gs:// path: %s", p)
	}
	rest := p[len("gs://"):]
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("bucket is empty in %s", p)
	}
	return bucket, prefix, nil
}

func (g *GCS) Location() string { return "gs://" + g.bucket + "/" + g.prefix }

func (g *GCS) object(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return g.prefix + k, nil
}

func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	name, err := g.object(key)
	if err != nil {
		return nil, err
	}
	rc, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create reader for object %s in bucket %s: %w", name, g.bucket, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read data for object %s in bucket %s: %w", name, g.bucket, err)
	}
	return data, nil
}

func (g *GCS) Put(ctx context.Context, key string, r io.Reader, contentType string) (Object, error) {
	name, err := g.object(key)
	if err != nil {
		return Object{}, err
	}
	wc := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(wc, h), r)
	if err != nil {
		_ = wc.Close()
		return Object{}, fmt.Errorf("failed to upload file: %w", err)
	}
	if err := wc.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to close writer: %w", err)
	}
	return Object{Key: strings.TrimPrefix(name, g.prefix), Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	name, err := g.object(key)
	if err != nil {
		return err
	}
	err = g.client.Bucket(g.bucket).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", name, g.bucket, err)
	}
	return nil
}

func (g *GCS) List(ctx context.Context) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: g.prefix, Delimiter: "/"})
	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", g.bucket, g.prefix, err)
		}
		if attrs.Name == "" { // "подкаталог" (attrs.Prefix)
			continue
		}
		out = append(out, path.Base(attrs.Name))
	}
	sort.Strings(out)
	return out, nil
}

func (g *GCS) Check(ctx context.Context) error {
	if _, err := g.client.Bucket(g.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s is not accessible: %w", g.bucket, err)
	}
	return nil
}
