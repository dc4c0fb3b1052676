package blob

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// Resolver превращает basePath источника в Store.
// Клиент GCS создаётся лениво при первом gs:// пути.
type Resolver struct {
	AppRoot         string // относительные basePath считаются от него
	CredentialsFile string

	mu     sync.Mutex
	client *storage.Client
}

func NewResolver(appRoot, credentialsFile string) *Resolver {
	return &Resolver{AppRoot: appRoot, CredentialsFile: credentialsFile}
}

func (r *Resolver) Open(ctx context.Context, basePath string) (Store, error) {
	if strings.HasPrefix(strings.ToLower(basePath), "gs://") {
		bucket, prefix, err := ParseGCSPath(basePath)
		if err != nil {
			return nil, err
		}
		client, err := r.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		return NewGCS(client, bucket, prefix), nil
	}

	root := basePath
	if !filepath.IsAbs(root) {
		root = filepath.Join(r.AppRoot, root)
	}
	return NewLocal(root), nil
}

func (r *Resolver) gcsClient(ctx context.Context) (*storage.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}

	var opts []option.ClientOption
	if r.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(r.CredentialsFile))
	}
	// клиент живёт дольше запроса
	client, err := storage.NewClient(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return nil, err
	}
	log.Info().Bool("credentialsFile", r.CredentialsFile != "").Msg("GCS client initialized")
	r.client = client
	return client, nil
}

func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
