// Package objects opens job media from object storage.
package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"scribe/internal/store"
)

// GCSConfig selects credentials and endpoint for the GCS JSON API. An
// endpoint without credentials talks to an emulator unauthenticated.
type GCSConfig struct {
	CredentialsFile string
	Endpoint        string
}

// GCSStore reads objects through the GCS JSON API.
type GCSStore struct {
	service *storage.Service
}

var _ store.ObjectStore = (*GCSStore)(nil)

// NewGCSStore creates a GCS-backed object store.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create GCS service: %w", err)
	}
	return &GCSStore{service: svc}, nil
}

// Open streams an object's media. The caller closes the reader.
func (g *GCSStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := g.service.Objects.Get(bucket, key).Context(ctx).Download()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("object gs://%s/%s: %w", bucket, key, store.ErrNotFound)
		}
		return nil, fmt.Errorf("download gs://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}
