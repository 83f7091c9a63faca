// Package maskstore resolves precomputed inverse-mask references to their
// GeoJSON geometry. Masks are produced offline from country boundaries and
// published to an S3-compatible bucket.
package maskstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/paulmach/orb/geojson"

	"github.com/escapdev/overlaysync/internal/domain/overlay"
	apperrors "github.com/escapdev/overlaysync/pkg/errors"
)

// ObjectStore fetches raw mask documents by reference.
type ObjectStore interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// MinioStore reads mask objects from an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinioStore constructs the object-store client.
func NewMinioStore(endpoint, accessKey, secretKey, bucket, region string, logger *slog.Logger) (*MinioStore, error) {
	cleanEndpoint := sanitizeEndpoint(endpoint)
	useSSL := strings.HasPrefix(strings.ToLower(endpoint), "https")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init mask store client: %w", err)
	}
	return &MinioStore{
		client: client,
		bucket: bucket,
		logger: logger.With("component", "maskstore.minio"),
	}, nil
}

// Fetch downloads a mask object.
func (s *MinioStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, apperrors.Wrap(overlay.CodeNoMatchingResource,
				fmt.Sprintf("mask object %q not found", ref), nil)
		}
		return nil, err
	}
	return data, nil
}

func sanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimSuffix(endpoint, "/")
}

// Fetcher adapts an ObjectStore to the domain MaskFetcher contract.
type Fetcher struct {
	store ObjectStore
}

// NewFetcher constructs the adapter.
func NewFetcher(store ObjectStore) *Fetcher {
	return &Fetcher{store: store}
}

var _ overlay.MaskFetcher = (*Fetcher)(nil)

// FetchMask resolves a reference and decodes the GeoJSON payload.
func (f *Fetcher) FetchMask(ctx context.Context, ref string) (*geojson.FeatureCollection, error) {
	data, err := f.store.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, apperrors.Wrap(overlay.CodeFetchFailed,
			fmt.Sprintf("decode mask %q", ref), err)
	}
	return fc, nil
}
