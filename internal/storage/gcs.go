package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCSStore implements BlobStore on a Google Cloud Storage bucket. Objects are
// written publicly readable so the vision model can fetch them.
type GCSStore struct {
	service *gcs.Service
	bucket  string
}

// NewGCSStore creates a GCSStore. credentialsFile may be empty to use
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	service, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &GCSStore{service: service, bucket: bucket}, nil
}

// Put uploads a blob and returns its public URL
func (g *GCSStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	object := &gcs.Object{
		Name:        name,
		ContentType: contentType,
	}

	_, err := g.service.Objects.Insert(g.bucket, object).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		PredefinedAcl("publicRead").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}

	return publicObjectURL(g.bucket, name), nil
}

// Name maps a public object URL in this bucket back to the object name
func (g *GCSStore) Name(rawURL string) (string, error) {
	return nameUnder(rawURL, publicObjectURL(g.bucket, ""))
}

func publicObjectURL(bucket, name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, url.PathEscape(name))
}
