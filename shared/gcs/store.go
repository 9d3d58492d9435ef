// Package gcs stores page snapshots, screenshots and logs in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Config holds bucket configuration
type Config struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	Endpoint        string // emulator endpoint, empty for production
}

// Store writes objects to a single bucket
type Store struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewStore creates a new GCS-backed blob store
func NewStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	logger.Info("Cloud storage client initialized",
		slog.String("bucket", cfg.Bucket),
		slog.String("prefix", cfg.Prefix),
	)

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// Put uploads content to objectPath, overwriting any existing object
func (s *Store) Put(ctx context.Context, objectPath string, content []byte, contentType string) error {
	name := objectName(s.prefix, objectPath)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", name, err)
	}

	s.logger.Debug("Object uploaded",
		slog.String("bucket", s.bucket),
		slog.String("object", name),
		slog.Int("size", len(content)),
	)
	return nil
}

// Close releases the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

func objectName(prefix, p string) string {
	p = strings.TrimLeft(p, "/")
	if prefix == "" {
		return p
	}
	return path.Join(prefix, p)
}
