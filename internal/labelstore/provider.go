package labelstore

// Package labelstore persists carrier shipping labels (PDF) so that operators
// can reprint them without another carrier round trip.

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("label not found")

type Provider interface {
	// Save stores the PDF bytes under the given key and returns the path
	// recorded on the order.
	Save(ctx context.Context, key string, pdf []byte) (string, error)
	// Open returns the stored PDF bytes, or ErrNotFound.
	Open(ctx context.Context, key string) ([]byte, error)
	Close() error
}

type Config struct {
	Provider string

	// Filesystem provider.
	Directory string

	// S3-compatible provider.
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "filesystem", "":
		return NewFilesystemProvider(cfg.Directory)
	case "s3":
		return NewS3Provider(cfg)
	default:
		return nil, fmt.Errorf("unsupported label store provider: %s", cfg.Provider)
	}
}

// LabelKey names a stored label after the order and its pack number, so a
// re-created shipment never overwrites the label of an earlier one.
func LabelKey(orderNumber, packNo string) string {
	return fmt.Sprintf("%s-%s.pdf", orderNumber, packNo)
}
