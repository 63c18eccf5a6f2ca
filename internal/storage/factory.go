package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// NewAdapter creates the blob storage selected by cfg.Adapter. The
// "prefix" option nests every key below a sub-path for both adapters.
func NewAdapter(cfg types.StorageConfig) (Adapter, error) {
	prefix := strings.Trim(cfg.Options["prefix"], "/")

	var (
		adapter Adapter
		err     error
	)
	switch strings.ToLower(cfg.Adapter) {
	case "local", "":
		base := cfg.Local.BasePath
		if prefix != "" {
			base = filepath.Join(base, filepath.FromSlash(prefix))
		}
		adapter, err = NewLocalAdapter(base)
	case "s3":
		adapter, err = NewS3Adapter(S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
			Prefix:          prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Adapter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", cfg.Adapter, err)
	}
	return adapter, nil
}
