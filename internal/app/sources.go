package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/sqlobserver/sqlobserver/internal/config"
	"github.com/sqlobserver/sqlobserver/internal/source"
	"github.com/sqlobserver/sqlobserver/internal/storage"
)

// OpenStorage opens the object storage named by the configuration.
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case config.StorageLocal:
		return storage.NewLocalStorage(cfg.Storage.Path)
	case config.StorageS3:
		s3Cfg := storage.DefaultS3Config()
		if cfg.Storage.S3.Region != "" {
			s3Cfg.Region = cfg.Storage.S3.Region
		}
		s3Cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3Cfg.UsePathStyle = cfg.Storage.S3.UsePathStyle
		s3Cfg.Prefix = cfg.Storage.S3.Prefix
		log.Printf("S3 storage: bucket=%s region=%s endpoint=%s",
			cfg.Storage.S3.Bucket, s3Cfg.Region, s3Cfg.Endpoint)
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// OpenSource builds the uncached dataset source named by the configuration.
// The returned closers release the source's resources.
func OpenSource(ctx context.Context, cfg *config.Config) (source.Fetcher, []io.Closer, error) {
	switch cfg.Source.Type {
	case config.SourceHTTP:
		httpCfg := source.DefaultHTTPConfig()
		httpCfg.URL = cfg.Source.URL
		if cfg.Source.Timeout > 0 {
			httpCfg.Timeout = cfg.Source.Timeout
		}
		httpCfg.MaxRetries = cfg.Source.MaxRetries
		httpCfg.QueryParam = cfg.Source.QueryParam
		src, err := source.NewHTTPSource(httpCfg, nil)
		if err != nil {
			return nil, nil, err
		}
		return src, nil, nil

	case config.SourceFile:
		return source.NewFileSource(cfg.Source.Path), nil, nil

	case config.SourceSQLite:
		src, err := source.NewSQLiteSource(cfg.Source.Path, cfg.Source.Table)
		if err != nil {
			return nil, nil, err
		}
		return src, []io.Closer{src}, nil

	case config.SourceSnapshot:
		store, err := OpenStorage(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open snapshot storage: %w", err)
		}
		return source.NewSnapshotSource(store, cfg.Source.Object), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported source type: %s", cfg.Source.Type)
	}
}

// describeSource returns a log-friendly description of the source.
func describeSource(cfg *config.Config) string {
	switch cfg.Source.Type {
	case config.SourceHTTP:
		return fmt.Sprintf("http url=%s", cfg.Source.URL)
	case config.SourceFile:
		return fmt.Sprintf("file path=%s", cfg.Source.Path)
	case config.SourceSQLite:
		return fmt.Sprintf("sqlite path=%s table=%s", cfg.Source.Path, cfg.Source.Table)
	case config.SourceSnapshot:
		return fmt.Sprintf("snapshot object=%s storage=%s", cfg.Source.Object, cfg.Storage.Type)
	default:
		return cfg.Source.Type
	}
}
