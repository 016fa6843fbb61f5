// Package main implements the sqlobserver-snapshot binary.
// It fetches the dataset from the configured source once and stores it as a
// snappy-compressed snapshot object for the snapshot source to serve.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sqlobserver/sqlobserver/internal/app"
	"github.com/sqlobserver/sqlobserver/internal/config"
	"github.com/sqlobserver/sqlobserver/internal/source"
)

func main() {
	var (
		configFile string
		sourceType string
		sourceURL  string
		sourcePath string
		object     string
		timeout    time.Duration
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&sourceType, "source", "", "Dataset source to capture: http, file, sqlite")
	flag.StringVar(&sourceURL, "source-url", "", "URL of the dataset endpoint (http source)")
	flag.StringVar(&sourcePath, "source-path", "", "Path of the dataset file or database")
	flag.StringVar(&object, "object", "", "Snapshot object path in storage")
	flag.DurationVar(&timeout, "timeout", time.Minute, "Timeout for fetch and upload")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sqlobserver-snapshot [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sqlobserver-snapshot --source-url https://example.com/students.json\n")
		fmt.Fprintf(os.Stderr, "  SQLOBSERVER_STORAGE_TYPE=s3 SQLOBSERVER_S3_BUCKET=obs sqlobserver-snapshot\n")
	}
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if sourceType != "" {
		cfg.Source.Type = sourceType
	}
	if sourceURL != "" {
		cfg.Source.URL = sourceURL
	}
	if sourcePath != "" {
		cfg.Source.Path = sourcePath
	}
	if object != "" {
		cfg.Source.Object = object
	}
	if cfg.Source.Type == config.SourceSnapshot {
		log.Fatalf("Snapshot source cannot be captured into itself; choose http, file, or sqlite")
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Source.Object == "" {
		log.Fatalf("Snapshot object path is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := capture(ctx, cfg); err != nil {
		log.Fatalf("Snapshot failed: %v", err)
	}
}

func capture(ctx context.Context, cfg *config.Config) error {
	fetcher, closers, err := app.OpenSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	ds, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	log.Printf("Fetched %d records in %v", len(ds), time.Since(start))

	size, err := source.WriteSnapshot(ctx, store, cfg.Source.Object, ds)
	if err != nil {
		return err
	}
	log.Printf("Snapshot written: object=%s storage=%s bytes=%d fingerprint=%016x",
		cfg.Source.Object, cfg.Storage.Type, size, source.Fingerprint(ds))
	return nil
}
