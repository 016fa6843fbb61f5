// Package main implements the sqlobserver service binary.
// It serves the query console over HTTP and, when enabled, gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sqlobserver/sqlobserver/internal/app"
	"github.com/sqlobserver/sqlobserver/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		grpcAddr    string
		sourceType  string
		sourceURL   string
		sourcePath  string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for data files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address")
	flag.StringVar(&sourceType, "source", "", "Dataset source: http, file, sqlite, snapshot")
	flag.StringVar(&sourceURL, "source-url", "", "URL of the dataset endpoint (http source)")
	flag.StringVar(&sourcePath, "source-path", "", "Path of the dataset file or database (file, sqlite sources)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "SQL Observer - select fields from the students table\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sqlobserver [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sqlobserver --http-addr :8080\n")
		fmt.Fprintf(os.Stderr, "  sqlobserver --source file --source-path ./students.json\n")
		fmt.Fprintf(os.Stderr, "  sqlobserver --config /etc/sqlobserver/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SQLOBSERVER_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  SQLOBSERVER_HTTP_ADDR      HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  SQLOBSERVER_GRPC_ADDR      gRPC listen address\n")
		fmt.Fprintf(os.Stderr, "  SQLOBSERVER_SOURCE_TYPE    Dataset source (http, file, sqlite, snapshot)\n")
		fmt.Fprintf(os.Stderr, "  SQLOBSERVER_SOURCE_URL     Dataset endpoint URL\n")
		fmt.Fprintf(os.Stderr, "  SQLOBSERVER_CACHE_TTL      Dataset cache lifetime\n")
		fmt.Fprintf(os.Stderr, "  SQLOBSERVER_STORAGE_TYPE   Snapshot storage (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("sqlobserver version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags take priority over file and environment.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
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

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════════════════════╗")
	log.Printf("║                      SQL OBSERVER                         ║")
	log.Printf("║          select <fields> from students;                   ║")
	log.Printf("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Source:   %s", cfg.Source.Type)
	log.Printf("  Storage:  %s", cfg.Storage.Type)
	log.Printf("  Cache:    ttl=%v refresh=%q watch=%v", cfg.Cache.TTL, cfg.Cache.RefreshSchedule, cfg.Cache.Watch)
	log.Printf("")
	log.Printf("Query Service:")
	log.Printf("  HTTP: %s", cfg.HTTP.Addr)
	if cfg.GRPC.Enabled {
		log.Printf("  gRPC: %s", cfg.GRPC.Addr)
	}
	log.Printf("")
}
