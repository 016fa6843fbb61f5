// Package main implements the sqlobserver-query command line console.
// Queries run against a locally opened source or a remote sqlobserver
// gRPC endpoint.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	grpcapi "github.com/sqlobserver/sqlobserver/internal/api/grpc"
	"github.com/sqlobserver/sqlobserver/internal/app"
	"github.com/sqlobserver/sqlobserver/internal/config"
	"github.com/sqlobserver/sqlobserver/internal/console"
	"github.com/sqlobserver/sqlobserver/internal/render"
	"github.com/sqlobserver/sqlobserver/internal/source"
)

const prompt = "sql> "

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	configFile string
	sourceType string
	sourceURL  string
	sourcePath string
	table      string
	remote     string
	query      string
	timeout    time.Duration
	explain    bool
	tables     bool
	examples   bool
}

// runner executes one query and prints its outcome.
type runner func(ctx context.Context, query string) bool

// run executes the console and returns the process exit code: 0 when every
// query succeeded, 1 when one failed, 2 on usage or setup errors.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sqlobserver-query", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&opts.sourceType, "source", "", "Dataset source: http, file, sqlite, snapshot")
	fs.StringVar(&opts.sourceURL, "source-url", "", "URL of the dataset endpoint (http source)")
	fs.StringVar(&opts.sourcePath, "source-path", "", "Path of the dataset file or database")
	fs.StringVar(&opts.table, "table", "", "Table to read from the sqlite database")
	fs.StringVar(&opts.remote, "remote", "", "Address of a sqlobserver gRPC endpoint")
	fs.StringVar(&opts.query, "q", "", "Query to run; blank runs the default query")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Timeout per query")
	fs.BoolVar(&opts.explain, "explain", false, "Print the plan instead of running the query")
	fs.BoolVar(&opts.tables, "tables", false, "List queryable tables and their fields")
	fs.BoolVar(&opts.examples, "examples", false, "Print the query language help")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sqlobserver-query [options] [query]\n\n")
		fmt.Fprintf(stderr, "Without a query, queries are read from standard input, one per line.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  sqlobserver-query 'select LastName, City from students;'\n")
		fmt.Fprintf(stderr, "  sqlobserver-query --source file --source-path students.json --tables\n")
		fmt.Fprintf(stderr, "  sqlobserver-query --remote localhost:9090 'select * from students'\n")
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if opts.examples {
		fmt.Fprint(stdout, console.HelpText)
		return 0
	}

	queries := fs.Args()
	if opts.query != "" {
		queries = append([]string{opts.query}, queries...)
	}
	if len(queries) > 1 {
		queries = []string{strings.Join(queries, " ")}
	}

	if opts.remote != "" {
		if opts.explain || opts.tables {
			fmt.Fprintln(stderr, "-explain and -tables are only available for local sources")
			return 2
		}
		client, err := grpcapi.Dial(opts.remote)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to connect: %v\n", err)
			return 2
		}
		defer client.Close()
		return drive(remoteRunner(client, opts.timeout, stdout), queries, stdin, stdout, stderr)
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 2
	}
	applyFlags(cfg, &opts)
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 2
	}

	ctx := context.Background()
	fetcher, closers, err := app.OpenSource(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open source: %v\n", err)
		return 2
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	c := console.New(source.NewCachedFetcher(fetcher, cfg.Cache.TTL),
		console.WithDefaultQuery(cfg.Query.DefaultQuery))

	if opts.tables {
		tctx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()
		tables, err := c.Tables(tctx)
		if err != nil {
			render.Failure(stdout, err)
			return 1
		}
		render.Tables(stdout, tables)
		return 0
	}

	return drive(localRunner(c, opts.timeout, opts.explain, stdout), queries, stdin, stdout, stderr)
}

func applyFlags(cfg *config.Config, opts *options) {
	if opts.sourceType != "" {
		cfg.Source.Type = opts.sourceType
	}
	if opts.sourceURL != "" {
		cfg.Source.URL = opts.sourceURL
	}
	if opts.sourcePath != "" {
		cfg.Source.Path = opts.sourcePath
	}
	if opts.table != "" {
		cfg.Source.Table = opts.table
	}
	// A one-shot console has nothing to watch or refresh.
	cfg.Cache.Watch = false
	cfg.Cache.RefreshSchedule = ""
}

// drive runs the given queries, or every line of stdin when there are none.
func drive(exec runner, queries []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx := context.Background()
	if len(queries) > 0 {
		if !exec(ctx, queries[0]) {
			return 1
		}
		return 0
	}

	code := 0
	scanner := bufio.NewScanner(stdin)
	fmt.Fprint(stderr, prompt)
	for scanner.Scan() {
		if !exec(ctx, scanner.Text()) {
			code = 1
		}
		fmt.Fprint(stderr, prompt)
	}
	fmt.Fprintln(stderr)
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(stderr, "Failed to read input: %v\n", err)
		return 2
	}
	return code
}

func localRunner(c *console.Console, timeout time.Duration, explain bool, stdout io.Writer) runner {
	return func(ctx context.Context, query string) bool {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if explain {
			plan, err := c.Explain(ctx, query)
			if err != nil {
				render.Failure(stdout, err)
				return false
			}
			render.Plan(stdout, plan)
			return true
		}

		result, err := c.Run(ctx, query)
		if err != nil {
			render.Failure(stdout, err)
			return false
		}
		render.Result(stdout, result)
		return true
	}
}

func remoteRunner(client *grpcapi.Client, timeout time.Duration, stdout io.Writer) runner {
	return func(ctx context.Context, query string) bool {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := client.Run(ctx, query)
		if err != nil {
			render.Failure(stdout, grpcapi.FromStatus(err))
			return false
		}
		render.Rows(stdout, result.RecordCount, result.ExecutionTimeMs, result.Columns, result.Rows)
		return true
	}
}
