// Command parse runs the document parsing pipeline from the command line:
// it takes local files or URLs, parses them against the extraction endpoint
// with the same batching and retry behavior as the server, and writes JSON
// and HTML reports for each document.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/dgallion1/docparse/internal/config"
	"github.com/dgallion1/docparse/internal/document"
	"github.com/dgallion1/docparse/internal/extract"
	"github.com/dgallion1/docparse/internal/fetch"
	"github.com/dgallion1/docparse/internal/pipeline"
	"github.com/dgallion1/docparse/internal/render"
	"github.com/dgallion1/docparse/internal/splitter"
)

func main() {
	outDir := flag.String("out", "parsed", "output directory for JSON and HTML reports")
	htmlOut := flag.Bool("html", true, "also write an HTML report per document")
	batchSize := flag.Int("batch", 0, "documents in flight at once (default from BATCH_SIZE)")
	workers := flag.Int("workers", 0, "part workers per document (default from MAX_WORKERS)")
	splitSize := flag.Int("split", 0, "max pages per extraction call (default from SPLIT_SIZE)")
	retryStyle := flag.String("retry-log", "", "retry logging style: none, log_msg, inline_block")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: parse [flags] <file-or-url> [...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *workers > 0 {
		cfg.MaxWorkers = *workers
	}
	if *splitSize > 0 {
		cfg.SplitSize = *splitSize
	}
	if *retryStyle != "" {
		cfg.RetryLogStyle = *retryStyle
	}
	if cfg.ExtractAPIKey == "" {
		fmt.Fprintln(os.Stderr, color.RedString("EXTRACT_API_KEY is not set"))
		os.Exit(1)
	}
	if !pipeline.ValidRetryLogStyle(pipeline.RetryLogStyle(cfg.RetryLogStyle)) {
		fmt.Fprintf(os.Stderr, "unknown retry log style %q\n", cfg.RetryLogStyle)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted, finishing in-flight work...")
		cancel()
	}()

	sources, err := loadSources(ctx, flag.Args(), cfg.MaxUploadBytes)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		os.Exit(1)
	}

	client := extract.NewClient(cfg.EndpointHost, cfg.ExtractAPIKey, cfg.RateLimitRPS)
	defer client.Close()

	bar := newProgressBar(len(sources), "parsing documents")
	scheduler := pipeline.NewScheduler(client, pipeline.Options{
		BatchSize:  cfg.BatchSize,
		MaxWorkers: cfg.MaxWorkers,
		Split:      splitter.Config{MaxPages: cfg.SplitSize},
		Policy: pipeline.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseWait:   cfg.BaseRetryWait,
			MaxWait:    cfg.MaxRetryWait,
		},
		PerAttemptTimeout: cfg.PerAttemptTimeout,
		RetryLogStyle:     pipeline.RetryLogStyle(cfg.RetryLogStyle),
		Stats:             client.Stats,
		OnDocumentDone: func(index int, res *document.Result) {
			bar.Add(1)
		},
	}, log)

	results := scheduler.ParseAll(ctx, sources)
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	exitCode := 0
	for _, res := range results {
		printSummary(res)
		if res.Status == document.StatusFailed || res.Status == document.StatusCancelled {
			exitCode = 1
			continue
		}
		path, err := render.WriteJSON(res, *outDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("  write failed: %v", err))
			exitCode = 1
			continue
		}
		fmt.Printf("  %s\n", path)
		if *htmlOut {
			path, err := render.WriteHTML(res, *outDir)
			if err != nil {
				fmt.Fprintln(os.Stderr, color.RedString("  write failed: %v", err))
				exitCode = 1
				continue
			}
			fmt.Printf("  %s\n", path)
		}
	}

	snap := client.Stats.Snapshot()
	fmt.Printf("\n%d documents, %d calls, %d retries, %d part failures\n",
		len(results), snap.Attempts, snap.Retries, snap.Failures)
	os.Exit(exitCode)
}

// loadSources resolves each argument as a URL or a local path. A single bad
// input fails the whole run up front, before any remote calls.
func loadSources(ctx context.Context, refs []string, maxBytes int64) ([]*document.Source, error) {
	sources := make([]*document.Source, 0, len(refs))
	for _, ref := range refs {
		var src *document.Source
		var err error
		if fetch.IsURL(ref) {
			src, err = fetch.FromURL(ctx, ref, maxBytes)
		} else {
			src, err = fetch.FromFile(ref)
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func printSummary(res *document.Result) {
	var status string
	switch res.Status {
	case document.StatusFull:
		status = color.GreenString("full")
	case document.StatusPartial:
		status = color.YellowString("partial")
	case document.StatusCancelled:
		status = color.YellowString("cancelled")
	default:
		status = color.RedString("failed")
	}
	fmt.Printf("%s: %s (pages %d-%d, %d chunks, %d attempts)\n",
		res.Name, status, res.StartPage, res.EndPage, len(res.Chunks), res.Attempts)
	for _, gap := range res.Gaps {
		fmt.Printf("  %s\n", color.YellowString("gap: pages %d-%d (%s)", gap.StartPage, gap.EndPage, gap.Reason))
	}
}
