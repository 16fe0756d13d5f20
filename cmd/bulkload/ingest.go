package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/bulkload"
	"github.com/poiesic/bulkload/config"
	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/ingestion"
	"github.com/poiesic/bulkload/metrics"
	"github.com/poiesic/bulkload/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func ingestCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "input",
			Aliases:  []string{"f"},
			Usage:    "Path to the delimited input file (.gz is decompressed)",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "index",
			Aliases: []string{"i"},
			Usage:   "Target index",
			Value:   "events",
		},
		&cli.StringFlag{
			Name:  "id-field",
			Usage: "Column holding the document identifier (empty = derived from content)",
		},
		&cli.BoolFlag{
			Name:  "content-ids",
			Usage: "Derive identifiers from document content when no id field is set; with --content-ids=false the index assigns them and re-runs duplicate documents",
			Value: true,
		},
		&cli.StringSliceFlag{
			Name:  "field",
			Usage: "Column copied into each document (repeatable, default all)",
		},
		&cli.StringFlag{
			Name:  "delimiter",
			Usage: "Field delimiter",
			Value: ",",
		},
		&cli.StringFlag{
			Name:  "on-malformed",
			Usage: "What to do with rows that do not match the header (skip, abort)",
			Value: "skip",
		},
		&cli.BoolFlag{
			Name:  "create-index",
			Usage: "Create the target index when it does not exist",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "verify",
			Usage: "Print the index document count after the run",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Report progress on stderr",
			Value: true,
		},
		metricsFlag(),
	}
	flags = append(flags, endpointFlags()...)
	flags = append(flags, journalFlags()...)
	flags = append(flags, batchFlags()...)
	flags = append(flags, retryFlags()...)

	return &cli.Command{
		Name:   "ingest",
		Usage:  "Load every row of the input into the target index",
		Action: ingestAction,
		Flags:  flags,
	}
}

// ingestConfig layers defaults, the file, and explicitly set flags.
func ingestConfig(c *cli.Context, f *config.File) *ingestion.Config {
	cfg := ingestion.DefaultConfig()
	cfg.Target = c.String("index")
	f.Ingest.Apply(cfg)
	setString(c, "index", &cfg.Target)
	setString(c, "id-field", &cfg.IDField)
	setBool(c, "content-ids", &cfg.ContentIDs)
	if c.IsSet("field") {
		cfg.Fields = c.StringSlice("field")
	}
	applyBatchFlags(c, cfg)
	applyRetryFlags(c, &cfg.RetryConfig)
	return cfg
}

func sourceOptions(c *cli.Context, f *config.File) ([]source.Option, error) {
	delimStr := config.Value(f.Ingest.Delimiter, c.String("delimiter"))
	setString(c, "delimiter", &delimStr)
	delim, err := parseDelimiter(delimStr)
	if err != nil {
		return nil, err
	}

	policyStr := config.Value(f.Ingest.OnMalformed, c.String("on-malformed"))
	setString(c, "on-malformed", &policyStr)
	policy, err := source.ParsePolicy(policyStr)
	if err != nil {
		return nil, err
	}

	return []source.Option{source.WithDelimiter(delim), source.WithMalformedPolicy(policy)}, nil
}

func ingestAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := loadFile(c)
	if err != nil {
		return err
	}
	cfg := ingestConfig(c, f)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}

	srcOpts, err := sourceOptions(c, f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}
	src, err := source.Open(c.String("input"), srcOpts...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}
	defer src.Close()

	createIndex := config.Value(f.Endpoint.CreateIndex, c.Bool("create-index"))
	setBool(c, "create-index", &createIndex)

	sess, err := bulkload.Open(ctx, bulkload.Config{
		Endpoint:    endpointConfig(c, f),
		Target:      cfg.Target,
		CreateIndex: createIndex,
		JournalPath: journalPath(c, f),
		Retry:       cfg.RetryConfig,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}
	defer sess.Close()

	var opts []ingestion.Option
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter))
	}
	if addr := c.String("metrics-addr"); addr != "" {
		m, err := serveMetrics(ctx, addr)
		if err != nil {
			return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
		}
		opts = append(opts, ingestion.WithMetrics(m))
	}

	p, err := sess.NewPipeline(cfg, opts...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}
	defer p.Release()

	fmt.Fprintf(c.App.ErrWriter, "Input: %s\n", c.String("input"))
	fmt.Fprintf(c.App.ErrWriter, "Index: %s\n", cfg.Target)
	fmt.Fprintln(c.App.ErrWriter)

	summary, runErr := p.Run(ctx, src)
	if err := printJSON(c, summary); err != nil {
		return err
	}
	return finishRun(c, sess, summary, runErr)
}

// finishRun maps the run result to an exit code. A run in which every document
// failed still completed, so it exits 0 with a distinct message.
func finishRun(c *cli.Context, sess *bulkload.Session, summary core.RunSummary, runErr error) error {
	switch {
	case errors.Is(runErr, context.Canceled):
		return cli.Exit("run incomplete: cancelled before every document was resolved", exitIncomplete)
	case runErr != nil:
		return cli.Exit(fmt.Sprintf("run aborted: %v", runErr), exitAborted)
	}

	if summary.Submitted > 0 && summary.Succeeded == 0 {
		slog.Warn("all documents failed", "fatally_failed", summary.FatallyFailed)
		fmt.Fprintln(c.App.ErrWriter, "all documents failed")
	}

	if c.Bool("verify") {
		count, err := sess.Verify(context.WithoutCancel(c.Context), summary.Target)
		if err != nil {
			return cli.Exit(fmt.Sprintf("verification failed: %v", err), exitAborted)
		}
		fmt.Fprintf(c.App.Writer, "documents in %s: %d\n", summary.Target, count)
	}
	return nil
}

// serveMetrics registers the collectors on a fresh registry and publishes them on addr.
func serveMetrics(ctx context.Context, addr string) (*metrics.Metrics, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go func() {
		if err := metrics.ServeListener(ctx, lis, reg); err != nil {
			slog.Error("metrics server stopped", "err", err)
		}
	}()
	return m, nil
}
