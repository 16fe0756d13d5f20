package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/bulkload"
	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/ingestion"
	"github.com/poiesic/bulkload/storage/badger"
	"github.com/urfave/cli/v2"
)

func failuresCommand() *cli.Command {
	return &cli.Command{
		Name:   "failures",
		Usage:  "List documents recorded in the failure journal",
		Action: failuresAction,
		Flags: append(journalFlags(),
			&cli.StringFlag{
				Name:  "run",
				Usage: "Only list failures of this run",
			},
			&cli.BoolFlag{
				Name:  "payload",
				Usage: "Include the document payload",
			},
		),
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:   "runs",
		Usage:  "List the summaries of past ingestion runs",
		Action: runsAction,
		Flags:  journalFlags(),
	}
}

func replayCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "run",
			Usage: "Only replay failures of this run",
		},
		&cli.StringFlag{
			Name:    "index",
			Aliases: []string{"i"},
			Usage:   "Index reported in the replay summary",
			Value:   "events",
		},
	}
	flags = append(flags, endpointFlags()...)
	flags = append(flags, journalFlags()...)
	flags = append(flags, batchFlags()...)
	flags = append(flags, retryFlags()...)

	return &cli.Command{
		Name:   "replay",
		Usage:  "Resubmit journaled failures and clear the ones that succeed",
		Action: replayAction,
		Flags:  flags,
	}
}

type failureView struct {
	Key      string    `json:"key"`
	RunID    string    `json:"run_id"`
	Target   string    `json:"target"`
	DocID    string    `json:"doc_id,omitempty"`
	Line     int       `json:"line"`
	Detail   string    `json:"detail"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
	Source   string    `json:"source,omitempty"`
}

func openJournal(c *cli.Context) (*badger.Backend, error) {
	f, err := loadFile(c)
	if err != nil {
		return nil, err
	}
	path := journalPath(c, f)
	if path == "" {
		return nil, cli.Exit("the journal is disabled in the configuration file", exitAborted)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, cli.Exit(fmt.Sprintf("opening journal: %v", err), exitAborted)
	}
	backend, err := badger.OpenBackend(path, false)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("opening journal: %v", err), exitAborted)
	}
	return backend, nil
}

func failuresAction(c *cli.Context) error {
	backend, err := openJournal(c)
	if err != nil {
		return err
	}
	defer backend.Close()

	entries, err := badger.NewFailureJournal(backend).GetFailures(c.Context, c.String("run"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading journal: %v", err), exitAborted)
	}

	views := make([]failureView, len(entries))
	for i, e := range entries {
		views[i] = failureView{
			Key:      fmt.Sprintf("%016x", uint64(e.Key)),
			RunID:    e.RunID,
			Target:   e.Target,
			DocID:    e.DocID,
			Line:     e.Line,
			Detail:   e.Detail,
			Attempts: e.Attempts,
			FailedAt: e.FailedAt,
		}
		if c.Bool("payload") {
			views[i].Source = string(e.Source)
		}
	}
	return printJSON(c, views)
}

func runsAction(c *cli.Context) error {
	backend, err := openJournal(c)
	if err != nil {
		return err
	}
	defer backend.Close()

	runs, err := badger.NewRunRepository(backend).ListRuns(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading run history: %v", err), exitAborted)
	}
	if runs == nil {
		runs = []*core.RunSummary{}
	}
	return printJSON(c, runs)
}

func replayAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := loadFile(c)
	if err != nil {
		return err
	}

	cfg := ingestion.DefaultConfig()
	cfg.Target = c.String("index")
	f.Ingest.Apply(cfg)
	setString(c, "index", &cfg.Target)
	applyBatchFlags(c, cfg)
	applyRetryFlags(c, &cfg.RetryConfig)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}

	path := journalPath(c, f)
	if path == "" {
		return cli.Exit("the journal is disabled in the configuration file", exitAborted)
	}

	sess, err := bulkload.Open(ctx, bulkload.Config{
		Endpoint:    endpointConfig(c, f),
		JournalPath: path,
		Retry:       cfg.RetryConfig,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}
	defer sess.Close()

	result, runErr := sess.Replay(ctx, c.String("run"), cfg)
	if err := printJSON(c, result); err != nil {
		return err
	}
	switch {
	case errors.Is(runErr, context.Canceled):
		return cli.Exit("replay incomplete: cancelled before every document was resolved", exitIncomplete)
	case runErr != nil:
		return cli.Exit(fmt.Sprintf("replay aborted: %v", runErr), exitAborted)
	}
	return nil
}
