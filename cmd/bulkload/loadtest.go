package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/bulkload"
	"github.com/poiesic/bulkload/config"
	"github.com/poiesic/bulkload/loadgen"
	"github.com/poiesic/bulkload/vocab"
	"github.com/urfave/cli/v2"
)

func loadtestCommand() *cli.Command {
	def := loadgen.DefaultConfig()
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "vocabulary",
			Aliases: []string{"w"},
			Usage:   "Word list written by the vocab command",
		},
		&cli.StringFlag{
			Name:    "index",
			Aliases: []string{"i"},
			Usage:   "Index to query",
			Value:   def.Target,
		},
		&cli.StringFlag{
			Name:  "query-field",
			Usage: "Document field the queries match against",
			Value: def.Field,
		},
		&cli.IntFlag{
			Name:    "users",
			Aliases: []string{"u"},
			Usage:   "Concurrent simulated users",
			Value:   def.Users,
		},
		&cli.IntFlag{
			Name:  "words-per-query",
			Usage: "Distinct vocabulary words per query",
			Value: def.WordsPerQuery,
		},
		&cli.IntFlag{
			Name:  "size",
			Usage: "Hits requested per query",
			Value: def.Size,
		},
		&cli.DurationFlag{
			Name:  "min-wait",
			Usage: "Minimum pause between a user's requests",
			Value: def.MinWait,
		},
		&cli.DurationFlag{
			Name:  "max-wait",
			Usage: "Maximum pause between a user's requests",
			Value: def.MaxWait,
		},
		&cli.Float64Flag{
			Name:  "qps",
			Usage: "Cap on the combined request rate (0 = unlimited)",
		},
		&cli.DurationFlag{
			Name:    "duration",
			Aliases: []string{"d"},
			Usage:   "Length of the test (0 = until --requests)",
			Value:   def.Duration,
		},
		&cli.Int64Flag{
			Name:  "requests",
			Usage: "Stop after this many requests (0 = until --duration)",
		},
		&cli.DurationFlag{
			Name:  "request-timeout",
			Usage: "Timeout of a single search request",
			Value: def.RequestTimeout,
		},
		metricsFlag(),
	}
	flags = append(flags, endpointFlags()...)

	return &cli.Command{
		Name:   "loadtest",
		Usage:  "Run concurrent search queries built from a vocabulary",
		Action: loadtestAction,
		Flags:  flags,
	}
}

// loadtestConfig layers defaults, the file, and explicitly set flags.
func loadtestConfig(c *cli.Context, f *config.File) *loadgen.Config {
	cfg := loadgen.DefaultConfig()
	f.LoadTest.Apply(cfg)
	setString(c, "index", &cfg.Target)
	setString(c, "query-field", &cfg.Field)
	setInt(c, "users", &cfg.Users)
	setInt(c, "words-per-query", &cfg.WordsPerQuery)
	setInt(c, "size", &cfg.Size)
	setDuration(c, "min-wait", &cfg.MinWait)
	setDuration(c, "max-wait", &cfg.MaxWait)
	setFloat(c, "qps", &cfg.QPS)
	setDuration(c, "duration", &cfg.Duration)
	setInt64(c, "requests", &cfg.Requests)
	setDuration(c, "request-timeout", &cfg.RequestTimeout)
	return cfg
}

func loadtestAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := loadFile(c)
	if err != nil {
		return err
	}
	cfg := loadtestConfig(c, f)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}

	vocabPath := config.Value(f.LoadTest.Vocabulary, "")
	setString(c, "vocabulary", &vocabPath)
	if vocabPath == "" {
		return cli.Exit("setup failed: a vocabulary file is required (--vocabulary)", exitAborted)
	}
	words, err := readVocabulary(vocabPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}

	sess, err := bulkload.Open(ctx, bulkload.Config{Endpoint: endpointConfig(c, f)})
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}
	defer sess.Close()

	var opts []loadgen.Option
	if addr := c.String("metrics-addr"); addr != "" {
		m, err := serveMetrics(ctx, addr)
		if err != nil {
			return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
		}
		opts = append(opts, loadgen.WithRecorder(m))
	}

	runner, err := sess.NewLoadRunner(words, cfg, opts...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}

	report, runErr := runner.Run(ctx)
	if err := printJSON(c, report); err != nil {
		return err
	}
	if errors.Is(runErr, context.Canceled) {
		return cli.Exit("load test interrupted", exitIncomplete)
	}
	if runErr != nil {
		return cli.Exit(fmt.Sprintf("load test failed: %v", runErr), exitAborted)
	}
	return nil
}

func readVocabulary(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return vocab.Read(file)
}
