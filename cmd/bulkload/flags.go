package main

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/poiesic/bulkload/config"
	"github.com/poiesic/bulkload/endpoint"
	"github.com/poiesic/bulkload/ingestion"
	"github.com/urfave/cli/v2"
)

func endpointFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "Search endpoint URL (repeatable)",
			Value:   cli.NewStringSlice(endpoint.DefaultConfig().Addresses...),
			EnvVars: []string{"BULKLOAD_ADDRESSES"},
		},
		&cli.StringFlag{
			Name:    "username",
			Usage:   "Basic auth username",
			EnvVars: []string{"BULKLOAD_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Basic auth password",
			EnvVars: []string{"BULKLOAD_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Base64-encoded API key",
			EnvVars: []string{"BULKLOAD_API_KEY"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip TLS certificate verification",
		},
	}
}

func journalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "journal",
			Aliases: []string{"j"},
			Usage:   "Path to the BadgerDB failure journal directory",
			Value:   "bulkload.db",
		},
	}
}

func retryFlags() []cli.Flag {
	def := ingestion.DefaultRetryConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Resubmission rounds for retryable documents",
			Value: def.MaxRetries,
		},
		&cli.DurationFlag{
			Name:  "initial-backoff",
			Usage: "Base delay for exponential backoff",
			Value: def.InitialBackoff,
		},
		&cli.Float64Flag{
			Name:  "backoff-multiplier",
			Usage: "Growth factor of the backoff delay",
			Value: def.Multiplier,
		},
		&cli.Float64Flag{
			Name:  "jitter",
			Usage: "Random spread applied to each delay, as a fraction in [0, 1)",
			Value: def.Jitter,
		},
		&cli.DurationFlag{
			Name:  "request-timeout",
			Usage: "Timeout of a single bulk request",
			Value: def.RequestTimeout,
		},
	}
}

func batchFlags() []cli.Flag {
	def := ingestion.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "max-batch-count",
			Usage: "Maximum documents per bulk request",
			Value: def.MaxBatchCount,
		},
		&cli.IntFlag{
			Name:  "max-batch-bytes",
			Usage: "Maximum encoded bytes per bulk request (0 = unbounded)",
			Value: def.MaxBatchBytes,
		},
		&cli.IntFlag{
			Name:  "max-in-flight",
			Usage: "Concurrent bulk requests",
			Value: def.MaxInFlight,
		},
		&cli.IntFlag{
			Name:  "queue-depth",
			Usage: "Completed batches buffered ahead of the workers (0 = max-in-flight)",
		},
		&cli.IntFlag{
			Name:  "sample-size",
			Usage: "Fatal error details kept in the summary",
			Value: def.SampleSize,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N documents",
			Value: def.ReportInterval,
		},
	}
}

func metricsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
	}
}

func loadFile(c *cli.Context) (*config.File, error) {
	f, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("setup failed: %v", err), exitAborted)
	}
	return f, nil
}

// endpointConfig layers defaults, the file, and explicitly set flags.
func endpointConfig(c *cli.Context, f *config.File) *endpoint.Config {
	cfg := endpoint.DefaultConfig()
	f.Endpoint.Apply(cfg)
	if c.IsSet("address") {
		cfg.Addresses = c.StringSlice("address")
	}
	setString(c, "username", &cfg.Username)
	setString(c, "password", &cfg.Password)
	setString(c, "api-key", &cfg.APIKey)
	setBool(c, "insecure", &cfg.InsecureSkipVerify)
	return cfg
}

func journalPath(c *cli.Context, f *config.File) string {
	if config.Value(f.Journal.Disabled, false) && !c.IsSet("journal") {
		return ""
	}
	path := config.Value(f.Journal.Path, c.String("journal"))
	setString(c, "journal", &path)
	return path
}

func applyRetryFlags(c *cli.Context, cfg *ingestion.RetryConfig) {
	setInt(c, "max-retries", &cfg.MaxRetries)
	setDuration(c, "initial-backoff", &cfg.InitialBackoff)
	setFloat(c, "backoff-multiplier", &cfg.Multiplier)
	setFloat(c, "jitter", &cfg.Jitter)
	setDuration(c, "request-timeout", &cfg.RequestTimeout)
}

func applyBatchFlags(c *cli.Context, cfg *ingestion.Config) {
	setInt(c, "max-batch-count", &cfg.MaxBatchCount)
	setInt(c, "max-batch-bytes", &cfg.MaxBatchBytes)
	setInt(c, "max-in-flight", &cfg.MaxInFlight)
	setInt(c, "queue-depth", &cfg.QueueDepth)
	setInt(c, "sample-size", &cfg.SampleSize)
	setInt(c, "report-interval", &cfg.ReportInterval)
}

func parseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r, nil
}

func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func setInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func setInt64(c *cli.Context, name string, dst *int64) {
	if c.IsSet(name) {
		*dst = c.Int64(name)
	}
}

func setBool(c *cli.Context, name string, dst *bool) {
	if c.IsSet(name) {
		*dst = c.Bool(name)
	}
}

func setFloat(c *cli.Context, name string, dst *float64) {
	if c.IsSet(name) {
		*dst = c.Float64(name)
	}
}

func setDuration(c *cli.Context, name string, dst *time.Duration) {
	if c.IsSet(name) {
		*dst = c.Duration(name)
	}
}
