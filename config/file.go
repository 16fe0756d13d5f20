package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/poiesic/bulkload/endpoint"
	"github.com/poiesic/bulkload/ingestion"
	"github.com/poiesic/bulkload/loadgen"
	"gopkg.in/yaml.v3"
)

// File is the parsed configuration file. Nil fields were not set.
type File struct {
	Endpoint EndpointSection `yaml:"endpoint"`
	Ingest   IngestSection   `yaml:"ingest"`
	Journal  JournalSection  `yaml:"journal"`
	LoadTest LoadTestSection `yaml:"loadtest"`
}

// EndpointSection configures the search endpoint connection.
type EndpointSection struct {
	Addresses   []string `yaml:"addresses"`
	Username    *string  `yaml:"username"`
	Password    *string  `yaml:"password"`
	APIKey      *string  `yaml:"api_key"`
	Insecure    *bool    `yaml:"insecure"`
	CreateIndex *bool    `yaml:"create_index"`
}

// IngestSection configures ingestion runs and the input reader.
type IngestSection struct {
	Target         *string        `yaml:"target"`
	IDField        *string        `yaml:"id_field"`
	ContentIDs     *bool          `yaml:"content_ids"`
	Fields         []string       `yaml:"fields"`
	Delimiter      *string        `yaml:"delimiter"`
	OnMalformed    *string        `yaml:"on_malformed"`
	MaxBatchCount  *int           `yaml:"max_batch_count"`
	MaxBatchBytes  *int           `yaml:"max_batch_bytes"`
	MaxInFlight    *int           `yaml:"max_in_flight"`
	QueueDepth     *int           `yaml:"queue_depth"`
	SampleSize     *int           `yaml:"sample_size"`
	ReportInterval *int           `yaml:"report_interval"`
	MaxRetries     *int           `yaml:"max_retries"`
	InitialBackoff *time.Duration `yaml:"initial_backoff"`
	Multiplier     *float64       `yaml:"backoff_multiplier"`
	Jitter         *float64       `yaml:"jitter"`
	RequestTimeout *time.Duration `yaml:"request_timeout"`
}

// JournalSection configures the local failure journal and run history.
type JournalSection struct {
	Path     *string `yaml:"path"`
	Disabled *bool   `yaml:"disabled"`
}

// LoadTestSection configures the query load generator.
type LoadTestSection struct {
	Target         *string        `yaml:"target"`
	Field          *string        `yaml:"field"`
	Vocabulary     *string        `yaml:"vocabulary"`
	Users          *int           `yaml:"users"`
	WordsPerQuery  *int           `yaml:"words_per_query"`
	Size           *int           `yaml:"size"`
	MinWait        *time.Duration `yaml:"min_wait"`
	MaxWait        *time.Duration `yaml:"max_wait"`
	QPS            *float64       `yaml:"qps"`
	Duration       *time.Duration `yaml:"duration"`
	Requests       *int64         `yaml:"requests"`
	RequestTimeout *time.Duration `yaml:"request_timeout"`
}

// Load reads the file at path. An empty path yields an empty File.
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return &f, nil
}

// Value returns *p, or def when p is nil.
func Value[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func set[T any](dst *T, p *T) {
	if p != nil {
		*dst = *p
	}
}

// Apply copies the values present in the section onto cfg.
func (s EndpointSection) Apply(cfg *endpoint.Config) {
	if len(s.Addresses) > 0 {
		cfg.Addresses = append([]string(nil), s.Addresses...)
	}
	set(&cfg.Username, s.Username)
	set(&cfg.Password, s.Password)
	set(&cfg.APIKey, s.APIKey)
	set(&cfg.InsecureSkipVerify, s.Insecure)
}

// Apply copies the values present in the section onto cfg.
func (s IngestSection) Apply(cfg *ingestion.Config) {
	set(&cfg.Target, s.Target)
	set(&cfg.IDField, s.IDField)
	set(&cfg.ContentIDs, s.ContentIDs)
	if len(s.Fields) > 0 {
		cfg.Fields = append([]string(nil), s.Fields...)
	}
	set(&cfg.MaxBatchCount, s.MaxBatchCount)
	set(&cfg.MaxBatchBytes, s.MaxBatchBytes)
	set(&cfg.MaxInFlight, s.MaxInFlight)
	set(&cfg.QueueDepth, s.QueueDepth)
	set(&cfg.SampleSize, s.SampleSize)
	set(&cfg.ReportInterval, s.ReportInterval)
	set(&cfg.MaxRetries, s.MaxRetries)
	set(&cfg.InitialBackoff, s.InitialBackoff)
	set(&cfg.Multiplier, s.Multiplier)
	set(&cfg.Jitter, s.Jitter)
	set(&cfg.RequestTimeout, s.RequestTimeout)
}

// Apply copies the values present in the section onto cfg.
func (s LoadTestSection) Apply(cfg *loadgen.Config) {
	set(&cfg.Target, s.Target)
	set(&cfg.Field, s.Field)
	set(&cfg.Users, s.Users)
	set(&cfg.WordsPerQuery, s.WordsPerQuery)
	set(&cfg.Size, s.Size)
	set(&cfg.MinWait, s.MinWait)
	set(&cfg.MaxWait, s.MaxWait)
	set(&cfg.QPS, s.QPS)
	set(&cfg.Duration, s.Duration)
	set(&cfg.Requests, s.Requests)
	set(&cfg.RequestTimeout, s.RequestTimeout)
}
