// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package endpoint

import (
	"errors"
	"net/url"
	"strings"
)

// Config holds connection settings for a bulk-indexing endpoint.
type Config struct {
	// Addresses lists the base URLs of the cluster nodes.
	// Example: "http://localhost:9200"
	Addresses []string

	// Username and Password enable HTTP basic authentication when Username is set.
	Username string
	Password string

	// APIKey is a base64-encoded API key; it takes precedence over basic auth.
	APIKey string

	// InsecureSkipVerify disables TLS certificate verification.
	// Only meant for local clusters with self-signed certificates.
	InsecureSkipVerify bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithAddresses sets the endpoint node URLs.
func WithAddresses(addrs ...string) ConfigOption {
	return func(c *Config) {
		c.Addresses = addrs
	}
}

// WithBasicAuth sets basic authentication credentials.
func WithBasicAuth(username, password string) ConfigOption {
	return func(c *Config) {
		c.Username = username
		c.Password = password
	}
}

// WithAPIKey sets an API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithInsecureTLS disables certificate verification.
func WithInsecureTLS(insecure bool) ConfigOption {
	return func(c *Config) {
		c.InsecureSkipVerify = insecure
	}
}

// DefaultConfig returns a Config pointing at a local single-node cluster.
func DefaultConfig() *Config {
	return &Config{
		Addresses: []string{"http://localhost:9200"},
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAddresses("https://search.internal:9200"),
//	    WithBasicAuth("elastic", "changeme"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize trims whitespace and trailing slashes from addresses and drops empty entries.
func (c *Config) Normalize() {
	addrs := c.Addresses[:0]
	for _, a := range c.Addresses {
		a = strings.TrimSuffix(strings.TrimSpace(a), "/")
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	c.Addresses = addrs
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	if len(c.Addresses) == 0 {
		return errors.New("endpoint config: at least one address is required")
	}
	for _, a := range c.Addresses {
		u, err := url.Parse(a)
		if err != nil {
			return errors.New("endpoint config: invalid address " + a)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("endpoint config: address must use http or https: " + a)
		}
		if u.Host == "" {
			return errors.New("endpoint config: address has no host: " + a)
		}
	}
	if c.Password != "" && c.Username == "" {
		return errors.New("endpoint config: password given without username")
	}
	return nil
}
