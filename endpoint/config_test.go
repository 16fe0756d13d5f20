package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Addresses)
	assert.Empty(t, cfg.Username)
	assert.Empty(t, cfg.APIKey)
	assert.False(t, cfg.InsecureSkipVerify)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, []string{"http://localhost:9200"}, cfg.Addresses)
	})

	t.Run("with addresses and credentials", func(t *testing.T) {
		cfg := NewConfig(
			WithAddresses("http://a:9200", "http://b:9200"),
			WithBasicAuth("elastic", "changeme"),
		)

		assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.Addresses)
		assert.Equal(t, "elastic", cfg.Username)
		assert.Equal(t, "changeme", cfg.Password)
	})

	t.Run("with api key and insecure tls", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("a2V5"), WithInsecureTLS(true))

		assert.Equal(t, "a2V5", cfg.APIKey)
		assert.True(t, cfg.InsecureSkipVerify)
	})
}

func TestConfigNormalize(t *testing.T) {
	cfg := NewConfig(WithAddresses(" http://a:9200/ ", "", "https://b:9243"))
	cfg.Normalize()

	assert.Equal(t, []string{"http://a:9200", "https://b:9243"}, cfg.Addresses)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []ConfigOption
		wantErr string
	}{
		{
			name: "default is valid",
		},
		{
			name:    "no addresses",
			opts:    []ConfigOption{WithAddresses()},
			wantErr: "at least one address",
		},
		{
			name:    "unsupported scheme",
			opts:    []ConfigOption{WithAddresses("ftp://a:21")},
			wantErr: "http or https",
		},
		{
			name:    "missing host",
			opts:    []ConfigOption{WithAddresses("http://")},
			wantErr: "no host",
		},
		{
			name:    "password without username",
			opts:    []ConfigOption{WithBasicAuth("", "secret")},
			wantErr: "without username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opts...).Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestItemResult(t *testing.T) {
	ok := ItemResult{Status: 201}
	assert.True(t, ok.Succeeded())
	assert.Empty(t, ok.Detail())

	rejected := ItemResult{Status: 400, ErrorType: "mapper_parsing_exception", Reason: "failed to parse field [year]"}
	assert.False(t, rejected.Succeeded())
	assert.Equal(t, "mapper_parsing_exception: failed to parse field [year]", rejected.Detail())

	assert.Equal(t, "busy", ItemResult{Status: 429, Reason: "busy"}.Detail())
}
