package loadgen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery(t *testing.T) {
	body, err := BuildQuery("content", []string{"graph", "index"}, 50)
	require.NoError(t, err)

	want := `{
		"query": {
			"bool": {
				"should": [
					{"match_phrase": {"content": {"query": "graph index", "boost": 30}}},
					{"match_phrase": {"content": {"query": "graph index", "slop": 6, "boost": 10}}},
					{"match": {"content": {"query": "graph index", "minimum_should_match": "80%"}}}
				],
				"minimum_should_match": 1
			}
		},
		"size": 50
	}`
	assert.JSONEq(t, want, string(body))
}

func TestBuildQuery_Field(t *testing.T) {
	body, err := BuildQuery("abstract", []string{"x"}, 10)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(body, &parsed))
	should := parsed["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	require.Len(t, should, 3)
	assert.Contains(t, should[2].(map[string]any)["match"], "abstract")
}
