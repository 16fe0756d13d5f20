package loadgen

import (
	"encoding/json"
	"strings"
)

type phraseQuery struct {
	Query string `json:"query"`
	Slop  int    `json:"slop,omitempty"`
	Boost int    `json:"boost,omitempty"`
}

type matchQuery struct {
	Query              string `json:"query"`
	MinimumShouldMatch string `json:"minimum_should_match"`
}

type clause map[string]map[string]any

type searchBody struct {
	Query struct {
		Bool struct {
			Should             []clause `json:"should"`
			MinimumShouldMatch int      `json:"minimum_should_match"`
		} `json:"bool"`
	} `json:"query"`
	Size int `json:"size"`
}

// BuildQuery renders the search body for words against field. Exact phrase
// matches rank highest, near phrases next, and documents holding most of the
// words last.
func BuildQuery(field string, words []string, size int) ([]byte, error) {
	text := strings.Join(words, " ")

	var body searchBody
	body.Query.Bool.Should = []clause{
		{"match_phrase": {field: phraseQuery{Query: text, Boost: 30}}},
		{"match_phrase": {field: phraseQuery{Query: text, Slop: 6, Boost: 10}}},
		{"match": {field: matchQuery{Query: text, MinimumShouldMatch: "80%"}}},
	}
	body.Query.Bool.MinimumShouldMatch = 1
	body.Size = size
	return json.Marshal(body)
}
