// Package vocab extracts a query vocabulary from a text column of the input.
//
// The load generator samples its search terms from the word lists produced here.
package vocab
