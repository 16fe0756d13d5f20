// Package source streams delimited-text input as raw records.
//
// A CSVSource reads one row at a time from an io.Reader, pairs every value with
// its header column and hands rows to the caller in file order. Rows whose field
// count differs from the header are either skipped and logged or returned as
// *core.MalformedInputError, depending on the configured Policy.
package source
