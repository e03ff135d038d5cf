// Package logtail reads the tail of gridwatch's JSON log file for the
// dashboard's activity pane.
//
// Read keeps a ring buffer of the last N raw lines so large files are
// scanned once without holding them in memory. Tail decodes those lines with
// the encoder keys from the logging package and Format renders each entry as
// a compact "time LEVEL logger message key=value" line. Lines that are not
// JSON are passed through as plain messages.
package logtail
