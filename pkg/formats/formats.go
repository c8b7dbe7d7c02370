// Package formats reads and writes mesh interchange files. Parsers return
// pkg/mesh values and never log; callers decide how to report errors.
package formats
