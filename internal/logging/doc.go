// Package logging configures structured JSON logging for docsearch.
// Logs go to a size-rotated file under ~/.docsearch/logs/ and, unless the
// process speaks a protocol over stdio, to stderr as well.
package logging
