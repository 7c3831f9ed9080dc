// Package file provides a file-based implementation of driven.ConfigStore.
//
// The format follows the file extension: .toml (default), .yaml/.yml or .json.
// Nested tables are flattened into dotted keys such as "retry.max_retries".
package file
