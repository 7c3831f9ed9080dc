// Package file provides a directory-backed implementation of driven.RunStore.
//
// Each run owns a directory named after its run ID:
//
//	<dir>/<run id>/checkpoint.json   latest checkpoint, replaced atomically
//	<dir>/<run id>/results.jsonl     append-only spool of terminal results
//	<dir>/<run id>/.lock             present while a process owns the run
//
// Checkpoints are written to a temporary file, synced, then renamed over the
// previous one, so a crash leaves either the old or the new checkpoint.
package file
