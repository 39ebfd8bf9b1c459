// Package server implements the Slot Drop HTTP server: a fixed route table
// dispatching to an upload form, a multipart ingest handler that atomically
// replaces the single stored artifact, and a handler streaming that artifact
// back. Optional collaborators (Postgres audit ledger, MinIO mirror) hang off
// a successful install.
package server
