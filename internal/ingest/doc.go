// Package ingest moves procedure manuals from disk into the index.
//
// A Pipeline loads each file, builds structured documents for every unit,
// indexes them in batches and records the result in the catalog. Files
// whose content hash matches the catalog are skipped; changed files have
// their previous units removed first. A Watcher feeds a Pipeline from
// filesystem events.
package ingest
