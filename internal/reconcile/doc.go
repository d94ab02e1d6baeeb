// Package reconcile drives one reconciliation of a dataset.
//
// The engine builds the scan and log indexes once, then walks every
// subject/session of the scan side. For each task it matches buckets,
// records the chosen log in the scans manifest, applies operator
// overrides, writes the manifest back and transforms every mapped log into
// its events file. Each bucket outcome goes to the run ledger.
//
// A bucket that cannot be matched is logged and recorded; the engine moves
// on to the next task. Only index construction failures and cancellation
// stop a run.
package reconcile
