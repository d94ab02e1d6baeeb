// Package bids understands the slice of the BIDS layout eventsync touches:
// events-file entities, the scans manifest location per subject/session, and
// the scan filename an events file stands in for.
//
// FSLayout is the filesystem Layout provider. It walks
// sub-*/ses-*/func/*_events.tsv and reports the entities of every events file
// it finds; it never opens the files.
package bids
