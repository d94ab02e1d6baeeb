// Package ledger persists the history of reconciliation runs in SQLite.
//
// Each run gets a UUID and one row per bucket it processed, recording the
// outcome (matched, gap, degraded, manual, failed, override) together with
// the candidate scans and logs. The report command reads it back so an
// operator can see which buckets still need manual work without digging
// through logs.
package ledger
