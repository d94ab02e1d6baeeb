// Package manifest reads and writes the per subject/session scans table
// (sub-<s>/ses-<t>/sub-<s>_ses-<t>_scans.tsv) and maintains its
// filename_log column.
package manifest
