// Package behavlog reads the address and creation time that the stimulus
// presentation software encodes into each behavioral log filename.
//
// A log is named sub-<x>_ses-<y>_[run-<n>_]<task>_..._YYYY_MM_DD_HHMM[_events].csv
// and lives under sourcedata/<session>/logs/<subject>/ once extracted.
package behavlog
