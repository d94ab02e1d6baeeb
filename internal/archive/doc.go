// Package archive copies behavioral logs out of the per-session zip archives
// under sourcedata/<session>/<subject>_*.zip.
//
// Extractor stages every log of a subject/session into
// sourcedata/<session>/logs/<subject>/ for matching. CopyEvents is the
// direct mode for datasets without repeated runs, where each events file
// receives the single archive member matching a pattern.
package archive
