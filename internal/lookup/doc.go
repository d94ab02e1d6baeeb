// Package lookup groups events files and behavioral logs by their
// (session, subject, task, run) address.
//
// Both indexes are rebuilt from scratch on every invocation and are passed
// explicitly to the matcher; nothing here is shared mutable state. Run 0 is
// the sentinel for "numbering not trusted" and collects every record of a
// (session, subject, task) whose run number came from conversion rather than
// acquisition.
package lookup
