// Package logs reads back the eventsync log file for `eventsync logs`.
//
// Tail returns the last N lines or everything after a byte offset and can
// wait for new lines in follow mode. Filter narrows lines to one run or
// subject and understands both the console and the JSON log format.
package logs
