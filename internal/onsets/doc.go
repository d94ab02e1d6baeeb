// Package onsets rewrites a behavioral log into the canonical events table
// (onset, duration, trial_type and, for priming logs, modality).
//
// Three log layouts are understood. Logs that already carry onset,
// duration and trial_type are copied through. Logs with t_start/t_stop get
// onsets and durations computed and rounded to two decimals, with the trial
// type taken from trial_type, num+mod or condition+truth. Priming logs keep
// only stimulus trials, take the earliest target start/stop per trial and
// classify each trial as prime or nonprime.
package onsets
