// Package overrides loads operator-provided scan to log pairings.
//
// Some buckets cannot be paired automatically: a run restarted twice on
// the same day, a log whose timestamp was typed by hand. The operator
// lists the pairing in a YAML file and the engine writes it into the
// manifest after automatic matching, overwriting whatever was chosen
// for that scan.
package overrides
