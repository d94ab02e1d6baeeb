// Package main hosts the eventsync CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, sets up structured
// logging and hands off to the internal packages: archive extraction,
// the reconciliation engine, direct copy mode and the run ledger. Keep
// this package lean; new behavior belongs in internal/ first.
package main
