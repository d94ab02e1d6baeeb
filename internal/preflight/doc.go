// Package preflight provides readiness checks for the dataset, the state
// directory and the external tools eventsync depends on.
//
// These checks run in two contexts:
//   - The run command calls RunAll before taking the dataset lock and
//     refuses to start when a check fails.
//   - The CLI "eventsync status" command uses the individual checks and
//     InspectDataset to display readiness.
//
// Tool checks are gated by the configured dataset manager.
package preflight
