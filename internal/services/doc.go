// Package services defines the shared error vocabulary used by the
// collaborators eventsync drives: the dataset manager, the archive extractor,
// and the layout provider.
//
// Failures are tagged with marker errors through Wrap so callers can decide
// between "needs an operator" (validation, configuration, not found) and
// "tool failure" without parsing messages.
package services
