package behavlog

import (
	"path/filepath"
	"sort"

	"eventsync/internal/services"
)

// Discover lists every extracted log under root/sourcedata/*/logs/*/ whose
// name looks like a delimited table (*_*sv).
func Discover(root string) ([]string, error) {
	pattern := filepath.Join(root, "sourcedata", "*", "logs", "*", "*_*sv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "behavlog", "discover", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
