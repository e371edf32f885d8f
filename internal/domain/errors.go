package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by division, contestant, and title lookups.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a single match during ingestion. The batch
// continues; the rejection lands in the anomaly report.
type ValidationError struct {
	Division string
	Detail   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid match in %q: %s", e.Division, e.Detail)
}

// ConsistencyError means record sums did not reconcile after a rebuild.
// It is fatal to the reload; the previous snapshot stays published.
type ConsistencyError struct {
	Division   string
	Contestant string
	Detail     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency check failed for %q in %q: %s", e.Contestant, e.Division, e.Detail)
}
