package registry

import (
	"time"

	"github.com/recipeshelf/import-service/internal/recipes"
)

// Status is the lifecycle state of an import job
type Status string

// Job status constants. Checking may resolve directly to Complete when the
// URL is already known (dedup fast path); Extracting and Saving are skipped.
const (
	StatusChecking   Status = "checking"
	StatusExtracting Status = "extracting"
	StatusSaving     Status = "saving"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether s permits no further transitions
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Job is one extraction attempt, tracked from submission to terminal state
type Job struct {
	ID             string
	URL            string
	UserID         string
	CollectionID   string
	CollectionName string
	Status         Status
	Progress       float64
	Message        string
	Tier           string
	ResultID       string
	ResultTitle    string
	ErrorMessage   string
	Result         *recipes.Recipe
	CreatedAt      time.Time
}
