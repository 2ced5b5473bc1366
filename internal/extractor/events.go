package extractor

import (
	"encoding/json"

	"github.com/recipeshelf/import-service/internal/recipes"
)

// Stream event names emitted by the extraction service. Some transports
// deliver events without a name; those carry their own "type" discriminator
// in the payload instead.
const (
	eventOpen     = "open"
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

// Messages surfaced for the protocol-level failure modes
const (
	msgConnected        = "Connected, starting extraction..."
	msgClosed           = "connection closed unexpectedly"
	msgTimedOut         = "extraction timed out"
	msgExtractionFailed = "Extraction failed"
	msgNoRecipe         = "No recipe found"
)

type progressPayload struct {
	Type    string  `json:"type"`
	Message string  `json:"message"`
	Percent float64 `json:"percent"`
	Tier    string  `json:"tier"`
}

type completePayload struct {
	Type   string          `json:"type"`
	Recipe *recipes.Recipe `json:"recipe"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// eventType extracts the payload's own discriminator for unnamed events
func eventType(data []byte) string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.Type
}
