package models

// JobInput is the "input" object of the JSON payload read from stdin.
type JobInput struct {
	Videos []string `json:"videos"`
	// Timestamp is informational only.
	Timestamp string `json:"timestamp,omitempty"`
}
