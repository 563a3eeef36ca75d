package detection

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/ademnea/beehive-pipeline/internal/models"
	"github.com/pkg/errors"
)

// ErrMissingInput means the payload parsed but carried no usable "input" object.
var ErrMissingInput = errors.New("no 'input' key in payload")

// UsageHint is logged when the payload cannot be parsed.
const UsageHint = `echo '{"input": {"videos": ["sample.mp4"], "timestamp": "2025-06-26T09:12:00Z"}}' | beedetect`

// ParsePayload reads exactly one JSON document from r.
// Syntax and type errors are ErrPayload; a missing or empty input object is ErrMissingInput.
func ParsePayload(r io.Reader) (*models.JobInput, error) {
	var envelope struct {
		Input json.RawMessage `json:"input"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, Wrap(ErrPayload, err, "invalid JSON payload")
	}

	raw := bytes.TrimSpace(envelope.Input)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrMissingInput
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, Wrap(ErrPayload, err, "invalid JSON payload: input must be an object")
	}
	if len(fields) == 0 {
		return nil, ErrMissingInput
	}

	input := &models.JobInput{}
	if err := json.Unmarshal(raw, input); err != nil {
		return nil, Wrap(ErrPayload, err, "invalid JSON payload")
	}
	return input, nil
}
