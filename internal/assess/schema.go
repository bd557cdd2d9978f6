package assess

import (
	"encoding/json"
	"fmt"
	"strings"

	"questlog/internal/models"
)

// CheckpointInput is what the service sees for each open checkpoint.
type CheckpointInput struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	CurrentProgress int    `json:"currentProgress"`
}

// Suggestion is the service's verdict for one checkpoint.
type Suggestion struct {
	CheckpointID string   `json:"checkpointId"`
	NewProgress  int      `json:"newProgress"`
	Reasoning    string   `json:"reasoning"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// payload is the full response shape.
type payload struct {
	Checkpoints []Suggestion `json:"checkpoints"`
}

// ResponseSchema is the JSON schema every assessment response must satisfy.
func ResponseSchema() *Schema {
	return &Schema{
		Name: "commit-assessment",
		Definition: map[string]any{
			"type":                 "object",
			"required":             []any{"checkpoints"},
			"additionalProperties": false,
			"properties": map[string]any{
				"checkpoints": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"required":             []any{"checkpointId", "newProgress", "reasoning"},
						"additionalProperties": false,
						"properties": map[string]any{
							"checkpointId": map[string]any{"type": "string"},
							"newProgress": map[string]any{
								"type":    "integer",
								"minimum": 0,
								"maximum": 100,
							},
							"reasoning": map[string]any{
								"type":      "string",
								"minLength": 1,
							},
							"confidence": map[string]any{
								"type":    "number",
								"minimum": 0,
								"maximum": 1,
							},
						},
					},
				},
			},
		},
	}
}

const systemPrompt = `You assess daily progress reports against a list of ` +
	`checkpoints. For each checkpoint the report provides evidence about, ` +
	`suggest an updated completion percentage (0-100) with a one or two ` +
	`sentence justification. Only include checkpoints the report actually ` +
	`speaks to. Never lower a percentage out of doubt alone; if the report ` +
	`shows no progress on a checkpoint, omit it.`

// BuildRequest assembles the assessment request for one commit and its open
// checkpoints.
func BuildRequest(commit *models.Commit, checkpoints []models.Checkpoint) (Request, error) {
	inputs := make([]CheckpointInput, len(checkpoints))
	for i, cp := range checkpoints {
		inputs[i] = CheckpointInput{
			ID:              cp.ID,
			Title:           cp.Title,
			Description:     cp.Description,
			CurrentProgress: cp.Progress,
		}
	}
	encoded, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return Request{}, fmt.Errorf("assess: marshal checkpoints: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Progress report for %s:\n\n%s\n\n", commit.CommitDate, commit.Content)
	fmt.Fprintf(&b, "Open checkpoints:\n%s\n", encoded)

	return Request{
		System:    systemPrompt,
		Prompt:    b.String(),
		Schema:    ResponseSchema(),
		MaxTokens: 2048,
	}, nil
}

// parsePayload decodes a validated response body.
func parsePayload(raw json.RawMessage) (*payload, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &p, nil
}
