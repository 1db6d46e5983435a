package workflow

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a workflow document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

//go:embed schema/workflow.json
var documentSchema string

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// FormatFromPath guesses the document format from a file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}

	return FormatYAML
}

// ParseFormat parses a user supplied format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported workflow document format %q", name)
	}
}

// ParseDocument decodes a workflow document and checks it against the document schema.
// Schema violations are reported together as a ValidationError; the returned workflow still
// has to go through Prepare before it can be stored.
func ParseDocument(data []byte, format Format) (*models.Workflow, error) {
	var document any

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("failed to decode JSON workflow document: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("failed to decode YAML workflow document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported workflow document format %q", format)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to validate workflow document: %w", err)
	}

	if !result.Valid() {
		problems := make([]Problem, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			problems = append(problems, Problem{
				Field:   resultErr.Field(),
				Code:    resultErr.Type(),
				Message: resultErr.Description(),
			})
		}

		return nil, NewValidationError(problems...)
	}

	normalized, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode workflow document: %w", err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(normalized, &workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow document: %w", err)
	}

	return &workflow, nil
}
