package tasks

import (
	"context"
	"fmt"

	"github.com/avilagarcia/graphqa/graph"
)

const extractSystemPrompt = "You are an expert entity extractor for scientific knowledge graphs. Extract only entities that are clearly present or directly implied. Do not invent entities."

const extractPromptFormat = `# TASK
Extract relevant entities from the question. You must understand the user's intention. Understand which entities will give the user the answer they want. If there is no question, return an empty list.

# ENTITY TYPES
- problem: a challenge or issue (e.g. lack of traceability)
- stakeholder: person or group affected or interested (e.g. developers)
- goal: an objective or desired outcome (e.g. improve maintainability)
- context: domain or situation (e.g. safety-critical systems)
- requirement: specific need or condition
- artifactClass: type of technical solution to a problem (e.g. feature model)

# RELATIONSHIPS
%s
# FORMAT
A JSON object {"entities": [...]} where each element has: value, type, embedding (always null). Mark what the user wants to know with a null value. value and type can never be the same text.

# POSITIVE EXAMPLES
Question: What problems do developers face?
{"entities": [{"value": "developers", "type": "stakeholder", "embedding": null}, {"value": null, "type": "problem", "embedding": null}]}
Question: How can we fix the problem of climate change?
{"entities": [{"value": "climate change", "type": "problem", "embedding": null}, {"value": null, "type": "artifactClass", "embedding": null}]}
Question: What problems are solved by the same artifact?
{"entities": [{"value": null, "type": "problem", "embedding": null}, {"value": null, "type": "artifactClass", "embedding": null}]}
Question: How many stakeholders are affected by the lack of software evolution history?
{"entities": [{"value": "lack of software evolution history", "type": "problem", "embedding": null}, {"value": null, "type": "stakeholder", "embedding": null}]}
Question: What problems are there in the database?
{"entities": [{"value": null, "type": "problem", "embedding": null}]}
# NEGATIVE EXAMPLE
Question: What's the weather today?
{"entities": []}

# QUESTION
%s`

// ExtractEntities pulls typed entity mentions out of a validated question.
// A question with no matching concepts yields an empty list, not an error.
func (t *Tasks) ExtractEntities(ctx context.Context, question string) ([]graph.Entity, float64, error) {
	prompt := fmt.Sprintf(extractPromptFormat, graph.SchemaText(), question)

	var result struct {
		Entities []graph.Entity `json:"entities"`
	}
	cost, err := t.llm.GenerateStructured(ctx, extractSystemPrompt, prompt, t.models.Extraction, 0, &result)
	if err != nil {
		return nil, cost, fmt.Errorf("extracting entities: %w", err)
	}

	for _, e := range result.Entities {
		if err := e.Validate(); err != nil {
			return nil, cost, fmt.Errorf("extracted entity rejected: %w", err)
		}
	}
	return result.Entities, cost, nil
}
