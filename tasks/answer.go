package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/avilagarcia/graphqa/graph"
)

const answerSystemPrompt = `You are an expert assistant that answers questions based strictly on structured graph data.
Use only the information provided.
Answer only what you are asked, no need to add any more information, even if the context has it.
Do not make assumptions or fabricate details.
If the graph does not provide enough information, say so clearly.
Provide answers that are technically accurate and well-organized.
Do not give explanations about the system, database or how the context you were given is structured.
Be flexible with the way you use the information provided, if you are asked about X, you can extract the information you need from the context without using all of it.`

// GenerateAnswer renders the normalized graph context into a prompt and asks
// the model for the final natural-language answer.
func (t *Tasks) GenerateAnswer(ctx context.Context, question string, result *graph.ParsedResult) (string, float64, error) {
	prompt := EnrichPrompt(question, result)
	answer, cost, err := t.llm.Generate(ctx, answerSystemPrompt, prompt, t.models.Answer, 0.7)
	if err != nil {
		return "", cost, fmt.Errorf("generating answer: %w", err)
	}
	return answer, cost, nil
}

// EnrichPrompt renders a ParsedResult deterministically: one block per
// non-empty category, one line per relationship, one line per extra
// projection. Categories follow schema order; nodes are sorted by name.
func EnrichPrompt(question string, result *graph.ParsedResult) string {
	var nodeBlocks []string
	for _, category := range graph.Categories() {
		nodes := result.Entities[category]
		if len(nodes) == 0 {
			continue
		}
		nodeBlocks = append(nodeBlocks, "### "+strings.ToUpper(category))

		names := make([]string, 0, len(nodes))
		for name := range nodes {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			data := nodes[name]
			nodeBlocks = append(nodeBlocks, fmt.Sprintf("-**%s(%s;%s)**: %s [%s]",
				name, data.AlternativeName, data.Hypernym, data.Description,
				strings.Join(data.Labels, ", ")))
		}
	}

	relLines := make([]string, len(result.Relationships))
	for i, rel := range result.Relationships {
		relLines[i] = fmt.Sprintf("- %s --[%s]--> %s", rel.From, rel.Type, rel.To)
	}

	otherKeys := make([]string, 0, len(result.Others))
	for key := range result.Others {
		otherKeys = append(otherKeys, key)
	}
	sort.Strings(otherKeys)
	othLines := make([]string, len(otherKeys))
	for i, key := range otherKeys {
		othLines[i] = fmt.Sprintf("-%s: %v", key, result.Others[key])
	}

	return fmt.Sprintf(`Use the following information to answer the question. Keep in mind that this information was processed beforehand to remove duplicate information, so inaccuracies can happen in the Others section when talking about quantities.

### QUESTION
%s

### ENTITIES
%s

### RELATIONSHIPS
%s

### OTHERS
%s
`, question, strings.Join(nodeBlocks, "\n"), strings.Join(relLines, "\n"), strings.Join(othLines, "\n"))
}
