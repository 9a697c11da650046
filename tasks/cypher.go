package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/avilagarcia/graphqa/graph"
	"github.com/avilagarcia/graphqa/ground"
)

const cypherSystemPrompt = "You are a Cypher query generator for a scientific knowledge graph. You create queries based on the user's question and available nodes given to you. You are only allowed to read the database, you cannot modify it."

const cypherPromptFormat = `# TASK
You are given a question and a set of relevant node types with optional filters.
Generate a syntactically and semantically correct Cypher query using the schema, following the rules and examples below. Follow the schema relationships strictly.
If there is no question or the available nodes object is empty, return an empty string with no query.

# GRAPH SCHEMA
%s
# RULES
1. Always use entity types as labels, e.g. (p:problem).
2. For each entry in AVAILABLE NODES:
- If the value is a list, use ` + "`name IN [...]`" + `
- If the value is null, filter with ` + "`name IS NOT NULL`" + `
- If multiple nodes of the same type are needed, use aliases like p1, p2 and require p1 <> p2.
3. Always use ` + "`WITH DISTINCT`" + ` to eliminate duplicates before RETURN with related nodes.
4. If the question asks about general information, relationships may not be needed.
5. Use ` + "`LIMIT`" + ` only when relevant.
6. Always return: ` + "`name`, `description`, `hypernym`, `alternativeName` and `labels(...)`" + ` for all nodes involved. For queries that need COUNT or other functions, you can add those functions as extra.
7. Do not rename output fields. Maintain standard Cypher return format.
8. Only generate the Cypher query. Do not add comments or explanations.
9. You can traverse the graph to look for related ideas. Use all schema relationships that apply.
10. If the question requires modifying the database, return an empty string of "".

# EXAMPLES
Q: What problems are solved by the same artifact?
AVAILABLE NODES: {"problem": null, "artifactClass": null}
->
MATCH (p1:problem)-[:addressedBy]->(a:artifactClass)<-[:addressedBy]-(p2:problem)
WHERE p1.name IS NOT NULL AND a.name IS NOT NULL AND p2.name IS NOT NULL AND p1 <> p2
WITH DISTINCT p1, a, p2
RETURN p1.name, p1.description, p1.hypernym, p1.alternativeName, labels(p1),
    p2.name, p2.description, p2.hypernym, p2.alternativeName, labels(p2),
    a.name, a.description, a.hypernym, a.alternativeName, labels(a)

Q: I want to know more about feature dependencies
AVAILABLE NODES: {"artifactClass": ["feature dependency analysis approach"], "requirement": ["capture feature dependencies"]}
->
MATCH (a:artifactClass)
WHERE a.name IN ['feature dependency analysis approach']
MATCH (r:requirement)
WHERE r.name IN ['capture feature dependencies']
RETURN r.name, r.description, r.hypernym, r.alternativeName, labels(r),
    a.name, a.description, a.hypernym, a.alternativeName, labels(a)

# QUESTION
%s

# AVAILABLE NODES
%s`

// GenerateCypher synthesizes one read-only Cypher query from the question
// and the grounded node filter. An empty question or empty filter yields an
// empty query without spending a call; the model is also instructed to
// return an empty string for implied mutations.
func (t *Tasks) GenerateCypher(ctx context.Context, question string, filter ground.NodeFilter) (string, float64, error) {
	if strings.TrimSpace(question) == "" || len(filter) == 0 {
		return "", 0, nil
	}

	nodes, err := json.Marshal(filter)
	if err != nil {
		return "", 0, fmt.Errorf("rendering node filter: %w", err)
	}

	prompt := fmt.Sprintf(cypherPromptFormat, graph.SchemaText(), question, string(nodes))
	raw, cost, err := t.llm.Generate(ctx, cypherSystemPrompt, prompt, t.models.Cypher, 0)
	if err != nil {
		return "", cost, fmt.Errorf("generating cypher: %w", err)
	}
	return cleanCypher(raw), cost, nil
}

// cleanCypher strips markdown fences and surrounding whitespace from the
// model's query text.
func cleanCypher(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```cypher")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return strings.Trim(s, `"`)
}

// mutatingKeywords rejects any clause that could write to the graph.
var mutatingKeywords = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH|LOAD)\b`)

// CheckQueryFormat verifies the structural properties a synthesized query
// must have before execution: a pattern-match clause, a projection clause,
// balanced parentheses, and no mutating keyword.
func CheckQueryFormat(query string) error {
	upper := strings.ToUpper(query)
	if !strings.Contains(upper, "MATCH") {
		return fmt.Errorf("query has no pattern-match clause")
	}
	if !strings.Contains(upper, "RETURN") {
		return fmt.Errorf("query has no projection clause")
	}
	depth := 0
	for _, r := range query {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("query has unbalanced parentheses")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("query has unbalanced parentheses")
	}
	if m := mutatingKeywords.FindString(query); m != "" {
		return fmt.Errorf("query contains mutating clause %q", strings.ToUpper(m))
	}
	return nil
}
