// Package ground maps extracted entities onto concrete graph nodes by
// nearest-neighbor search over stored embeddings, and normalizes raw graph
// query rows into categorized entities, relationships, and leftovers.
package ground

import (
	"fmt"

	"github.com/avilagarcia/graphqa/graph"
	"github.com/avilagarcia/graphqa/store"
)

const (
	// DefaultThreshold is the minimum cosine similarity for a node to count
	// as a match for an entity mention.
	DefaultThreshold = 0.6

	// DefaultTopK caps how many similar nodes are kept per entity.
	DefaultTopK = 3
)

// similarityQueries builds one typed nearest-neighbor query per entity,
// constrained to the node label matching the entity's declared type.
func similarityQueries(entities []graph.Entity, threshold float64, topK int) []store.Query {
	queries := make([]store.Query, len(entities))
	for i, e := range entities {
		text := fmt.Sprintf(`
		WITH $embedding AS embedding
		MATCH (n:%s)
		WHERE n.embedding IS NOT NULL
		WITH n, gds.similarity.cosine(embedding, n.embedding) AS similarity
		WHERE similarity >= %g
		RETURN DISTINCT n.name AS name, similarity, labels(n) AS labels
		ORDER BY similarity DESC
		LIMIT %d
		`, e.Type, threshold, topK)
		queries[i] = store.Query{
			Text:   text,
			Params: map[string]any{"embedding": e.Embedding},
		}
	}
	return queries
}

// similarityQueriesNoLabel builds the untyped retry variant: the same search
// across all node labels, used when an entity's own type produced no hits.
func similarityQueriesNoLabel(entities []graph.Entity, threshold float64, topK int) []store.Query {
	queries := make([]store.Query, len(entities))
	for i, e := range entities {
		text := fmt.Sprintf(`
		WITH $embedding AS embedding
		MATCH (n)
		WHERE n.embedding IS NOT NULL
		WITH n, gds.similarity.cosine(embedding, n.embedding) AS similarity
		WHERE similarity >= %g
		RETURN DISTINCT n.name AS name, similarity, labels(n) AS labels
		ORDER BY similarity DESC
		LIMIT %d
		`, threshold, topK)
		queries[i] = store.Query{
			Text:   text,
			Params: map[string]any{"embedding": e.Embedding},
		}
	}
	return queries
}

// parseSimilarity groups matched node names by the first label of each hit.
func parseSimilarity(rows []map[string]any) map[string][]string {
	parsed := make(map[string][]string)
	for _, row := range rows {
		labels := anyStrings(row["labels"])
		if len(labels) == 0 {
			continue
		}
		name, ok := row["name"].(string)
		if !ok || name == "" {
			continue
		}
		primary := labels[0]
		parsed[primary] = append(parsed[primary], name)
	}
	return parsed
}

// anyStrings converts a driver-provided list value into []string.
func anyStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
