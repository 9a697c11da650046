package ground

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avilagarcia/graphqa/graph"
)

// Normalize turns flat graph query rows into a ParsedResult: nodes grouped
// by category and keyed by name, relationships reconstructed from the fixed
// schema, and any remaining projections under Others.
//
// Node deduplication is first-occurrence-wins: when two rows describe the
// same node name with differing fields, whichever the store returned first
// is kept. Row order is the store's to choose, so ties are not deterministic.
func Normalize(rows []map[string]any) *graph.ParsedResult {
	result := graph.NewParsedResult()
	seenRels := make(map[graph.Relationship]bool)

	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := row[key]

			// Projections that are neither node attributes nor label sets
			// (counts, aggregates) land in Others.
			if !strings.Contains(key, ".") && !strings.HasPrefix(key, "labels(") {
				switch v := value.(type) {
				case string:
					result.Others[key] = DedupText(v)
				case []any:
					result.Others[key] = DedupList(v)
				case []string:
					items := make([]any, len(v))
					for i, s := range v {
						items[i] = s
					}
					result.Others[key] = DedupList(items)
				default:
					result.Others[key] = value
				}
				continue
			}

			// A ".name" key identifies an aliased node; gather its sibling
			// attributes from the same row.
			if !strings.HasSuffix(key, ".name") {
				continue
			}
			alias := strings.SplitN(key, ".", 2)[0]
			name, ok := value.(string)
			if !ok || name == "" {
				continue
			}

			desc := rowString(row, alias+".description")
			hyper := rowString(row, alias+".hypernym")
			alt := rowString(row, alias+".alternativeName")
			labels := anyStrings(row["labels("+alias+")"])

			for _, label := range labels {
				category, known := graph.CategoryFor(label)
				if !known {
					continue
				}
				if _, exists := result.Entities[category][name]; exists {
					continue
				}
				record := graph.NodeRecord{
					Description: DedupText(desc),
					Hypernym:    DedupText(hyper),
					Labels:      labels,
				}
				if alt != "" {
					record.AlternativeName = DedupText(alt)
				}
				result.Entities[category][name] = record
			}
		}

		addRelationships(row, seenRels, result)
	}

	return result
}

// addRelationships reconstructs schema edges between the aliased nodes of a
// single row and appends globally-unique ones to the result.
func addRelationships(row map[string]any, seen map[graph.Relationship]bool, result *graph.ParsedResult) {
	type aliased struct {
		alias string
		label string
	}
	var aliases []aliased
	for key := range row {
		if !strings.HasSuffix(key, ".name") {
			continue
		}
		alias := strings.SplitN(key, ".", 2)[0]
		for _, label := range anyStrings(row["labels("+alias+")"]) {
			if _, known := graph.CategoryFor(label); known {
				aliases = append(aliases, aliased{alias: alias, label: label})
			}
		}
	}
	sort.Slice(aliases, func(i, j int) bool { return aliases[i].alias < aliases[j].alias })

	for _, rule := range graph.Schema {
		for _, src := range aliases {
			if src.label != string(rule.Source) {
				continue
			}
			for _, tgt := range aliases {
				if tgt.label != string(rule.Target) || tgt.alias == src.alias {
					continue
				}
				srcName, _ := row[src.alias+".name"].(string)
				tgtName, _ := row[tgt.alias+".name"].(string)
				if srcName == "" || tgtName == "" {
					continue
				}
				rel := graph.Relationship{From: srcName, To: tgtName, Type: rule.Type}
				if seen[rel] {
					continue
				}
				seen[rel] = true
				result.Relationships = append(result.Relationships, rel)
			}
		}
	}
}

// DedupText removes duplicate semicolon-separated segments from a string.
// Comparison is case-insensitive; the first-seen casing wins. Idempotent.
func DedupText(text string) string {
	seen := make(map[string]bool)
	var parts []string
	for _, part := range strings.Split(text, ";") {
		cleaned := strings.TrimSpace(part)
		key := strings.ToLower(cleaned)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, cleaned)
	}
	return strings.Join(parts, "; ")
}

// DedupList removes duplicates from a list, cleaning each element with
// DedupText first. Order-preserving, case-insensitive, first casing wins.
func DedupList(items []any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		cleaned := strings.TrimSpace(DedupText(fmt.Sprint(item)))
		key := strings.ToLower(cleaned)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, cleaned)
	}
	return out
}

func rowString(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return s
}
