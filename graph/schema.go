// Package graph defines the domain model of the knowledge graph: the closed
// set of node types, the fixed relationship schema between them, and the
// record types that query results are normalized into.
package graph

import "fmt"

// EntityType is a node label in the knowledge graph. The set is closed:
// queries and normalization only ever deal with these six types.
type EntityType string

const (
	Problem       EntityType = "problem"
	Stakeholder   EntityType = "stakeholder"
	Goal          EntityType = "goal"
	Context       EntityType = "context"
	Requirement   EntityType = "requirement"
	ArtifactClass EntityType = "artifactClass"
)

// Types returns all known entity types in declaration order.
func Types() []EntityType {
	return []EntityType{Problem, Stakeholder, Goal, Context, Requirement, ArtifactClass}
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case Problem, Stakeholder, Goal, Context, Requirement, ArtifactClass:
		return true
	}
	return false
}

// categoryNames maps a node label to the plural category key used when
// grouping normalized results.
var categoryNames = map[EntityType]string{
	Problem:       "problems",
	Stakeholder:   "stakeholders",
	Goal:          "goals",
	Context:       "contexts",
	Requirement:   "requirements",
	ArtifactClass: "artifactClasses",
}

// CategoryFor maps a raw node label to its category key. Unknown labels
// return ok=false and contribute nothing to normalized results.
func CategoryFor(label string) (string, bool) {
	name, ok := categoryNames[EntityType(label)]
	return name, ok
}

// Categories returns the category keys for all entity types, in type order.
func Categories() []string {
	types := Types()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = categoryNames[t]
	}
	return out
}

// RelationshipRule is one directed edge kind of the fixed graph schema.
type RelationshipRule struct {
	Source EntityType
	Target EntityType
	Type   string
}

// Schema is the complete set of edge kinds the graph carries. Result
// normalization reconstructs relationships from this table and nothing else.
var Schema = []RelationshipRule{
	{Problem, Context, "arisesAt"},
	{Problem, Stakeholder, "concerns"},
	{Problem, Goal, "informs"},
	{Requirement, ArtifactClass, "meetBy"},
	{Problem, ArtifactClass, "addressedBy"},
	{Goal, Requirement, "achievedBy"},
}

// SchemaText renders the schema in Cypher pattern notation for prompts.
func SchemaText() string {
	var s string
	for _, r := range Schema {
		s += fmt.Sprintf("(:%s)-[:%s]->(:%s)\n", r.Source, r.Type, r.Target)
	}
	return s
}

func init() {
	// The schema and category tables are literal; make a malformed edit fail
	// at process start instead of silently dropping relationships.
	for _, r := range Schema {
		if !r.Source.Valid() || !r.Target.Valid() || r.Type == "" {
			panic(fmt.Sprintf("graph: invalid schema rule %+v", r))
		}
	}
	for _, t := range Types() {
		if _, ok := categoryNames[t]; !ok {
			panic(fmt.Sprintf("graph: entity type %q has no category name", t))
		}
	}
}
