package graph

import "fmt"

// Entity is a typed mention extracted from a user question. A nil Value marks
// the unbound slot: "return nodes of this type unconstrained". Embedding is
// attached exactly once by the embedding gate and never touched again.
type Entity struct {
	Value     *string    `json:"value"`
	Type      EntityType `json:"type"`
	Embedding []float32  `json:"embedding"`
}

// HasValue reports whether the entity carries a concrete mention.
func (e Entity) HasValue() bool {
	return e.Value != nil
}

// Validate rejects entities whose type falls outside the closed enum or
// whose value is just the type tag echoed back by the model.
func (e Entity) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown entity type %q", e.Type)
	}
	if e.Value != nil && *e.Value == string(e.Type) {
		return fmt.Errorf("entity value %q duplicates its type tag", *e.Value)
	}
	return nil
}

// Question is a user question after validation. Value carries the
// orthographically corrected text; Reasoning explains a rejection.
type Question struct {
	Value     string `json:"value"`
	IsValid   bool   `json:"is_valid"`
	Reasoning string `json:"reasoning"`
}

// NodeRecord holds the projected attributes of one graph node. Name is the
// identity within a category and lives as the map key in ParsedResult.
type NodeRecord struct {
	Description     string   `json:"description"`
	Hypernym        string   `json:"hypernym"`
	AlternativeName string   `json:"alternativeName,omitempty"`
	Labels          []string `json:"labels"`
}

// Relationship is one reconstructed edge between two named nodes.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// ParsedResult is the normalized form of a graph query's flat rows: entities
// grouped by category and keyed by name, deduplicated relationships, and any
// extra projections (counts, aggregates) under Others. Built fresh per
// request; the answer synthesizer is its only consumer.
type ParsedResult struct {
	Entities      map[string]map[string]NodeRecord `json:"entities"`
	Relationships []Relationship                   `json:"relationships"`
	Others        map[string]any                   `json:"others"`
}

// NewParsedResult returns a ParsedResult with every category present and empty.
func NewParsedResult() *ParsedResult {
	entities := make(map[string]map[string]NodeRecord, len(categoryNames))
	for _, name := range Categories() {
		entities[name] = make(map[string]NodeRecord)
	}
	return &ParsedResult{
		Entities: entities,
		Others:   make(map[string]any),
	}
}

// Empty reports whether the result carries no entities, relationships or
// other projections at all.
func (r *ParsedResult) Empty() bool {
	for _, nodes := range r.Entities {
		if len(nodes) > 0 {
			return false
		}
	}
	return len(r.Relationships) == 0 && len(r.Others) == 0
}
