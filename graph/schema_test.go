package graph

import (
	"strings"
	"testing"
)

func TestEntityTypeValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.Valid() {
			t.Errorf("%q must be valid", typ)
		}
	}
	if EntityType("widget").Valid() {
		t.Error("unknown type must be invalid")
	}
	if EntityType("Problem").Valid() {
		t.Error("labels are case-sensitive")
	}
}

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		label string
		want  string
		ok    bool
	}{
		{"problem", "problems", true},
		{"stakeholder", "stakeholders", true},
		{"goal", "goals", true},
		{"context", "contexts", true},
		{"requirement", "requirements", true},
		{"artifactClass", "artifactClasses", true},
		{"widget", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CategoryFor(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CategoryFor(%q) = %q, %v; want %q, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCategoriesCoverAllTypes(t *testing.T) {
	categories := Categories()
	if len(categories) != len(Types()) {
		t.Fatalf("expected %d categories, got %d", len(Types()), len(categories))
	}
	seen := make(map[string]bool)
	for _, c := range categories {
		if c == "" || seen[c] {
			t.Errorf("category %q empty or duplicated", c)
		}
		seen[c] = true
	}
}

func TestSchemaText(t *testing.T) {
	text := SchemaText()
	for _, pattern := range []string{
		"(:problem)-[:arisesAt]->(:context)",
		"(:problem)-[:concerns]->(:stakeholder)",
		"(:problem)-[:informs]->(:goal)",
		"(:requirement)-[:meetBy]->(:artifactClass)",
		"(:problem)-[:addressedBy]->(:artifactClass)",
		"(:goal)-[:achievedBy]->(:requirement)",
	} {
		if !strings.Contains(text, pattern) {
			t.Errorf("schema text missing %q:\n%s", pattern, text)
		}
	}
}

func TestEntityValidate(t *testing.T) {
	v := "developers"
	if err := (Entity{Value: &v, Type: Stakeholder}).Validate(); err != nil {
		t.Errorf("valid entity rejected: %v", err)
	}
	if err := (Entity{Type: Problem}).Validate(); err != nil {
		t.Errorf("unbound slot rejected: %v", err)
	}
	if err := (Entity{Value: &v, Type: "widget"}).Validate(); err == nil {
		t.Error("unknown type must be rejected")
	}
	echo := "problem"
	if err := (Entity{Value: &echo, Type: Problem}).Validate(); err == nil {
		t.Error("value echoing the type tag must be rejected")
	}
}

func TestParsedResultEmpty(t *testing.T) {
	r := NewParsedResult()
	if !r.Empty() {
		t.Error("fresh result must be empty")
	}

	r.Entities["problems"]["climate change"] = NodeRecord{}
	if r.Empty() {
		t.Error("result with a node must not be empty")
	}

	r = NewParsedResult()
	r.Others["total"] = 3
	if r.Empty() {
		t.Error("result with an other projection must not be empty")
	}

	r = NewParsedResult()
	r.Relationships = append(r.Relationships, Relationship{From: "a", To: "b", Type: "informs"})
	if r.Empty() {
		t.Error("result with a relationship must not be empty")
	}
}
