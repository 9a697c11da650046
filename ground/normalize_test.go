package ground

import (
	"reflect"
	"testing"

	"github.com/avilagarcia/graphqa/graph"
)

func TestNormalizeGroupsNodesByCategory(t *testing.T) {
	rows := []map[string]any{
		{
			"p.name":        "climate change",
			"p.description": "rising global temperatures",
			"p.hypernym":    "environmental problem",
			"labels(p)":     []any{"problem"},
			"a.name":        "carbon capture",
			"a.description": "removes CO2 from the atmosphere",
			"a.hypernym":    "mitigation technology",
			"labels(a)":     []any{"artifactClass"},
		},
	}

	result := Normalize(rows)

	problem, ok := result.Entities["problems"]["climate change"]
	if !ok {
		t.Fatal("expected problem node under problems category")
	}
	if problem.Description != "rising global temperatures" {
		t.Errorf("unexpected description: %q", problem.Description)
	}
	if _, ok := result.Entities["artifactClasses"]["carbon capture"]; !ok {
		t.Fatal("expected artifact node under artifactClasses category")
	}

	// (problem)-[:addressedBy]->(artifactClass) is a schema edge, so the
	// relationship must be reconstructed from the row.
	want := graph.Relationship{From: "climate change", To: "carbon capture", Type: "addressedBy"}
	if len(result.Relationships) != 1 || result.Relationships[0] != want {
		t.Errorf("relationships = %v, want [%v]", result.Relationships, want)
	}
}

func TestNormalizeFirstOccurrenceWins(t *testing.T) {
	rows := []map[string]any{
		{
			"p.name":        "climate change",
			"p.description": "first description",
			"labels(p)":     []any{"problem"},
		},
		{
			"p.name":        "climate change",
			"p.description": "second description",
			"labels(p)":     []any{"problem"},
		},
	}

	result := Normalize(rows)
	got := result.Entities["problems"]["climate change"].Description
	if got != "first description" {
		t.Errorf("description = %q, want first occurrence kept", got)
	}
}

func TestNormalizeIgnoresUnknownLabels(t *testing.T) {
	rows := []map[string]any{
		{
			"x.name":        "mystery",
			"x.description": "unknown kind of node",
			"labels(x)":     []any{"widget"},
		},
	}

	result := Normalize(rows)
	if !result.Empty() {
		t.Errorf("unknown label must contribute nothing, got %+v", result)
	}
}

func TestNormalizeCollectsOthers(t *testing.T) {
	rows := []map[string]any{
		{
			"total":     int64(7),
			"summaries": []any{"Security", "security", "Efficiency"},
		},
	}

	result := Normalize(rows)
	if result.Others["total"] != int64(7) {
		t.Errorf("total = %v, want 7", result.Others["total"])
	}
	want := []string{"Security", "Efficiency"}
	if !reflect.DeepEqual(result.Others["summaries"], want) {
		t.Errorf("summaries = %v, want %v", result.Others["summaries"], want)
	}
}

func TestNormalizeDeduplicatesRelationshipsAcrossRows(t *testing.T) {
	row := map[string]any{
		"p.name":    "climate change",
		"labels(p)": []any{"problem"},
		"g.name":    "reduce emissions",
		"labels(g)": []any{"goal"},
	}
	result := Normalize([]map[string]any{row, row})

	if len(result.Relationships) != 1 {
		t.Errorf("expected one deduplicated relationship, got %v", result.Relationships)
	}
}

func TestNormalizeRequiresDistinctAliases(t *testing.T) {
	// A single alias cannot relate to itself even if its label appears on
	// both ends of a schema rule.
	rows := []map[string]any{
		{
			"p.name":    "climate change",
			"labels(p)": []any{"problem", "goal"},
		},
	}
	result := Normalize(rows)
	if len(result.Relationships) != 0 {
		t.Errorf("expected no self relationships, got %v", result.Relationships)
	}
}

func TestDedupText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"case-insensitive", "A; a; B; b", "A; B"},
		{"keeps first casing", "Security; security", "Security"},
		{"trims segments", "  one ;two ; one", "one; two"},
		{"single segment", "just one", "just one"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupText(tt.in); got != tt.want {
				t.Errorf("DedupText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDedupTextIdempotent(t *testing.T) {
	in := "A; a; B; b; C"
	once := DedupText(in)
	if twice := DedupText(once); once != twice {
		t.Errorf("DedupText not idempotent: %q != %q", once, twice)
	}
}

func TestDedupList(t *testing.T) {
	got := DedupList([]any{"Security", "security", "Efficiency", "", "efficiency"})
	want := []string{"Security", "Efficiency"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupList = %v, want %v", got, want)
	}
}
