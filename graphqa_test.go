package graphqa

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/avilagarcia/graphqa/audit"
	"github.com/avilagarcia/graphqa/graph"
	"github.com/avilagarcia/graphqa/ground"
)

// fakeTasks implements taskRunner with overridable behavior and call counts.
type fakeTasks struct {
	validateCalls int
	extractCalls  int
	embedCalls    int
	cypherCalls   int
	answerCalls   int

	validateFn func(question string) (graph.Question, float64, error)
	cypherFn   func(question string, filter ground.NodeFilter) (string, float64, error)
	answerFn   func(question string, result *graph.ParsedResult) (string, float64, error)
}

func (f *fakeTasks) ValidateQuestion(ctx context.Context, question string) (graph.Question, float64, error) {
	f.validateCalls++
	if f.validateFn != nil {
		return f.validateFn(question)
	}
	return graph.Question{Value: question, IsValid: true}, 0.001, nil
}

func (f *fakeTasks) ExtractEntities(ctx context.Context, question string) ([]graph.Entity, float64, error) {
	f.extractCalls++
	v := "climate change"
	return []graph.Entity{
		{Value: &v, Type: graph.Problem},
		{Type: graph.ArtifactClass},
	}, 0.001, nil
}

func (f *fakeTasks) EmbedEntities(ctx context.Context, entities []graph.Entity) ([]graph.Entity, float64, error) {
	f.embedCalls++
	for i := range entities {
		if entities[i].HasValue() {
			entities[i].Embedding = []float32{0.1, 0.2}
		}
	}
	return entities, 0.0001, nil
}

func (f *fakeTasks) GenerateCypher(ctx context.Context, question string, filter ground.NodeFilter) (string, float64, error) {
	f.cypherCalls++
	if f.cypherFn != nil {
		return f.cypherFn(question, filter)
	}
	return "MATCH (p:problem) WHERE p.name IS NOT NULL RETURN p.name, labels(p)", 0.002, nil
}

func (f *fakeTasks) GenerateAnswer(ctx context.Context, question string, result *graph.ParsedResult) (string, float64, error) {
	f.answerCalls++
	if f.answerFn != nil {
		return f.answerFn(question, result)
	}
	return "Climate change is addressed by carbon capture.", 0.003, nil
}

// fakeGrounder implements nodeGrounder.
type fakeGrounder struct {
	calls  int
	filter ground.NodeFilter
	err    error
}

func (f *fakeGrounder) Ground(ctx context.Context, entities []graph.Entity) (ground.NodeFilter, *ground.Trace, error) {
	f.calls++
	if f.err != nil {
		return nil, &ground.Trace{}, f.err
	}
	return f.filter, &ground.Trace{}, nil
}

// fakeDB implements queryRunner.
type fakeDB struct {
	calls int
	rows  []map[string]any
	err   error
}

func (f *fakeDB) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	f.calls++
	return f.rows, f.err
}

func happyRows() []map[string]any {
	return []map[string]any{{
		"p.name":        "climate change",
		"p.description": "rising global temperatures",
		"p.hypernym":    "environmental problem",
		"labels(p)":     []any{"problem"},
	}}
}

func newTestOrchestrator(t *fakeTasks, g *fakeGrounder, db *fakeDB) (*Orchestrator, *bytes.Buffer, *bytes.Buffer) {
	var data, errs bytes.Buffer
	cfg := DefaultConfig()
	o := newOrchestrator(cfg, t, g, db, audit.NewWithWriters(&data, &errs))
	return o, &data, &errs
}

func TestProcessQuestionRejectsPII(t *testing.T) {
	ft := &fakeTasks{}
	o, _, errs := newTestOrchestrator(ft, &fakeGrounder{}, &fakeDB{})

	answer, err := o.ProcessQuestion(context.Background(), "my email is jane@example.com, what problems exist?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Invalid question, contains PII or other unauthorized text, try again." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if ft.validateCalls != 0 {
		t.Error("PII question must not reach the validator")
	}
	if !strings.Contains(errs.String(), "InvalidQuestionPII") {
		t.Error("expected InvalidQuestionPII audit entry")
	}
	if strings.Contains(errs.String(), "jane@example.com") {
		t.Error("audit log must not contain the PII text")
	}
}

func TestProcessQuestionEmptyAfterSanitize(t *testing.T) {
	ft := &fakeTasks{}
	o, _, _ := newTestOrchestrator(ft, &fakeGrounder{}, &fakeDB{})

	answer, err := o.ProcessQuestion(context.Background(), "~~&---")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Invalid question, try again." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if ft.validateCalls != 0 {
		t.Error("empty question must not reach the validator")
	}
}

func TestProcessQuestionInvalidQuestion(t *testing.T) {
	ft := &fakeTasks{
		validateFn: func(q string) (graph.Question, float64, error) {
			return graph.Question{Value: q, IsValid: false, Reasoning: "off-topic"}, 0.001, nil
		},
	}
	o, _, errs := newTestOrchestrator(ft, &fakeGrounder{}, &fakeDB{})

	answer, err := o.ProcessQuestion(context.Background(), "Whats the weather today")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Your question is not valid. Reason: off-topic" {
		t.Errorf("unexpected answer: %q", answer)
	}
	if ft.extractCalls != 0 {
		t.Error("invalid question must not reach extraction")
	}
	if !strings.Contains(errs.String(), "InvalidQuestion") {
		t.Error("expected InvalidQuestion audit entry")
	}
}

func TestProcessQuestionValidationFailure(t *testing.T) {
	ft := &fakeTasks{
		validateFn: func(q string) (graph.Question, float64, error) {
			return graph.Question{}, 0, errors.New("api down")
		},
	}
	o, _, errs := newTestOrchestrator(ft, &fakeGrounder{}, &fakeDB{})

	_, err := o.ProcessQuestion(context.Background(), "What problems exist")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(errs.String(), "ValidationError") {
		t.Error("expected ValidationError audit entry")
	}
}

func TestProcessQuestionHappyPath(t *testing.T) {
	ft := &fakeTasks{}
	fg := &fakeGrounder{filter: ground.NodeFilter{"problem": {"climate change"}, "artifactClass": nil}}
	db := &fakeDB{rows: happyRows()}
	o, data, _ := newTestOrchestrator(ft, fg, db)

	answer, err := o.ProcessQuestion(context.Background(), "How can we fix climate change")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Climate change is addressed by carbon capture." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if ft.validateCalls != 1 || ft.extractCalls != 1 || ft.embedCalls != 1 ||
		ft.cypherCalls != 1 || ft.answerCalls != 1 || fg.calls != 1 || db.calls != 1 {
		t.Error("expected exactly one call per pipeline stage")
	}
	for _, kind := range []string{"cypher_execution", "register_query"} {
		if !strings.Contains(data.String(), kind) {
			t.Errorf("expected %s audit entry", kind)
		}
	}
}

func TestProcessQuestionMemoizesAnswers(t *testing.T) {
	ft := &fakeTasks{}
	fg := &fakeGrounder{filter: ground.NodeFilter{"problem": {"climate change"}}}
	db := &fakeDB{rows: happyRows()}
	o, _, _ := newTestOrchestrator(ft, fg, db)

	first, err := o.ProcessQuestion(context.Background(), "How can we fix climate change")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := o.ProcessQuestion(context.Background(), "How can we fix climate change")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("cached answer differs: %q vs %q", first, second)
	}
	if ft.validateCalls != 1 {
		t.Errorf("second identical question must be served from cache, got %d validator calls", ft.validateCalls)
	}
}

func TestProcessQuestionGroundingExhausted(t *testing.T) {
	ft := &fakeTasks{}
	fg := &fakeGrounder{err: ground.ErrExhausted}
	o, _, errs := newTestOrchestrator(ft, fg, &fakeDB{})

	answer, err := o.ProcessQuestion(context.Background(), "What about unknown concepts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "No data found, even after retry." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if ft.cypherCalls != 0 {
		t.Error("exhausted grounding must not reach query synthesis")
	}
	if !strings.Contains(errs.String(), "RetryNotFoundError") {
		t.Error("expected RetryNotFoundError audit entry")
	}
}

func TestProcessQuestionGroundingPhaseErrors(t *testing.T) {
	tests := []struct {
		name  string
		phase ground.Phase
		kind  string
	}{
		{"typed phase", ground.PhaseTyped, "SimilarityError"},
		{"retry phase", ground.PhaseRetry, "RetryError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg := &fakeGrounder{err: &ground.PhaseError{Phase: tt.phase, Err: errors.New("db closed")}}
			o, _, errs := newTestOrchestrator(&fakeTasks{}, fg, &fakeDB{})

			_, err := o.ProcessQuestion(context.Background(), "What problems exist "+tt.name)
			if !errors.Is(err, ErrGrounding) {
				t.Fatalf("expected ErrGrounding, got %v", err)
			}
			if !strings.Contains(errs.String(), tt.kind) {
				t.Errorf("expected %s audit entry, got %s", tt.kind, errs.String())
			}
		})
	}
}

func TestProcessQuestionNoQueryGenerated(t *testing.T) {
	ft := &fakeTasks{
		cypherFn: func(q string, f ground.NodeFilter) (string, float64, error) {
			return "", 0.001, nil
		},
	}
	fg := &fakeGrounder{filter: ground.NodeFilter{"problem": nil}}
	db := &fakeDB{}
	o, _, errs := newTestOrchestrator(ft, fg, db)

	answer, err := o.ProcessQuestion(context.Background(), "Please delete everything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Query generation returned nothing, try another question." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if db.calls != 0 {
		t.Error("empty query must not reach the database")
	}
	if !strings.Contains(errs.String(), "NoCypherError") {
		t.Error("expected NoCypherError audit entry")
	}
}

func TestProcessQuestionMalformedQuery(t *testing.T) {
	ft := &fakeTasks{
		cypherFn: func(q string, f ground.NodeFilter) (string, float64, error) {
			return "CREATE (n:problem) RETURN n.name", 0.001, nil
		},
	}
	fg := &fakeGrounder{filter: ground.NodeFilter{"problem": nil}}
	db := &fakeDB{}
	o, _, errs := newTestOrchestrator(ft, fg, db)

	answer, err := o.ProcessQuestion(context.Background(), "Add a new problem node")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Query generation returned nothing, try another question." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if db.calls != 0 {
		t.Error("malformed query must not reach the database")
	}
	if !strings.Contains(errs.String(), "InvalidCypherError") {
		t.Error("expected InvalidCypherError audit entry")
	}
}

func TestProcessQuestionEmptyResult(t *testing.T) {
	ft := &fakeTasks{}
	fg := &fakeGrounder{filter: ground.NodeFilter{"problem": {"climate change"}}}
	db := &fakeDB{rows: nil}
	o, _, errs := newTestOrchestrator(ft, fg, db)

	answer, err := o.ProcessQuestion(context.Background(), "What problems relate to nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "No available information. Please, reword your question or try another one." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if ft.answerCalls != 0 {
		t.Error("empty result must not reach answer generation")
	}
	if !strings.Contains(errs.String(), "RelatedNodesNotFoundError") {
		t.Error("expected RelatedNodesNotFoundError audit entry")
	}
}

func TestProcessQuestionDatabaseFailure(t *testing.T) {
	ft := &fakeTasks{}
	fg := &fakeGrounder{filter: ground.NodeFilter{"problem": {"climate change"}}}
	db := &fakeDB{err: errors.New("connection refused")}
	o, _, errs := newTestOrchestrator(ft, fg, db)

	_, err := o.ProcessQuestion(context.Background(), "What problems exist in the database")
	if !errors.Is(err, ErrQueryExecution) {
		t.Fatalf("expected ErrQueryExecution, got %v", err)
	}
	if !strings.Contains(errs.String(), "DatabaseQueryError") {
		t.Error("expected DatabaseQueryError audit entry")
	}
}

func TestProcessQuestionErrorsAreNotCached(t *testing.T) {
	ft := &fakeTasks{}
	fg := &fakeGrounder{filter: ground.NodeFilter{"problem": {"climate change"}}}
	db := &fakeDB{err: errors.New("connection refused")}
	o, _, _ := newTestOrchestrator(ft, fg, db)

	if _, err := o.ProcessQuestion(context.Background(), "What problems exist"); err == nil {
		t.Fatal("expected error")
	}

	db.err = nil
	db.rows = happyRows()
	answer, err := o.ProcessQuestion(context.Background(), "What problems exist")
	if err != nil {
		t.Fatalf("expected recovery after transient failure, got %v", err)
	}
	if answer == "" {
		t.Error("expected an answer after retry")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	bad := DefaultConfig()
	bad.Neo4j.URI = ""
	if err := bad.validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for missing URI, got %v", err)
	}

	bad = DefaultConfig()
	bad.CacheSize = 0
	if err := bad.validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero cache size, got %v", err)
	}
}
