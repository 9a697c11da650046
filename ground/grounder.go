package ground

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avilagarcia/graphqa/graph"
	"github.com/avilagarcia/graphqa/store"
)

// ErrExhausted is returned when even the untyped retry finds no similar
// nodes for any of the missed entities. Callers treat it as a soft failure.
var ErrExhausted = errors.New("ground: no similar nodes found, even after retry")

// Phase identifies which stage of the two-phase grounding search an error
// came from.
type Phase int

const (
	// PhaseTyped is the first search, constrained to each entity's type.
	PhaseTyped Phase = iota
	// PhaseRetry is the label-agnostic second search for missed entities.
	PhaseRetry
)

func (p Phase) String() string {
	if p == PhaseRetry {
		return "retry"
	}
	return "typed"
}

// PhaseError wraps a collaborator failure with the grounding phase it
// occurred in, so the orchestrator can pick the right audit kind.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("ground: %s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// NodeFilter maps a node label to the concrete node names a synthesized
// query may filter on. A nil slice means "any node of this label".
type NodeFilter map[string][]string

// BatchRunner executes a batch of similarity queries; satisfied by
// *store.Client.
type BatchRunner interface {
	RunBatch(ctx context.Context, queries []store.Query) ([]map[string]any, error)
}

// Trace records what one grounding run did, for telemetry. Queries are
// reported without their embedding parameters.
type Trace struct {
	Queries      []string
	Results      map[string][]string
	Elapsed      time.Duration
	RetryQueries []string
	RetryResults map[string][]string
	RetryElapsed time.Duration
	Retried      bool
}

// Grounder resolves embedded entities to graph node names in two phases:
// first constrained to each entity's declared type, then label-agnostic for
// whatever the first phase missed. The retry is a deliberate broadening, not
// error recovery; a node found there may land under a different category
// than the entity declared, and that discrepancy is passed downstream as-is.
type Grounder struct {
	db        BatchRunner
	threshold float64
	topK      int
}

// NewGrounder creates a Grounder. Zero threshold/topK fall back to defaults.
func NewGrounder(db BatchRunner, threshold float64, topK int) *Grounder {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	return &Grounder{db: db, threshold: threshold, topK: topK}
}

// Ground maps the full entity list to a NodeFilter. Entities without a value
// become unconstrained filter slots; embedded entities go through the typed
// search and, when their type yields nothing, the untyped retry. Returns
// ErrExhausted when the retry comes back completely empty, or a PhaseError
// for collaborator failures.
func (g *Grounder) Ground(ctx context.Context, entities []graph.Entity) (NodeFilter, *Trace, error) {
	filter := make(NodeFilter)
	trace := &Trace{}

	var valued []graph.Entity
	for _, e := range entities {
		if e.HasValue() {
			valued = append(valued, e)
		}
	}

	var missed []graph.Entity
	if len(valued) > 0 {
		queries := similarityQueries(valued, g.threshold, g.topK)
		start := time.Now()
		rows, err := g.db.RunBatch(ctx, queries)
		if err != nil {
			return nil, trace, &PhaseError{Phase: PhaseTyped, Err: err}
		}
		found := parseSimilarity(rows)
		trace.Queries = queryTexts(queries)
		trace.Results = found
		trace.Elapsed = time.Since(start)

		for _, e := range valued {
			if names, ok := found[string(e.Type)]; ok {
				filter[string(e.Type)] = names
			} else {
				missed = append(missed, e)
			}
		}
	}

	for _, e := range entities {
		if !e.HasValue() {
			filter[string(e.Type)] = nil
		}
	}

	if len(missed) > 0 {
		queries := similarityQueriesNoLabel(missed, g.threshold, g.topK)
		start := time.Now()
		rows, err := g.db.RunBatch(ctx, queries)
		if err != nil {
			return nil, trace, &PhaseError{Phase: PhaseRetry, Err: err}
		}
		found := parseSimilarity(rows)
		trace.Retried = true
		trace.RetryQueries = queryTexts(queries)
		trace.RetryResults = found
		trace.RetryElapsed = time.Since(start)

		if len(found) == 0 {
			return nil, trace, ErrExhausted
		}
		for label, names := range found {
			filter[label] = names
			if !labelDeclared(missed, label) {
				slog.Warn("ground: retry landed under a different category",
					"label", label, "nodes", names)
			}
		}
	}

	return filter, trace, nil
}

// labelDeclared reports whether any missed entity declared the given label
// as its type.
func labelDeclared(entities []graph.Entity, label string) bool {
	for _, e := range entities {
		if string(e.Type) == label {
			return true
		}
	}
	return false
}

func queryTexts(queries []store.Query) []string {
	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.Text
	}
	return texts
}
