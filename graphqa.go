// Package graphqa answers natural-language questions from a typed knowledge
// graph. A question flows through a PII gate, validation, entity extraction,
// embedding, similarity grounding, Cypher synthesis, execution, and answer
// generation; the whole pipeline is memoized by question text and accounts
// the dollar cost of every model call it makes.
package graphqa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/avilagarcia/graphqa/audit"
	"github.com/avilagarcia/graphqa/embcache"
	"github.com/avilagarcia/graphqa/graph"
	"github.com/avilagarcia/graphqa/ground"
	"github.com/avilagarcia/graphqa/llm"
	"github.com/avilagarcia/graphqa/store"
	"github.com/avilagarcia/graphqa/tasks"
)

// Soft-failure messages returned to the user. These are outcomes, not
// errors: the pipeline stops, the message is the answer.
const (
	msgPIIRejected      = "Invalid question, contains PII or other unauthorized text, try again."
	msgEmptyInput       = "Invalid question, try again."
	msgInvalidQuestion  = "Your question is not valid. Reason: %s"
	msgNoDataAfterRetry = "No data found, even after retry."
	msgNoQuery          = "Query generation returned nothing, try another question."
	msgNoInformation    = "No available information. Please, reword your question or try another one."
)

// taskRunner is the language-model task surface the orchestrator drives;
// satisfied by *tasks.Tasks.
type taskRunner interface {
	ValidateQuestion(ctx context.Context, question string) (graph.Question, float64, error)
	ExtractEntities(ctx context.Context, question string) ([]graph.Entity, float64, error)
	EmbedEntities(ctx context.Context, entities []graph.Entity) ([]graph.Entity, float64, error)
	GenerateCypher(ctx context.Context, question string, filter ground.NodeFilter) (string, float64, error)
	GenerateAnswer(ctx context.Context, question string, result *graph.ParsedResult) (string, float64, error)
}

// nodeGrounder resolves entities to graph nodes; satisfied by *ground.Grounder.
type nodeGrounder interface {
	Ground(ctx context.Context, entities []graph.Entity) (ground.NodeFilter, *ground.Trace, error)
}

// queryRunner executes the synthesized query; satisfied by *store.Client.
type queryRunner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Orchestrator sequences the pipeline and owns its error taxonomy, audit
// logging, and answer memoization. Construct with New; collaborators are
// injected once and live for the process.
type Orchestrator struct {
	tasks    taskRunner
	grounder nodeGrounder
	db       queryRunner
	audit    *audit.Logger

	answers *expirable.LRU[string, string]
	flight  singleflight.Group

	closers []func() error
}

// New builds an Orchestrator and all its collaborators from configuration.
// Call Close when done to release the graph driver, the embedding cache,
// and the audit sink.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db, err := store.New(cfg.Neo4j)
	if err != nil {
		return nil, err
	}

	chat, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}
	embed, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	service, err := llm.NewService(chat, embed, cfg.Embedding.Model)
	if err != nil {
		db.Close(context.Background())
		return nil, err
	}

	var embedder tasks.Embedder = service
	var closers []func() error
	closers = append(closers, func() error { return db.Close(context.Background()) })

	if cfg.EmbedCachePath != "" {
		cache, err := embcache.Open(cfg.EmbedCachePath, service, 0)
		if err != nil {
			db.Close(context.Background())
			return nil, err
		}
		embedder = cache
		closers = append(closers, cache.Close)
	}

	sink := audit.New(cfg.AuditDir)
	closers = append(closers, sink.Close)

	o := newOrchestrator(cfg,
		tasks.New(service, embedder, cfg.Models),
		ground.NewGrounder(db, cfg.Similarity.Threshold, cfg.Similarity.TopK),
		db,
		sink,
	)
	o.closers = closers
	return o, nil
}

// newOrchestrator wires pre-built collaborators; split out so tests can
// inject fakes.
func newOrchestrator(cfg Config, t taskRunner, g nodeGrounder, db queryRunner, sink *audit.Logger) *Orchestrator {
	return &Orchestrator{
		tasks:    t,
		grounder: g,
		db:       db,
		audit:    sink,
		answers:  expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL.Std()),
	}
}

// Close releases every collaborator the orchestrator owns.
func (o *Orchestrator) Close() error {
	var first error
	for _, c := range o.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ProcessQuestion answers one user question from graph content only.
// Results are memoized by raw question text: an identical question within
// the cache TTL is served without any collaborator call. Concurrent
// identical questions share a single pipeline run.
//
// Soft failures (PII, invalid question, nothing grounded, nothing found)
// come back as descriptive answer strings with a nil error; collaborator
// failures are audited with the accumulated cost and returned as errors.
func (o *Orchestrator) ProcessQuestion(ctx context.Context, userQuestion string) (string, error) {
	if answer, ok := o.answers.Get(userQuestion); ok {
		return answer, nil
	}

	v, err, _ := o.flight.Do(userQuestion, func() (any, error) {
		if answer, ok := o.answers.Get(userQuestion); ok {
			return answer, nil
		}
		answer, err := o.answer(ctx, userQuestion)
		if err != nil {
			return "", err
		}
		o.answers.Add(userQuestion, answer)
		return answer, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// answer runs the full pipeline once.
func (o *Orchestrator) answer(ctx context.Context, userQuestion string) (string, error) {
	start := time.Now()
	var totalCost float64

	// 1. Block personal information and sanitize the input.
	if containsPII(userQuestion) {
		o.audit.Error("InvalidQuestionPII", map[string]any{
			"question": "PII containing question",
		})
		return msgPIIRejected, nil
	}

	sanitized := sanitizeInput(userQuestion)
	if sanitized == "" {
		return msgEmptyInput, nil
	}

	// 2. Validate the question.
	question, cost, err := o.tasks.ValidateQuestion(ctx, sanitized)
	if err != nil {
		o.audit.Error("ValidationError", map[string]any{
			"question": sanitized,
			"error":    err.Error(),
			"cost":     totalCost,
		})
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	totalCost += cost
	if !question.IsValid {
		o.audit.Error("InvalidQuestion", map[string]any{
			"question": question.Value,
			"reason":   question.Reasoning,
			"cost":     totalCost,
		})
		return fmt.Sprintf(msgInvalidQuestion, question.Reasoning), nil
	}

	// 3. Extract entities from the question.
	entities, cost, err := o.tasks.ExtractEntities(ctx, question.Value)
	if err != nil {
		o.audit.Error("EntityExtractionError", map[string]any{
			"question": question.Value,
			"error":    err.Error(),
			"cost":     totalCost,
		})
		return "", fmt.Errorf("%w: %w", ErrEntityExtraction, err)
	}
	totalCost += cost

	// 4. Generate embeddings for the extracted entities.
	entities, cost, err = o.tasks.EmbedEntities(ctx, entities)
	if err != nil {
		o.audit.Error("EmbeddingError", map[string]any{
			"question": question.Value,
			"error":    err.Error(),
			"cost":     totalCost,
		})
		return "", fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	totalCost += cost

	// 5. Ground the entities on concrete graph nodes by similarity.
	filter, trace, err := o.grounder.Ground(ctx, entities)
	o.logGroundingTrace(question.Value, trace)
	if err != nil {
		return o.groundingFailure(question.Value, entities, totalCost, err)
	}

	// 6. Generate a Cypher query based on the grounded nodes.
	cypherQuery, cost, err := o.tasks.GenerateCypher(ctx, question.Value, filter)
	if err != nil {
		o.audit.Error("CypherGenerationError", map[string]any{
			"question": question.Value,
			"nodes":    filter,
			"error":    err.Error(),
			"cost":     totalCost,
		})
		return "", fmt.Errorf("%w: %w", ErrQuerySynthesis, err)
	}
	totalCost += cost
	if cypherQuery == "" {
		o.audit.Error("NoCypherError", map[string]any{
			"question": question.Value,
			"nodes":    filter,
			"cost":     totalCost,
		})
		return msgNoQuery, nil
	}
	if err := tasks.CheckQueryFormat(cypherQuery); err != nil {
		o.audit.Error("InvalidCypherError", map[string]any{
			"question": question.Value,
			"query":    cypherQuery,
			"error":    err.Error(),
			"cost":     totalCost,
		})
		return msgNoQuery, nil
	}

	// 7. Execute the query and normalize the results.
	dbStart := time.Now()
	rows, err := o.db.Run(ctx, cypherQuery, nil)
	if err != nil {
		o.audit.Error("DatabaseQueryError", map[string]any{
			"question": question.Value,
			"query":    cypherQuery,
			"error":    err.Error(),
			"cost":     totalCost,
		})
		return "", fmt.Errorf("%w: %w", ErrQueryExecution, err)
	}
	result := ground.Normalize(rows)
	o.audit.Data("cypher_execution", map[string]any{
		"user_prompt":      question.Value,
		"cypher_query":     cypherQuery,
		"final_response":   result,
		"log_duration_sec": time.Since(dbStart).Seconds(),
	})

	if result.Empty() {
		o.audit.Error("RelatedNodesNotFoundError", map[string]any{
			"question": question.Value,
			"query":    cypherQuery,
			"nodes":    filter,
			"cost":     totalCost,
		})
		return msgNoInformation, nil
	}

	// 8. Generate the final answer in natural language.
	finalAnswer, cost, err := o.tasks.GenerateAnswer(ctx, question.Value, result)
	if err != nil {
		o.audit.Error("ResponseGenerationError", map[string]any{
			"question": question.Value,
			"error":    err.Error(),
			"cost":     totalCost,
		})
		return "", fmt.Errorf("%w: %w", ErrAnswerSynthesis, err)
	}
	totalCost += cost

	elapsed := time.Since(start)
	o.audit.Data("register_query", map[string]any{
		"user_prompt":      question.Value,
		"final_response":   finalAnswer,
		"log_duration_sec": elapsed.Seconds(),
		"cost":             totalCost,
	})
	slog.Info("pipeline complete",
		"elapsed", elapsed.Round(time.Millisecond),
		"cost", totalCost,
	)

	return finalAnswer, nil
}

// groundingFailure maps a grounding error to the right outcome: exhausted
// retry is a soft failure, anything else is a hard failure audited with the
// phase it came from.
func (o *Orchestrator) groundingFailure(question string, entities []graph.Entity, totalCost float64, err error) (string, error) {
	if errors.Is(err, ground.ErrExhausted) {
		o.audit.Error("RetryNotFoundError", map[string]any{
			"question": question,
			"entities": entityValues(entities),
			"cost":     totalCost,
		})
		return msgNoDataAfterRetry, nil
	}

	kind := "SimilarityError"
	var perr *ground.PhaseError
	if errors.As(err, &perr) && perr.Phase == ground.PhaseRetry {
		kind = "RetryError"
	}
	o.audit.Error(kind, map[string]any{
		"question":     question,
		"entities":     entityValues(entities),
		"entity_types": entityTypes(entities),
		"error":        err.Error(),
		"cost":         totalCost,
	})
	return "", fmt.Errorf("%w: %w", ErrGrounding, err)
}

// logGroundingTrace emits the similarity search telemetry. Queries in the
// trace never include embedding parameters.
func (o *Orchestrator) logGroundingTrace(question string, trace *ground.Trace) {
	if trace == nil || len(trace.Queries) == 0 {
		return
	}
	o.audit.Data("similarity_calculation", map[string]any{
		"user_prompt":      question,
		"cypher_query":     trace.Queries,
		"final_response":   trace.Results,
		"log_duration_sec": trace.Elapsed.Seconds(),
	})
	if trace.Retried {
		o.audit.Data("similarity_retry", map[string]any{
			"user_prompt":      question,
			"cypher_query":     trace.RetryQueries,
			"final_response":   trace.RetryResults,
			"log_duration_sec": trace.RetryElapsed.Seconds(),
		})
	}
}

func entityValues(entities []graph.Entity) []string {
	var out []string
	for _, e := range entities {
		if e.HasValue() {
			out = append(out, *e.Value)
		}
	}
	return out
}

func entityTypes(entities []graph.Entity) []string {
	var out []string
	for _, e := range entities {
		out = append(out, string(e.Type))
	}
	return out
}
