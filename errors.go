package graphqa

import "errors"

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("graphqa: invalid configuration")

	// ErrValidation is wrapped around failures of the question validation call.
	ErrValidation = errors.New("graphqa: question validation failed")

	// ErrEntityExtraction is wrapped around failures of the entity extraction call.
	ErrEntityExtraction = errors.New("graphqa: entity extraction failed")

	// ErrEmbedding is wrapped around failures of the embedding gate.
	ErrEmbedding = errors.New("graphqa: embedding generation failed")

	// ErrGrounding is wrapped around failures of the similarity search.
	ErrGrounding = errors.New("graphqa: similarity grounding failed")

	// ErrQuerySynthesis is wrapped around failures of the Cypher generation call.
	ErrQuerySynthesis = errors.New("graphqa: query synthesis failed")

	// ErrQueryExecution is wrapped around failures of the graph query execution.
	ErrQueryExecution = errors.New("graphqa: query execution failed")

	// ErrAnswerSynthesis is wrapped around failures of the final answer call.
	ErrAnswerSynthesis = errors.New("graphqa: answer generation failed")
)
