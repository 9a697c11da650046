package tasks

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/avilagarcia/graphqa/graph"
)

// embedConcurrency caps the number of in-flight embedding requests.
const embedConcurrency = 8

// EmbedEntities attaches an embedding to every entity that carries a value,
// fanning the requests out concurrently and joining before returning.
// Entities without a value pass through untouched. The join is
// all-or-nothing: the first failure cancels the remaining requests and is
// returned as-is, with no partial results.
func (t *Tasks) EmbedEntities(ctx context.Context, entities []graph.Entity) ([]graph.Entity, float64, error) {
	var valued []int
	for i, e := range entities {
		if e.HasValue() {
			valued = append(valued, i)
		}
	}
	if len(valued) == 0 {
		return entities, 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	costs := make([]float64, len(valued))
	for slot, idx := range valued {
		slot, idx := slot, idx
		g.Go(func() error {
			vec, cost, err := t.embed.Embedding(gctx, *entities[idx].Value)
			if err != nil {
				return err
			}
			entities[idx].Embedding = vec
			costs[slot] = cost
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var total float64
	for _, c := range costs {
		total += c
	}
	return entities, total, nil
}
