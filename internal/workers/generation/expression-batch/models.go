// internal/workers/generation/expression-batch/models.go
package expressionbatch

import (
	"context"

	"facecast/internal/models"
)

// Generator performs one remote generation call.
type Generator interface {
	Generate(ctx context.Context, apiKey string, ref models.ReferenceArtifact, prompt string) (models.Payload, error)
}

// ProgressFunc is called once per item after it settles. Calls are serialized.
type ProgressFunc func(label string, index int, ok bool)

// Input bundles the arguments of one run.
type Input struct {
	Reference        models.ReferenceArtifact
	Items            []models.WorkItem
	ConcurrencyLimit int
	PromptTemplate   string
}
