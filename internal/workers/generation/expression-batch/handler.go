// internal/workers/generation/expression-batch/handler.go
package expressionbatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"facecast/internal/common/config"
	apperrors "facecast/internal/common/errors"
	"facecast/internal/common/logger"
	"facecast/internal/common/metrics"
	"facecast/internal/common/observability"
	"facecast/internal/common/platform"
	"facecast/internal/credentials"
	"facecast/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	TaskType = "expression-batch"
)

type Handler struct {
	config    *Config
	generator Generator
	creds     credentials.Source
	clock     platform.Clock
	obs       *observability.Observability
	logger    logger.Logger

	progressMu sync.Mutex
	progress   ProgressFunc
}

type Option func(*Handler)

func WithClock(c platform.Clock) Option {
	return func(h *Handler) { h.clock = c }
}

func WithProgress(fn ProgressFunc) Option {
	return func(h *Handler) { h.progress = fn }
}

func WithObservability(o *observability.Observability) Option {
	return func(h *Handler) { h.obs = o }
}

func NewHandler(cfg *Config, generator Generator, creds credentials.Source, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		config:    cfg,
		generator: generator,
		creds:     creds,
		clock:     platform.SystemClock{},
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run generates one result per item. Items are dispatched in consecutive
// chunks of limit concurrent calls; a chunk starts only after every call of
// the previous chunk settled, and a fixed pause separates chunks.
//
// Per-item failures are recorded in the returned run, never returned as
// errors. If ctx is cancelled the partial run is returned together with
// ctx.Err(); unsettled items carry REQUEST_CANCELLED.
func (h *Handler) Run(ctx context.Context, ref models.ReferenceArtifact, items []models.WorkItem, limit int, template string) (*models.BatchRun, error) {
	return h.execute(ctx, &Input{
		Reference:        ref,
		Items:            items,
		ConcurrencyLimit: limit,
		PromptTemplate:   template,
	})
}

func (h *Handler) execute(ctx context.Context, input *Input) (*models.BatchRun, error) {
	if err := h.validateInput(input); err != nil {
		return nil, err
	}

	run := &models.BatchRun{
		ID:        uuid.NewString(),
		Results:   make([]models.GenerationResult, len(input.Items)),
		StartedAt: h.clock.Now(),
	}
	log := h.logger.With(map[string]interface{}{"runId": run.ID})

	if len(input.Items) == 0 {
		run.FinishedAt = run.StartedAt
		return run, nil
	}

	if strings.TrimSpace(h.creds.Get()) == "" {
		return nil, apperrors.NewMissingCredentialError()
	}

	template := input.PromptTemplate
	if template == "" {
		template = h.config.PromptTemplate
	}
	limit := input.ConcurrencyLimit
	if limit > len(input.Items) {
		limit = len(input.Items)
	}

	log.Info("starting generation run", map[string]interface{}{
		"items":       len(input.Items),
		"concurrency": limit,
		"batches":     (len(input.Items) + limit - 1) / limit,
	})

	for start := 0; start < len(input.Items); start += limit {
		if start > 0 {
			if err := h.clock.Sleep(ctx, h.config.InterBatchDelay); err != nil {
				break
			}
		}
		end := start + limit
		if end > len(input.Items) {
			end = len(input.Items)
		}

		h.runChunk(ctx, input.Reference, input.Items[start:end], start, template, run.Results)
		run.Batches++
		metrics.BatchesDispatched.Inc()

		if ctx.Err() != nil {
			break
		}
	}

	h.settleRemaining(ctx, input.Items, run.Results)
	run.FinishedAt = h.clock.Now()

	succeeded, failed := run.Counts()
	status := "completed"
	if ctx.Err() != nil {
		status = "cancelled"
	}
	h.obs.RecordRun(ctx, run.FinishedAt.Sub(run.StartedAt), status)
	h.obs.RecordItems(ctx, succeeded, failed)

	log.Info("generation run finished", map[string]interface{}{
		"status":    status,
		"succeeded": succeeded,
		"failed":    failed,
		"batches":   run.Batches,
	})

	if err := ctx.Err(); err != nil {
		return run, err
	}
	return run, nil
}

func (h *Handler) validateInput(input *Input) error {
	if input.ConcurrencyLimit < 1 {
		return apperrors.NewInvalidInputError(fmt.Sprintf("concurrency limit must be >= 1, got %d", input.ConcurrencyLimit))
	}
	if input.PromptTemplate != "" && !strings.Contains(input.PromptTemplate, config.PromptPlaceholder) {
		return apperrors.NewInvalidInputError(fmt.Sprintf("prompt template must contain %s", config.PromptPlaceholder))
	}

	seen := make(map[string]int, len(input.Items))
	for i, item := range input.Items {
		if strings.TrimSpace(item.Label) == "" {
			return apperrors.NewInvalidInputError(fmt.Sprintf("item %d has an empty label", i))
		}
		if prev, ok := seen[item.Label]; ok {
			return apperrors.NewInvalidInputError(fmt.Sprintf("duplicate label %q at items %d and %d", item.Label, prev, i))
		}
		seen[item.Label] = i
	}
	return nil
}

// runChunk dispatches every item of the chunk concurrently and waits for all
// of them. Each goroutine writes only its own index of results.
func (h *Handler) runChunk(ctx context.Context, ref models.ReferenceArtifact, chunk []models.WorkItem, offset int, template string, results []models.GenerationResult) {
	var g errgroup.Group
	for i, item := range chunk {
		idx := offset + i
		label := item.Label
		g.Go(func() error {
			results[idx] = h.generateOne(ctx, ref, label, template)
			h.reportProgress(label, idx, results[idx].Succeeded())
			return nil
		})
	}
	_ = g.Wait()
}

func (h *Handler) generateOne(ctx context.Context, ref models.ReferenceArtifact, label, template string) models.GenerationResult {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return cancelled(label, err)
	}

	// Read per call: a credential replaced mid-run applies to later calls.
	apiKey := h.creds.Get()

	metrics.GenerationRequestsActive.Inc()
	payload, err := h.generator.Generate(ctx, apiKey, ref, BuildPrompt(template, label))
	metrics.GenerationRequestsActive.Dec()

	elapsed := time.Since(start)
	metrics.GenerationRequestDuration.WithLabelValues(h.config.Model).Observe(elapsed.Seconds())

	if err != nil {
		var reason *apperrors.StandardError
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			reason = apperrors.NewRequestCancelledError(label, err)
		} else {
			reason = apperrors.NewRequestFailedError(label, err)
		}
		metrics.GenerationRequestsFailed.WithLabelValues(h.config.Model, string(reason.Code)).Inc()
		h.logger.Warn("generation request failed", map[string]interface{}{
			"label":      label,
			"errorCode":  string(reason.Code),
			"error":      err,
			"durationMs": elapsed.Milliseconds(),
		})
		return models.GenerationResult{Label: label, Outcome: models.Failure{Reason: reason}, Duration: elapsed}
	}

	metrics.GenerationRequestsCompleted.WithLabelValues(h.config.Model).Inc()
	h.logger.Debug("generation request completed", map[string]interface{}{
		"label":      label,
		"hasImage":   payload.HasImage(),
		"durationMs": elapsed.Milliseconds(),
	})
	return models.GenerationResult{Label: label, Outcome: models.Success{Payload: payload}, Duration: elapsed}
}

// settleRemaining finalizes items that were never dispatched.
func (h *Handler) settleRemaining(ctx context.Context, items []models.WorkItem, results []models.GenerationResult) {
	for i := range results {
		if results[i].Outcome != nil {
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		results[i] = cancelled(items[i].Label, cause)
		metrics.GenerationRequestsFailed.WithLabelValues(h.config.Model, string(apperrors.ErrCodeRequestCancelled)).Inc()
		h.reportProgress(items[i].Label, i, false)
	}
}

func (h *Handler) reportProgress(label string, index int, ok bool) {
	if h.progress == nil {
		return
	}
	h.progressMu.Lock()
	defer h.progressMu.Unlock()
	h.progress(label, index, ok)
}

func cancelled(label string, err error) models.GenerationResult {
	return models.GenerationResult{
		Label:   label,
		Outcome: models.Failure{Reason: apperrors.NewRequestCancelledError(label, err)},
	}
}

// BuildPrompt substitutes label at every placeholder of template.
func BuildPrompt(template, label string) string {
	return strings.ReplaceAll(template, config.PromptPlaceholder, label)
}
