// internal/models/generation.go
package models

import "time"

// WorkItem is one requested expression. Labels are unique within a run.
type WorkItem struct {
	Label string `json:"label"`
}

// ReferenceArtifact is the portrait every request is conditioned on.
type ReferenceArtifact struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// Payload is what a settled, successful call returned. At least one of
// Image or Text is non-empty.
type Payload struct {
	Image string `json:"image,omitempty"` // data:<mime>;base64,<data>
	Text  string `json:"text,omitempty"`
}

func (p Payload) HasImage() bool { return p.Image != "" }

// Outcome is either Success or Failure.
type Outcome interface {
	isOutcome()
}

// Success carries the payload of a settled call.
type Success struct {
	Payload Payload
}

// Failure carries the reason a call did not produce content.
type Failure struct {
	Reason error
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

// GenerationResult pairs a label with its final outcome.
type GenerationResult struct {
	Label    string        `json:"label"`
	Outcome  Outcome       `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Payload returns the success payload, if any.
func (r GenerationResult) Payload() (Payload, bool) {
	if s, ok := r.Outcome.(Success); ok {
		return s.Payload, true
	}
	return Payload{}, false
}

// Err returns the failure reason, or nil for successes.
func (r GenerationResult) Err() error {
	if f, ok := r.Outcome.(Failure); ok {
		return f.Reason
	}
	return nil
}

func (r GenerationResult) Succeeded() bool {
	_, ok := r.Outcome.(Success)
	return ok
}

// BatchRun holds one result per submitted item, in submission order.
type BatchRun struct {
	ID         string             `json:"id"`
	Results    []GenerationResult `json:"results"`
	Batches    int                `json:"batches"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
}

// Counts returns the number of successful and failed results.
func (b *BatchRun) Counts() (succeeded, failed int) {
	for _, r := range b.Results {
		if r.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Successes returns the successful results in submission order.
func (b *BatchRun) Successes() []GenerationResult {
	out := make([]GenerationResult, 0, len(b.Results))
	for _, r := range b.Results {
		if r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// NewWorkItems converts labels into work items, preserving order.
func NewWorkItems(labels ...string) []WorkItem {
	items := make([]WorkItem, len(labels))
	for i, l := range labels {
		items[i] = WorkItem{Label: l}
	}
	return items
}
