// internal/workers/generation/expression-batch/handler_test.go
package expressionbatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "facecast/internal/common/errors"
	"facecast/internal/common/logger"
	"facecast/internal/credentials"
	"facecast/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Fakes
// ==========================

type staticKey string

func (k staticKey) Get() string { return string(k) }

type event struct {
	kind  string // "start" or "end"
	label string
}

// fakeGenerator records the start/end order of every call.
type fakeGenerator struct {
	mu       sync.Mutex
	events   []event
	prompts  map[string]string
	keys     []string
	inFlight int
	maxSeen  int
	fail     map[string]error
	delay    time.Duration
	onCall   func(label string)
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{prompts: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeGenerator) Generate(ctx context.Context, apiKey string, ref models.ReferenceArtifact, prompt string) (models.Payload, error) {
	label := labelFromPrompt(prompt)

	f.mu.Lock()
	f.events = append(f.events, event{"start", label})
	f.prompts[label] = prompt
	f.keys = append(f.keys, apiKey)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(label)
	}

	var err error
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	f.mu.Lock()
	f.inFlight--
	f.events = append(f.events, event{"end", label})
	if err == nil {
		err = f.fail[label]
	}
	f.mu.Unlock()

	if err != nil {
		return models.Payload{}, err
	}
	return models.Payload{Image: models.EncodeDataURL("image/png", []byte("img-"+label))}, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

const testTemplate = "portrait showing {expression}"

func labelFromPrompt(prompt string) string {
	var label string
	_, _ = fmt.Sscanf(prompt, "portrait showing %s", &label)
	return label
}

type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
	// marks records how many generator calls had started at each sleep.
	marks  []int
	gen    *fakeGenerator
	cancel context.CancelFunc
	// onSleep runs at each pause between batches.
	onSleep func()
}

func (c *fakeClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	if c.gen != nil {
		c.marks = append(c.marks, c.gen.calls())
	}
	cancel := c.cancel
	onSleep := c.onSleep
	c.mu.Unlock()
	if onSleep != nil {
		onSleep()
	}
	if cancel != nil {
		cancel()
	}
	return ctx.Err()
}

func createTestConfig() *Config {
	return &Config{
		Concurrency:     2,
		InterBatchDelay: time.Second,
		PromptTemplate:  testTemplate,
		Model:           "test-model",
	}
}

func newTestHandler(t *testing.T, gen Generator, clock *fakeClock, opts ...Option) *Handler {
	t.Helper()
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewHandler(createTestConfig(), gen, staticKey("test-key"), logger.NewTestLogger(t), opts...)
}

var testRef = models.ReferenceArtifact{MIMEType: "image/png", Data: []byte("ref")}

func labels(n int) []models.WorkItem {
	items := make([]models.WorkItem, n)
	for i := range items {
		items[i] = models.WorkItem{Label: fmt.Sprintf("expr%d", i)}
	}
	return items
}

// assertNoOverlap checks that every call of batch b ended before any call of
// batch b+1 started, with batch = index / k. It returns the batch sizes.
func assertNoOverlap(t *testing.T, events []event, k int) []int {
	t.Helper()
	ended := map[int]int{}
	total := map[int]int{}
	for _, e := range events {
		if e.kind == "start" {
			total[indexOf(e.label)/k]++
		}
	}
	for _, e := range events {
		b := indexOf(e.label) / k
		switch e.kind {
		case "start":
			if b > 0 {
				assert.Equal(t, total[b-1], ended[b-1], "%s started before batch %d settled", e.label, b-1)
			}
		case "end":
			ended[b]++
		}
	}
	sizes := make([]int, len(total))
	for b, n := range total {
		sizes[b] = n
	}
	return sizes
}

func indexOf(label string) int {
	var i int
	_, _ = fmt.Sscanf(label, "expr%d", &i)
	return i
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Run_PreservesOrderAndLabels(t *testing.T) {
	for _, tc := range []struct{ n, k int }{{1, 1}, {3, 1}, {4, 2}, {7, 3}, {5, 10}} {
		t.Run(fmt.Sprintf("n=%d,k=%d", tc.n, tc.k), func(t *testing.T) {
			gen := newFakeGenerator()
			gen.delay = time.Millisecond
			h := newTestHandler(t, gen, &fakeClock{})

			items := labels(tc.n)
			run, err := h.Run(context.Background(), testRef, items, tc.k, testTemplate)
			require.NoError(t, err)

			require.Len(t, run.Results, tc.n)
			for i, r := range run.Results {
				assert.Equal(t, items[i].Label, r.Label)
				payload, ok := r.Payload()
				require.True(t, ok)
				assert.Equal(t, models.EncodeDataURL("image/png", []byte("img-"+items[i].Label)), payload.Image)
				assert.NoError(t, r.Err())
			}
			assert.NotEmpty(t, run.ID)
		})
	}
}

func TestHandler_Run_FailureIsIsolated(t *testing.T) {
	gen := newFakeGenerator()
	gen.fail["expr1"] = errors.New("status 500")
	h := newTestHandler(t, gen, &fakeClock{})

	run, err := h.Run(context.Background(), testRef, labels(4), 2, testTemplate)
	require.NoError(t, err)

	for i, r := range run.Results {
		if i == 1 {
			assert.False(t, r.Succeeded())
			_, ok := r.Payload()
			assert.False(t, ok)
			assert.ErrorIs(t, r.Err(), apperrors.ErrRequestFailed)
			assert.Contains(t, r.Err().Error(), "status 500")
			continue
		}
		assert.True(t, r.Succeeded(), "item %d", i)
	}

	succeeded, failed := run.Counts()
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 1, failed)
}

func TestHandler_Run_ChunksSequentially(t *testing.T) {
	tests := []struct {
		n, k          int
		expectBatches []int
	}{
		{5, 2, []int{2, 2, 1}},
		{6, 3, []int{3, 3}},
		{3, 1, []int{1, 1, 1}},
		{2, 5, []int{2}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,k=%d", tt.n, tt.k), func(t *testing.T) {
			gen := newFakeGenerator()
			gen.delay = 5 * time.Millisecond
			clock := &fakeClock{gen: gen}
			h := newTestHandler(t, gen, clock)

			run, err := h.Run(context.Background(), testRef, labels(tt.n), tt.k, testTemplate)
			require.NoError(t, err)

			assert.Equal(t, len(tt.expectBatches), run.Batches)
			assert.LessOrEqual(t, gen.maxSeen, tt.k)
			assert.Equal(t, tt.expectBatches, assertNoOverlap(t, gen.events, tt.k))
			assert.Len(t, clock.sleeps, len(tt.expectBatches)-1)
		})
	}
}

func TestHandler_Run_EndToEndFiveItemsLimitTwo(t *testing.T) {
	gen := newFakeGenerator()
	gen.delay = 2 * time.Millisecond
	clock := &fakeClock{gen: gen}
	h := newTestHandler(t, gen, clock)

	run, err := h.Run(context.Background(), testRef, models.NewWorkItems("happy", "sad", "angry", "surprised", "smug"), 2, testTemplate)
	require.NoError(t, err)

	assert.Equal(t, 3, run.Batches)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.sleeps)
	// Pauses fall between batches 1→2 and 2→3, never after the last one.
	assert.Equal(t, []int{2, 4}, clock.marks)
	assert.Equal(t, 5, gen.calls())
}

func TestHandler_Run_SubstitutesEveryPlaceholder(t *testing.T) {
	gen := newFakeGenerator()
	h := newTestHandler(t, gen, &fakeClock{})

	_, err := h.Run(context.Background(), testRef, models.NewWorkItems("happy"), 1, "portrait showing {expression} ({expression})")
	require.NoError(t, err)
	assert.Equal(t, "portrait showing happy (happy)", gen.prompts["happy"])
}

func TestHandler_Run_DefaultTemplate(t *testing.T) {
	gen := newFakeGenerator()
	h := newTestHandler(t, gen, &fakeClock{})

	_, err := h.Run(context.Background(), testRef, models.NewWorkItems("wink"), 1, "")
	require.NoError(t, err)
	assert.Equal(t, "portrait showing wink", gen.prompts["wink"])
}

func TestHandler_Run_ReadsCredentialPerCall(t *testing.T) {
	gen := newFakeGenerator()
	h := newTestHandler(t, gen, &fakeClock{})

	_, err := h.Run(context.Background(), testRef, labels(3), 3, testTemplate)
	require.NoError(t, err)
	assert.Equal(t, []string{"test-key", "test-key", "test-key"}, gen.keys)
}

func TestHandler_Run_KeyReplacedBetweenBatches(t *testing.T) {
	store := credentials.NewStore(nil, logger.NewNoOpLogger())
	require.NoError(t, store.Set(context.Background(), "old-key"))

	gen := newFakeGenerator()
	clock := &fakeClock{onSleep: func() {
		require.NoError(t, store.Set(context.Background(), "new-key"))
	}}
	h := NewHandler(createTestConfig(), gen, store, logger.NewTestLogger(t), WithClock(clock))

	run, err := h.Run(context.Background(), testRef, labels(4), 2, testTemplate)
	require.NoError(t, err)
	succeeded, _ := run.Counts()
	assert.Equal(t, 4, succeeded)

	// Batches run in sequence, so the first two calls belong to batch one.
	assert.Equal(t, []string{"old-key", "old-key", "new-key", "new-key"}, gen.keys)
}

func TestHandler_Run_ProgressCallback(t *testing.T) {
	gen := newFakeGenerator()
	gen.fail["expr2"] = errors.New("boom")

	seen := map[int]bool{}
	h := newTestHandler(t, gen, &fakeClock{}, WithProgress(func(label string, index int, ok bool) {
		assert.Equal(t, fmt.Sprintf("expr%d", index), label)
		seen[index] = ok
	}))

	_, err := h.Run(context.Background(), testRef, labels(3), 2, testTemplate)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: false}, seen)
}

// ==========================
// Validation Tests
// ==========================

func TestHandler_Run_EmptyItems(t *testing.T) {
	gen := newFakeGenerator()
	h := NewHandler(createTestConfig(), gen, staticKey(""), logger.NewTestLogger(t), WithClock(&fakeClock{}))

	run, err := h.Run(context.Background(), testRef, nil, 2, testTemplate)
	require.NoError(t, err)
	assert.Empty(t, run.Results)
	assert.Zero(t, run.Batches)
	assert.Zero(t, gen.calls())
}

func TestHandler_Run_MissingCredential(t *testing.T) {
	gen := newFakeGenerator()
	h := NewHandler(createTestConfig(), gen, staticKey("  "), logger.NewTestLogger(t), WithClock(&fakeClock{}))

	run, err := h.Run(context.Background(), testRef, labels(3), 2, testTemplate)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, apperrors.ErrMissingCredential)
	assert.Zero(t, gen.calls())
}

func TestHandler_Run_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		items    []models.WorkItem
		limit    int
		template string
	}{
		{"zero limit", labels(2), 0, testTemplate},
		{"negative limit", labels(2), -3, testTemplate},
		{"duplicate labels", models.NewWorkItems("happy", "sad", "happy"), 2, testTemplate},
		{"blank label", models.NewWorkItems("happy", " "), 2, testTemplate},
		{"template without placeholder", labels(2), 2, "a face"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newFakeGenerator()
			h := newTestHandler(t, gen, &fakeClock{})

			_, err := h.Run(context.Background(), testRef, tt.items, tt.limit, tt.template)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Zero(t, gen.calls())
		})
	}
}

// ==========================
// Cancellation Tests
// ==========================

func TestHandler_Run_CancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := newFakeGenerator()
	clock := &fakeClock{cancel: cancel}
	h := newTestHandler(t, gen, clock)

	run, err := h.Run(ctx, testRef, labels(5), 2, testTemplate)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	require.Len(t, run.Results, 5)

	assert.Equal(t, 1, run.Batches)
	assert.True(t, run.Results[0].Succeeded())
	assert.True(t, run.Results[1].Succeeded())
	for i := 2; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("expr%d", i), run.Results[i].Label)
		assert.ErrorIs(t, run.Results[i].Err(), apperrors.ErrRequestCancelled)
	}
	assert.Equal(t, 2, gen.calls())
}

func TestHandler_Run_CancelledInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := newFakeGenerator()
	gen.delay = time.Minute
	gen.onCall = func(label string) {
		if label == "expr1" {
			cancel()
		}
	}
	h := newTestHandler(t, gen, &fakeClock{})

	run, err := h.Run(ctx, testRef, labels(4), 2, testTemplate)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, run.Results, 4)
	for _, r := range run.Results {
		assert.ErrorIs(t, r.Err(), apperrors.ErrRequestCancelled)
	}
	assert.Equal(t, 1, run.Batches)
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "a sad face", BuildPrompt("a {expression} face", "sad"))
	assert.Equal(t, "no placeholder", BuildPrompt("no placeholder", "sad"))
}
