package observable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	raierrors "github.com/acn-rai/rai-memory/errors"
)

type response struct{ text string }

func (r response) Content() string { return r.text }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCaptureContextSequentialIDs(t *testing.T) {
	b := NewBehavior()
	ctx := context.Background()

	first := b.CaptureContext(ctx, []string{"hi"})
	second := b.CaptureContext(ctx, "again")

	assert.Equal(t, "0", first.DecisionID)
	assert.Equal(t, "1", second.DecisionID)
	assert.Equal(t, "[hi]", first.InputContext["messages"])
	assert.Empty(t, first.ProcessingSteps)
	assert.Empty(t, first.ConfidenceScores)
	assert.Len(t, b.Decisions(), 2)
}

func TestDecisionEnrichment(t *testing.T) {
	b := NewBehavior()
	dc := b.CaptureContext(context.Background(), "q")

	require.NoError(t, b.AddStep(dc.DecisionID, "recall"))
	require.NoError(t, b.AddStep(dc.DecisionID, "respond"))
	require.NoError(t, b.SetConfidence(dc.DecisionID, "answer", 0.7))

	got, ok := b.Decision(dc.DecisionID)
	require.True(t, ok)
	assert.Equal(t, []string{"recall", "respond"}, got.ProcessingSteps)
	assert.Equal(t, 0.7, got.ConfidenceScores["answer"])

	// returned copies are detached
	got.ProcessingSteps[0] = "changed"
	again, _ := b.Decision(dc.DecisionID)
	assert.Equal(t, "recall", again.ProcessingSteps[0])
}

func TestDecisionUnknownID(t *testing.T) {
	b := NewBehavior()
	for _, id := range []string{"0", "-1", "abc"} {
		err := b.AddStep(id, "x")
		assert.True(t, raierrors.HasCode(err, raierrors.ErrCodeNotFound), "id %q: %v", id, err)
		_, ok := b.Decision(id)
		assert.False(t, ok)
	}
}

func TestExtractMarkers(t *testing.T) {
	b := NewBehavior()

	markers := b.ExtractMarkers(response{text: "hello"})
	require.Len(t, markers, 1)
	assert.Equal(t, BehaviorResponseGeneration, markers[0].BehaviorType)
	assert.Equal(t, 5, markers[0].Context["response_length"])
	assert.Equal(t, 0.8, markers[0].Confidence)

	assert.Len(t, b.ExtractMarkers("plain text"), 1)

	markers = b.ExtractMarkers("héllo")
	require.Len(t, markers, 1)
	assert.Equal(t, 5, markers[0].Context["response_length"], "length counts characters")
	assert.Empty(t, b.ExtractMarkers(42))
	assert.Empty(t, b.ExtractMarkers(nil))
}

func TestRecordNotifiesObservers(t *testing.T) {
	b := NewBehavior()
	ctx := context.Background()

	var got []string
	remove := b.AddObserver(func(ctx context.Context, event string, markers []BehaviorMarker) error {
		got = append(got, event)
		return nil
	})

	b.Record(ctx, []BehaviorMarker{NewMarker("tool_use", nil)})
	assert.Equal(t, []string{EventBehaviorRecorded}, got)

	remove()
	remove()
	b.Record(ctx, []BehaviorMarker{NewMarker("tool_use", nil)})
	assert.Len(t, got, 1, "removed observer must not be called")
	assert.Len(t, b.Patterns(PatternFilter{}), 2)
}

func TestObserverFailuresDoNotPropagate(t *testing.T) {
	b := NewBehavior()
	b.AddObserver(func(context.Context, string, []BehaviorMarker) error { return errors.New("down") })
	b.AddObserver(func(context.Context, string, []BehaviorMarker) error { panic("bad observer") })
	called := false
	b.AddObserver(func(context.Context, string, []BehaviorMarker) error {
		called = true
		return nil
	})

	assert.NotPanics(t, func() {
		b.Record(context.Background(), []BehaviorMarker{NewMarker("x", nil)})
	})
	assert.True(t, called)
}

func TestPatternsFilter(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBehavior(WithClock(c.Now))
	ctx := context.Background()

	old := NewMarker("tool_use", nil)
	old.Timestamp = c.Now().Add(-2 * time.Hour)
	recent := NewMarker("tool_use", nil)
	recent.Timestamp = c.Now().Add(-time.Minute)
	other := NewMarker("refusal", nil)
	other.Timestamp = c.Now().Add(-time.Minute)
	b.Record(ctx, []BehaviorMarker{old, recent, other})

	assert.Len(t, b.Patterns(PatternFilter{}), 3)
	assert.Len(t, b.Patterns(PatternFilter{BehaviorType: "tool_use"}), 2)
	assert.Len(t, b.Patterns(PatternFilter{Window: time.Hour}), 2)

	both := b.Patterns(PatternFilter{BehaviorType: "tool_use", Window: time.Hour})
	require.Len(t, both, 1)
	assert.Equal(t, recent.Timestamp, both[0].Timestamp)

	c.Advance(2 * time.Hour)
	assert.Empty(t, b.Patterns(PatternFilter{Window: time.Hour}))
}

func TestPatternsReturnsCopies(t *testing.T) {
	b := NewBehavior()
	m := NewMarker("tool_use", map[string]interface{}{"tool": "search"})
	m.Metadata = map[string]interface{}{"source": "test"}
	b.Record(context.Background(), []BehaviorMarker{m})

	got := b.Patterns(PatternFilter{})
	require.Len(t, got, 1)
	got[0].Context["tool"] = "changed"
	got[0].Metadata["source"] = "changed"

	again := b.Patterns(PatternFilter{})
	require.Len(t, again, 1)
	assert.Equal(t, "search", again[0].Context["tool"])
	assert.Equal(t, "test", again[0].Metadata["source"])
}

func TestConcurrentRecordAndCapture(t *testing.T) {
	b := NewBehavior()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dc := b.CaptureContext(ctx, "m")
			b.AddStep(dc.DecisionID, "s")
			b.Record(ctx, b.ExtractMarkers("r"))
		}()
	}
	wg.Wait()

	assert.Len(t, b.Decisions(), 25)
	assert.Len(t, b.Patterns(PatternFilter{}), 25)
}
