// Package observable records agent behavior for transparency: the context of
// each decision, behavior markers extracted from responses, and observers
// notified as markers are recorded.
package observable

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
)

// EventBehaviorRecorded is the event name passed to observers.
const EventBehaviorRecorded = "behavior_recorded"

// BehaviorResponseGeneration marks a generated response.
const BehaviorResponseGeneration = "response_generation"

const (
	defaultMarkerConfidence  = 0.5
	responseMarkerConfidence = 0.8
)

// BehaviorMarker is one observed behavior.
type BehaviorMarker struct {
	Timestamp    time.Time              `json:"timestamp"`
	BehaviorType string                 `json:"behavior_type"`
	Context      map[string]interface{} `json:"context"`
	Confidence   float64                `json:"confidence"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewMarker returns a marker with the default confidence.
func NewMarker(behaviorType string, ctx map[string]interface{}) BehaviorMarker {
	return BehaviorMarker{
		Timestamp:    time.Now(),
		BehaviorType: behaviorType,
		Context:      ctx,
		Confidence:   defaultMarkerConfidence,
	}
}

// DecisionContext captures the context of one agent decision.
type DecisionContext struct {
	DecisionID       string                 `json:"decision_id"`
	InputContext     map[string]interface{} `json:"input_context"`
	ProcessingSteps  []string               `json:"processing_steps"`
	ConfidenceScores map[string]float64     `json:"confidence_scores"`
	Timestamp        time.Time              `json:"timestamp"`
}

func (d *DecisionContext) clone() DecisionContext {
	out := *d
	out.ProcessingSteps = append([]string(nil), d.ProcessingSteps...)
	out.ConfidenceScores = make(map[string]float64, len(d.ConfidenceScores))
	for k, v := range d.ConfidenceScores {
		out.ConfidenceScores[k] = v
	}
	return out
}

// ContentProvider is implemented by responses that expose generated content.
type ContentProvider interface {
	Content() string
}

// Observer is notified when markers are recorded. Errors are logged only.
type Observer func(ctx context.Context, event string, markers []BehaviorMarker) error

// PatternFilter narrows Patterns. Zero values match everything.
type PatternFilter struct {
	BehaviorType string
	Window       time.Duration
}

type observerEntry struct {
	id int
	fn Observer
}

// Behavior tracks decision contexts and behavior history.
// It is safe for concurrent use.
type Behavior struct {
	mu        sync.RWMutex
	history   []BehaviorMarker
	decisions []*DecisionContext

	obsMu     sync.RWMutex
	observers []observerEntry
	nextID    int

	now func() time.Time
	log *logger.Logger
}

// Option configures a Behavior.
type Option func(*Behavior)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Behavior) { b.now = now }
}

// NewBehavior creates an empty tracker.
func NewBehavior(opts ...Option) *Behavior {
	b := &Behavior{
		now: time.Now,
		log: logger.WithComponent("observable"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CaptureContext opens a decision context for the given input messages.
// Decision IDs are sequential, starting at "0".
func (b *Behavior) CaptureContext(ctx context.Context, messages interface{}) DecisionContext {
	b.mu.Lock()
	defer b.mu.Unlock()

	dc := &DecisionContext{
		DecisionID:       strconv.Itoa(len(b.decisions)),
		InputContext:     map[string]interface{}{"messages": fmt.Sprint(messages)},
		ProcessingSteps:  []string{},
		ConfidenceScores: map[string]float64{},
		Timestamp:        b.now(),
	}
	b.decisions = append(b.decisions, dc)
	return dc.clone()
}

// AddStep appends a processing step to a captured decision.
func (b *Behavior) AddStep(decisionID, step string) error {
	return b.withDecision(decisionID, func(dc *DecisionContext) {
		dc.ProcessingSteps = append(dc.ProcessingSteps, step)
	})
}

// SetConfidence records a named confidence score on a captured decision.
func (b *Behavior) SetConfidence(decisionID, key string, score float64) error {
	return b.withDecision(decisionID, func(dc *DecisionContext) {
		dc.ConfidenceScores[key] = score
	})
}

func (b *Behavior) withDecision(decisionID string, fn func(*DecisionContext)) error {
	idx, err := strconv.Atoi(decisionID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil || idx < 0 || idx >= len(b.decisions) {
		return errors.NotFound("decision", decisionID)
	}
	fn(b.decisions[idx])
	return nil
}

// Decision returns a copy of a captured decision.
func (b *Behavior) Decision(decisionID string) (DecisionContext, bool) {
	idx, err := strconv.Atoi(decisionID)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err != nil || idx < 0 || idx >= len(b.decisions) {
		return DecisionContext{}, false
	}
	return b.decisions[idx].clone(), true
}

// Decisions returns copies of all captured decisions.
func (b *Behavior) Decisions() []DecisionContext {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]DecisionContext, 0, len(b.decisions))
	for _, dc := range b.decisions {
		out = append(out, dc.clone())
	}
	return out
}

// ExtractMarkers derives behavior markers from a response. Responses that
// carry content (a string or a ContentProvider) yield a response_generation
// marker; anything else yields none.
func (b *Behavior) ExtractMarkers(response interface{}) []BehaviorMarker {
	var content string
	switch r := response.(type) {
	case ContentProvider:
		content = r.Content()
	case string:
		content = r
	default:
		return nil
	}

	return []BehaviorMarker{{
		Timestamp:    b.now(),
		BehaviorType: BehaviorResponseGeneration,
		Context:      map[string]interface{}{"response_length": utf8.RuneCountInString(content)},
		Confidence:   responseMarkerConfidence,
	}}
}

// Record appends markers to the history and notifies observers.
func (b *Behavior) Record(ctx context.Context, markers []BehaviorMarker) {
	b.mu.Lock()
	b.history = append(b.history, markers...)
	b.mu.Unlock()

	b.obsMu.RLock()
	observers := make([]observerEntry, len(b.observers))
	copy(observers, b.observers)
	b.obsMu.RUnlock()

	for _, o := range observers {
		if err := notify(ctx, o.fn, markers); err != nil {
			b.log.Warn("behavior observer failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}
}

func notify(ctx context.Context, fn Observer, markers []BehaviorMarker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return fn(ctx, EventBehaviorRecorded, markers)
}

// Patterns returns recorded markers matching the filter, oldest first.
func (b *Behavior) Patterns(filter PatternFilter) []BehaviorMarker {
	var cutoff time.Time
	if filter.Window > 0 {
		cutoff = b.now().Add(-filter.Window)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []BehaviorMarker
	for _, m := range b.history {
		if filter.BehaviorType != "" && m.BehaviorType != filter.BehaviorType {
			continue
		}
		if filter.Window > 0 && !m.Timestamp.After(cutoff) {
			continue
		}
		m.Context = cloneMap(m.Context)
		m.Metadata = cloneMap(m.Metadata)
		out = append(out, m)
	}
	return out
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// AddObserver registers an observer and returns a function that removes it.
func (b *Behavior) AddObserver(fn Observer) (remove func()) {
	b.obsMu.Lock()
	b.nextID++
	id := b.nextID
	b.observers = append(b.observers, observerEntry{id: id, fn: fn})
	b.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.obsMu.Lock()
			defer b.obsMu.Unlock()
			for i, o := range b.observers {
				if o.id == id {
					b.observers = append(b.observers[:i], b.observers[i+1:]...)
					return
				}
			}
		})
	}
}
