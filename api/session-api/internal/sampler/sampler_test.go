// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_sampler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-sampler"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

type countingSource struct {
	mu    sync.Mutex
	reads int
}

func (s *countingSource) ReadFrame(ctx context.Context) (internal_type.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return internal_type.Frame{byte(s.reads)}, nil
}

func (s *countingSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// scriptedClassifier plays back a fixed probability script, then errors.
type scriptedClassifier struct {
	mu     sync.Mutex
	script []float64
	next   int
}

func (c *scriptedClassifier) Classify(ctx context.Context, frame internal_type.Frame) ([]internal_type.Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.script) {
		return nil, fmt.Errorf("script exhausted")
	}
	p := c.script[c.next]
	c.next++
	return []internal_type.Prediction{
		{Label: "attentive", Probability: p},
		{Label: "distracted", Probability: 1 - p},
	}, nil
}

type staticLoader struct {
	classifier Classifier
	err        error
	loads      int
}

func (l *staticLoader) Load(ctx context.Context) (Classifier, error) {
	l.loads++
	return l.classifier, l.err
}

// drive runs n ticks synchronously through the sampler's tick path.
func drive(s *Sampler, source FrameSource, n int) {
	for i := 0; i < n; i++ {
		s.sample(context.Background(), source)
	}
}

func newDrivenSampler(t *testing.T, classifier Classifier) *Sampler {
	t.Helper()
	s := NewSampler(newTestLogger(t), &staticLoader{classifier: classifier}, time.Hour)
	s.classifier = classifier
	s.loadAttempted = true
	s.active = true
	return s
}

func TestAccumulatorInvariantHoldsEveryTick(t *testing.T) {
	classifier := &scriptedClassifier{script: []float64{0.9, 0.1, 0.5, 0.49, 0.51, 0.9, 0.2, 0.8, 0.3, 0.7}}
	s := newDrivenSampler(t, classifier)
	source := &countingSource{}

	for i := 0; i < 10; i++ {
		s.sample(context.Background(), source)
		eye, total := s.Counters()
		if eye > total {
			t.Fatalf("invariant violated after tick %d: eye=%d > total=%d", i+1, eye, total)
		}
	}
	if _, total := s.Counters(); total != 10 {
		t.Fatalf("expected 10 total frames, got %d", total)
	}
}

func TestStopRatioSevenOfTen(t *testing.T) {
	// 7 probabilities at or above the 0.5 threshold.
	classifier := &scriptedClassifier{script: []float64{0.9, 0.8, 0.7, 0.2, 0.6, 0.3, 0.5, 0.4, 0.9, 0.95}}
	s := newDrivenSampler(t, classifier)
	drive(s, &countingSource{}, 10)

	s.active = false
	if got := s.Stop(); got != 70 {
		t.Fatalf("expected ratio 70, got %d", got)
	}
}

func TestStopWithZeroTicksReturnsZero(t *testing.T) {
	s := NewSampler(newTestLogger(t), &staticLoader{classifier: &scriptedClassifier{}}, time.Hour)
	s.Start(context.Background(), &countingSource{})
	if got := s.Stop(); got != 0 {
		t.Fatalf("expected 0 with zero ticks, got %d", got)
	}
}

func TestClassificationFailureSkipsTickWithoutBias(t *testing.T) {
	// Script of 4 then permanent errors: further ticks must not move either
	// counter.
	classifier := &scriptedClassifier{script: []float64{0.9, 0.9, 0.1, 0.9}}
	s := newDrivenSampler(t, classifier)
	drive(s, &countingSource{}, 10)

	eye, total := s.Counters()
	if total != 4 || eye != 3 {
		t.Fatalf("expected 3/4 after failures skipped, got %d/%d", eye, total)
	}
	s.active = false
	if got := s.Stop(); got != 75 {
		t.Fatalf("expected ratio 75, got %d", got)
	}
}

func TestModelLoadFailureForcesZero(t *testing.T) {
	loader := &staticLoader{err: internal_type.ErrModelLoadFailed}
	s := NewSampler(newTestLogger(t), loader, time.Millisecond)
	source := &countingSource{}

	s.Start(context.Background(), source)
	time.Sleep(20 * time.Millisecond)
	if got := s.Stop(); got != 0 {
		t.Fatalf("expected ratio 0 without a model, got %d", got)
	}
	if _, total := s.Counters(); total != 0 {
		t.Fatalf("expected no counted frames without a model, got %d", total)
	}
}

func TestNoTickFiresAfterStopReturns(t *testing.T) {
	classifier := &scriptedClassifier{script: make([]float64, 100000)}
	s := NewSampler(newTestLogger(t), &staticLoader{classifier: classifier}, time.Millisecond)
	source := &countingSource{}

	s.Start(context.Background(), source)
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	reads := source.readCount()
	time.Sleep(20 * time.Millisecond)
	if got := source.readCount(); got != reads {
		t.Fatalf("tick fired after Stop returned: reads %d -> %d", reads, got)
	}
}

func TestSamplingOutlivesCallerContext(t *testing.T) {
	classifier := &scriptedClassifier{script: make([]float64, 100000)}
	s := NewSampler(newTestLogger(t), &staticLoader{classifier: classifier}, time.Millisecond)
	source := &countingSource{}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx, source)
	cancel() // the HTTP layer cancels its request context once the handler returns

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, total := s.Counters(); total >= 10 {
			break
		}
		if time.Now().After(deadline) {
			_, total := s.Counters()
			t.Fatalf("sampling died with the caller context, only %d ticks counted", total)
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()
}

func TestModelLoadsOncePerSamplerLifetime(t *testing.T) {
	loader := &staticLoader{classifier: &scriptedClassifier{script: []float64{0.9}}}
	s := NewSampler(newTestLogger(t), loader, time.Millisecond)
	source := &countingSource{}

	s.Start(context.Background(), source)
	s.Stop()
	s.Start(context.Background(), source)
	s.Stop()

	if loader.loads != 1 {
		t.Fatalf("expected exactly one model load across cycles, got %d", loader.loads)
	}
}

func TestStartResetsAccumulator(t *testing.T) {
	classifier := &scriptedClassifier{script: []float64{0.9, 0.9, 0.9, 0.9}}
	s := newDrivenSampler(t, classifier)
	drive(s, &countingSource{}, 2)
	s.active = false
	if got := s.Stop(); got != 100 {
		t.Fatalf("expected 100 from first span, got %d", got)
	}

	s.Start(context.Background(), &countingSource{})
	if eye, total := s.Counters(); eye != 0 || total != 0 {
		t.Fatalf("expected counters reset on start, got %d/%d", eye, total)
	}
	s.Stop()
}
